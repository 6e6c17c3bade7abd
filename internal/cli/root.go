// Package cli wires the peerdrop commands together.
package cli

import (
	"fmt"
	"os"

	"github.com/rudransh-shrivastava/peer-drop/internal/config"
	"github.com/rudransh-shrivastava/peer-drop/internal/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "peerdrop",
	Short:         "send files directly between peers",
	Long:          `peerdrop sends files directly to other peers, over WebRTC through a rendezvous server or over QUIC on the local network`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		level, err := logger.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		log = logger.New(os.Stderr, level)
		return nil
	},
}

func Execute() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.BindFlags(rootCmd.PersistentFlags())
	rendezvousCmd.Flags().StringVar(&cfg.RendezvousListen, "listen", cfg.RendezvousListen, "address to serve on")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(rendezvousCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(lanCmd)
	rootCmd.AddCommand(historyCmd)
}
