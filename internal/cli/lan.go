package cli

import (
	"fmt"
	"net"
	"os"
	"text/tabwriter"

	"github.com/rudransh-shrivastava/peer-drop/internal/discovery"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport/quic"
	"github.com/spf13/cobra"
)

var lanCmd = &cobra.Command{
	Use:   "lan",
	Short: "transfer files on the local network without a rendezvous server",
}

func discoveryConfig() discovery.Config {
	return discovery.Config{Service: cfg.ServiceName}
}

func listenQUIC(addr string) (*quic.Transport, error) {
	qcfg := quic.DefaultConfig()
	qcfg.ListenAddr = addr
	return quic.Listen(qcfg, log)
}

var lanReceiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "advertise this machine and receive files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		tr, err := listenQUIC(cfg.QUICListen)
		if err != nil {
			return err
		}
		defer tr.Close()

		n, err := newNode(tr)
		if err != nil {
			return err
		}
		defer n.close()

		self := selfInfo()
		dcfg := discoveryConfig()
		dcfg.PeerID = self.PeerID
		dcfg.Name = self.Name
		dcfg.Port = tr.LocalAddr().(*net.UDPAddr).Port

		adv, err := discovery.Advertise(dcfg)
		if err != nil {
			return err
		}
		defer adv.Stop()

		log.Infof("Receiving as %s on %s", self.Name, tr.LocalAddr())
		n.serve(ctx)
		<-ctx.Done()
		return nil
	},
}

var lanSendCmd = &cobra.Command{
	Use:   "send peer path/to/file",
	Short: "send a file to a receiver on the local network",
	Long:  `finds a receiver by name or id over mDNS and sends it a file. A host:port address skips discovery.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, path := args[0], args[1]

		ctx, stop := signalContext()
		defer stop()

		addr := target
		if _, _, err := net.SplitHostPort(target); err != nil {
			peer, err := discovery.Find(ctx, discoveryConfig(), target)
			if err != nil {
				return err
			}
			log.Infof("Found %s at %s", peer.Name, peer.Addr)
			addr = peer.Addr
		}

		tr, err := listenQUIC(":0")
		if err != nil {
			return err
		}
		defer tr.Close()

		n, err := newNode(tr)
		if err != nil {
			return err
		}
		defer n.close()

		return n.send(ctx, addr, path)
	},
}

var lanPeersCmd = &cobra.Command{
	Use:   "peers",
	Short: "list receivers on the local network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		peers, err := discovery.Browse(ctx, discoveryConfig())
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			fmt.Println("No receivers found")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tID\tADDRESS")
		for _, p := range peers {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.PeerID, p.Addr)
		}
		return w.Flush()
	},
}

func init() {
	lanCmd.AddCommand(lanReceiveCmd)
	lanCmd.AddCommand(lanSendCmd)
	lanCmd.AddCommand(lanPeersCmd)
}
