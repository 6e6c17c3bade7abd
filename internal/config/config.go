// Package config holds the runtime settings of the peerdrop binary.
//
// Settings are resolved in three layers, later ones taking precedence:
// defaults, PEERDROP_* environment variables, command line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/logger"
	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport/webrtc"
	"github.com/spf13/pflag"
)

const envPrefix = "PEERDROP_"

type Config struct {
	Transfer transfer.Config

	// RendezvousURL is the WebSocket endpoint peers join.
	RendezvousURL string
	// RendezvousListen is where the rendezvous command serves.
	RendezvousListen string
	STUNServers      []string

	QUICListen  string
	ServiceName string

	DownloadDir string
	HistoryPath string
	// Name is shown to other peers. Empty picks a random name.
	Name       string
	AutoAccept bool
	LogLevel   string
}

func Default() Config {
	return Config{
		Transfer:         transfer.DefaultConfig(),
		RendezvousURL:    "ws://localhost:8080/ws",
		RendezvousListen: ":8080",
		STUNServers:      append([]string(nil), webrtc.DefaultSTUNServers...),
		QUICListen:       ":4433",
		ServiceName:      "_peerdrop._udp",
		DownloadDir:      ".",
		HistoryPath:      defaultHistoryPath(),
		LogLevel:         "info",
	}
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "peerdrop.db"
	}
	return filepath.Join(dir, "peerdrop", "history.db")
}

// Load returns the defaults overlaid with the process environment.
func Load() (Config, error) {
	cfg := Default()
	if err := cfg.LoadEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv overlays variables found through lookup.
func (c *Config) LoadEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	if v, ok := get("CHUNK_SIZE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sCHUNK_SIZE: %w", envPrefix, err)
		}
		c.Transfer.ChunkSize = n
	}
	for key, dst := range map[string]*time.Duration{
		"STEP_TIMEOUT": &c.Transfer.StepTimeout,
		"CLOSE_GRACE":  &c.Transfer.CloseGrace,
	} {
		if v, ok := get(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, key, err)
			}
			*dst = d
		}
	}
	for key, dst := range map[string]*string{
		"RENDEZVOUS_URL":    &c.RendezvousURL,
		"RENDEZVOUS_LISTEN": &c.RendezvousListen,
		"QUIC_LISTEN":       &c.QUICListen,
		"MDNS_SERVICE":      &c.ServiceName,
		"DOWNLOAD_DIR":      &c.DownloadDir,
		"HISTORY_DB":        &c.HistoryPath,
		"NAME":              &c.Name,
		"LOG_LEVEL":         &c.LogLevel,
	} {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	if v, ok := get("STUN_SERVERS"); ok {
		c.STUNServers = splitList(v)
	}
	if v, ok := get("AUTO_ACCEPT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sAUTO_ACCEPT: %w", envPrefix, err)
		}
		c.AutoAccept = b
	}
	return nil
}

// BindFlags registers flags that write straight into c, so parsing them
// overlays whatever c already holds.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.IntVar(&c.Transfer.ChunkSize, "chunk-size", c.Transfer.ChunkSize, "largest chunk payload in bytes")
	fs.DurationVar(&c.Transfer.StepTimeout, "step-timeout", c.Transfer.StepTimeout, "fail a transfer after waiting this long for the peer (0 disables)")
	fs.DurationVar(&c.Transfer.CloseGrace, "close-grace", c.Transfer.CloseGrace, "delay before closing a finished channel")
	fs.StringVar(&c.RendezvousURL, "rendezvous", c.RendezvousURL, "rendezvous WebSocket URL")
	fs.StringSliceVar(&c.STUNServers, "stun", c.STUNServers, "STUN server URLs")
	fs.StringVar(&c.QUICListen, "quic-listen", c.QUICListen, "UDP address for LAN transfers")
	fs.StringVar(&c.ServiceName, "mdns-service", c.ServiceName, "mDNS service type for LAN discovery")
	fs.StringVar(&c.DownloadDir, "download-dir", c.DownloadDir, "directory received files are saved to")
	fs.StringVar(&c.HistoryPath, "history-db", c.HistoryPath, "transfer history database")
	fs.StringVar(&c.Name, "name", c.Name, "name shown to other peers")
	fs.BoolVarP(&c.AutoAccept, "yes", "y", c.AutoAccept, "accept incoming transfers without asking")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
}

func (c Config) Validate() error {
	if err := c.Transfer.Validate(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ServiceName == "" {
		return fmt.Errorf("mDNS service name must not be empty")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory must not be empty")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
