package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rudransh-shrivastava/peer-drop/internal/rendezvous"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport/webrtc"
	"github.com/spf13/cobra"
)

const peerWaitTimeout = 30 * time.Second

func newPeerID() string {
	return uuid.NewString()
}

var rendezvousCmd = &cobra.Command{
	Use:   "rendezvous",
	Short: "run the rendezvous server",
	Long:  `runs the WebSocket server peers use to find each other and exchange WebRTC offers. Peers are grouped by public IP address.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		hub := rendezvous.NewHub(log)
		srv := &http.Server{
			Addr:              cfg.RendezvousListen,
			Handler:           hub.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Infof("Rendezvous server listening on %s", cfg.RendezvousListen)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("Shutting down rendezvous server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

// online joins the rendezvous room and starts a WebRTC node on top of it.
func online(ctx context.Context) (*rendezvous.Client, *webrtc.Transport, *node, error) {
	client, err := rendezvous.Dial(ctx, cfg.RendezvousURL, selfInfo(), log)
	if err != nil {
		return nil, nil, nil, err
	}
	tr := webrtc.New(client, cfg.STUNServers, log)
	n, err := newNode(tr)
	if err != nil {
		_ = tr.Close()
		_ = client.Close()
		return nil, nil, nil, err
	}

	go func() {
		if err := tr.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("Signal handling stopped: %v", err)
		}
	}()
	self := client.Self()
	log.Infof("Joined %s as %s (%s)", cfg.RendezvousURL, self.Name, self.PeerID)
	return client, tr, n, nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "stay online and receive files",
	Long:  `joins the rendezvous server and waits for other peers on the same network to send files`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		client, tr, n, err := online(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		defer tr.Close()
		defer n.close()

		for _, p := range client.Peers() {
			log.Infof("%s (%s) is online", p.Name, p.PeerID)
		}
		go logPeerEvents(ctx, client, log)
		n.serve(ctx)

		select {
		case <-ctx.Done():
		case <-client.Done():
			return errors.New("lost connection to rendezvous server")
		}
		log.Info("Going offline")
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send peer path/to/file",
	Short: "send a file to a peer",
	Long:  `sends a file to a peer in the same rendezvous room. The peer is matched by id, or by name ignoring case.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, path := args[0], args[1]

		ctx, stop := signalContext()
		defer stop()

		client, tr, n, err := online(ctx)
		if err != nil {
			return err
		}
		defer client.Close()
		defer tr.Close()
		defer n.close()

		waitCtx, cancel := context.WithTimeout(ctx, peerWaitTimeout)
		peer, err := client.WaitForPeer(waitCtx, target)
		cancel()
		if err != nil {
			return err
		}

		log.Infof("Sending %s to %s (%s)", path, peer.Name, peer.PeerID)
		return n.send(ctx, peer.PeerID, path)
	},
}
