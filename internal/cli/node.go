package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudransh-shrivastava/peer-drop/internal/console"
	"github.com/rudransh-shrivastava/peer-drop/internal/history"
	"github.com/rudransh-shrivastava/peer-drop/internal/rendezvous"
	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

// node is everything one running peer needs besides its transport.
type node struct {
	manager  *transfer.Manager
	prompter *console.Prompter
	history  *history.Store
	closeDB  func() error
}

func newNode(tr transport.Transport) (*node, error) {
	db, err := history.Open(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	store := history.NewStore(db)

	prompter := console.NewPrompter(os.Stdin, os.Stdout, cfg.AutoAccept, log)
	listener := transfer.Listeners{
		console.New(os.Stdout, console.Saver{Dir: cfg.DownloadDir}, log),
		prompter,
	}

	manager, err := transfer.NewManager(transfer.Options{
		Transport: tr,
		Config:    cfg.Transfer,
		Listener:  listener,
		Recorder:  store,
		Logger:    log,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	prompter.Bind(manager)

	return &node{
		manager:  manager,
		prompter: prompter,
		history:  store,
		closeDB:  sqlDB.Close,
	}, nil
}

// serve runs the inbound side until ctx is done.
func (n *node) serve(ctx context.Context) {
	go func() {
		if err := n.prompter.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("Prompter stopped: %v", err)
		}
	}()
	go func() {
		if err := n.manager.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warnf("Manager stopped: %v", err)
		}
	}()
}

// send offers path to peerID and waits for the outcome.
func (n *node) send(ctx context.Context, peerID, path string) error {
	s, err := n.manager.SendFile(ctx, peerID, path)
	if err != nil {
		return err
	}
	st, err := s.Wait(ctx)
	if err != nil {
		_ = s.Cancel()
		<-s.Done()
		return err
	}
	if !st.Succeeded() {
		if st.Err != nil {
			return fmt.Errorf("transfer %s: %s: %w", st.State, st.Reason, st.Err)
		}
		return fmt.Errorf("transfer %s: %s", st.State, st.Reason)
	}
	return nil
}

// close cancels whatever is still running and waits for the history writes.
func (n *node) close() {
	for _, s := range n.manager.Sessions() {
		_ = s.Cancel()
	}
	n.manager.Wait()
	if err := n.closeDB(); err != nil {
		log.Warnf("Error closing history database: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func selfInfo() rendezvous.PeerInfo {
	name := cfg.Name
	if name == "" {
		name = rendezvous.RandomName()
	}
	return rendezvous.PeerInfo{PeerID: newPeerID(), Name: name}
}

func logPeerEvents(ctx context.Context, client *rendezvous.Client, l *logrus.Logger) {
	for {
		select {
		case e, ok := <-client.Events():
			if !ok {
				return
			}
			l.Infof("%s (%s) %s", e.Peer.Name, e.Peer.PeerID, e.Type)
		case <-ctx.Done():
			return
		}
	}
}
