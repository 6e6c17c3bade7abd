// Package memory implements an in-process transport. Every Transport joined
// to the same Network can open channels to the others.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
)

const recvBuffer = 256

type Network struct {
	nodes map[string]*Transport
	mu    sync.Mutex
}

func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*Transport)}
}

// Join registers peerID on the network, replacing any previous holder.
func (n *Network) Join(peerID string) *Transport {
	t := &Transport{
		id:       peerID,
		network:  n,
		incoming: make(chan transport.Conn, 16),
	}

	n.mu.Lock()
	n.nodes[peerID] = t
	n.mu.Unlock()
	return t
}

func (n *Network) lookup(peerID string) (*Transport, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	t, ok := n.nodes[peerID]
	return t, ok
}

func (n *Network) leave(t *Transport) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.nodes[t.id] == t {
		delete(n.nodes, t.id)
	}
}

type Transport struct {
	id       string
	network  *Network
	incoming chan transport.Conn
	closed   bool
	mu       sync.Mutex
}

func (t *Transport) ID() string {
	return t.id
}

func (t *Transport) Connect(ctx context.Context, peerID string, metadata transport.ConnectionMetadata) (transport.Conn, error) {
	if err := metadata.Validate(); err != nil {
		return nil, err
	}

	remote, ok := t.network.lookup(peerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnknownPeer, peerID)
	}

	p := &pipe{}
	local := newConn(p, peerID, metadata)
	accepted := newConn(p, t.id, metadata)
	local.peer, accepted.peer = accepted, local

	if err := remote.deliver(ctx, accepted); err != nil {
		return nil, err
	}
	return local, nil
}

func (t *Transport) deliver(ctx context.Context, c *conn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("%w: %s", transport.ErrUnknownPeer, t.id)
	}

	select {
	case t.incoming <- c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) Accept() <-chan transport.Conn {
	return t.incoming
}

func (t *Transport) Close() error {
	t.network.leave(t)

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.incoming)
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
