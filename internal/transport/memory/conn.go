package memory

import (
	"errors"
	"sync"

	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
)

var errBufferFull = errors.New("receive buffer full")

// pipe holds the state shared by both ends of a channel.
type pipe struct {
	closed bool
	mu     sync.Mutex
}

type conn struct {
	pipe     *pipe
	peer     *conn
	peerID   string
	metadata transport.ConnectionMetadata
	opened   chan struct{}
	recv     chan []byte
}

func newConn(p *pipe, peerID string, metadata transport.ConnectionMetadata) *conn {
	opened := make(chan struct{})
	close(opened)
	return &conn{
		pipe:     p,
		peerID:   peerID,
		metadata: metadata,
		opened:   opened,
		recv:     make(chan []byte, recvBuffer),
	}
}

func (c *conn) PeerID() string {
	return c.peerID
}

func (c *conn) Metadata() transport.ConnectionMetadata {
	return c.metadata
}

func (c *conn) Opened() <-chan struct{} {
	return c.opened
}

func (c *conn) Send(data []byte) error {
	c.pipe.mu.Lock()
	defer c.pipe.mu.Unlock()

	if c.pipe.closed {
		return transport.ErrClosed
	}

	msg := make([]byte, len(data))
	copy(msg, data)

	select {
	case c.peer.recv <- msg:
		return nil
	default:
		return errBufferFull
	}
}

func (c *conn) Recv() <-chan []byte {
	return c.recv
}

func (c *conn) Close() error {
	c.pipe.mu.Lock()
	defer c.pipe.mu.Unlock()

	if !c.pipe.closed {
		c.pipe.closed = true
		close(c.recv)
		close(c.peer.recv)
	}
	return nil
}
