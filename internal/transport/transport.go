// Package transport defines the channel abstraction the transfer core runs on.
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
)

var (
	ErrClosed       = errors.New("transport closed")
	ErrNotOpen      = errors.New("channel not open")
	ErrUnknownPeer  = errors.New("unknown peer")
	ErrChannelInUse = errors.New("channel already open to peer")
)

// Transport opens channels to remote peers and surfaces channels opened by
// them.
type Transport interface {
	Connect(ctx context.Context, peerID string, metadata ConnectionMetadata) (Conn, error)
	Accept() <-chan Conn
	Close() error
}

// Conn is an ordered, reliable, message oriented duplex channel to one peer.
// Recv is closed when the channel goes away, whichever side closed it.
type Conn interface {
	PeerID() string
	Metadata() ConnectionMetadata
	Opened() <-chan struct{}
	Send(data []byte) error
	Recv() <-chan []byte
	Close() error
}

// ConnectionMetadata is attached by the opener and read by the acceptor.
type ConnectionMetadata = protocol.Metadata

type Signaler interface {
	SendSignal(ctx context.Context, peerID string, signal []byte) error
	RecvSignal() <-chan Signal
	io.Closer
}

type Signal struct {
	PeerID  string
	Payload []byte
}
