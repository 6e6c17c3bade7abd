package quic

import (
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

const recvBuffer = 256

type conn struct {
	peerID   string
	metadata transport.ConnectionMetadata
	qconn    *quic.Conn
	stream   *quic.Stream
	codec    *protocol.Codec
	log      *logrus.Entry

	opened    chan struct{}
	recv      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
	writeMu   sync.Mutex
}

func newConn(peerID string, metadata transport.ConnectionMetadata, qconn *quic.Conn, stream *quic.Stream, logger *logrus.Logger) *conn {
	opened := make(chan struct{})
	close(opened)
	return &conn{
		peerID:   peerID,
		metadata: metadata,
		qconn:    qconn,
		stream:   stream,
		codec:    protocol.NewCodec(),
		log:      logger.WithField("peer", peerID),
		opened:   opened,
		recv:     make(chan []byte, recvBuffer),
		done:     make(chan struct{}),
	}
}

func (c *conn) start() {
	go c.readLoop()
}

func (c *conn) readLoop() {
	defer close(c.recv)

	for {
		msg, err := c.codec.Read(c.stream)
		if err != nil {
			c.log.Debugf("Stream closed: %v", err)
			_ = c.Close()
			return
		}

		select {
		case c.recv <- msg:
		case <-c.done:
			return
		}
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
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.codec.Write(c.stream, data)
}

func (c *conn) Recv() <-chan []byte {
	return c.recv
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.stream.Close()
		err = c.qconn.CloseWithError(0, "channel closed")
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

var _ transport.Conn = (*conn)(nil)
