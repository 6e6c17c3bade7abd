package webrtc

import (
	"fmt"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

const recvBuffer = 256

// connection is one peer connection carrying a single data channel.
type connection struct {
	id       string
	peerID   string
	metadata transport.ConnectionMetadata
	pc       *webrtc.PeerConnection
	log      *logrus.Entry

	opened     chan struct{}
	openOnce   sync.Once
	recvChan   chan []byte
	recvClosed bool
	closeOnce  sync.Once
	// onClose runs once, after the channel is closed locally or remotely.
	onClose func()

	mu sync.Mutex
	dc *webrtc.DataChannel
}

func newConnection(id, peerID string, pc *webrtc.PeerConnection, logger *logrus.Logger) *connection {
	conn := &connection{
		id:       id,
		peerID:   peerID,
		pc:       pc,
		log:      logger.WithFields(logrus.Fields{"peer": peerID, "conn": id}),
		opened:   make(chan struct{}),
		recvChan: make(chan []byte, recvBuffer),
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		conn.log.Debugf("Peer Connection State has changed: %s", s.String())
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			conn.closeRecv()
		}
	})

	return conn
}

func (c *connection) setupDataChannel(dc *webrtc.DataChannel, onOpen func()) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		c.log.Debugf("Data channel '%s'-'%d' open", dc.Label(), dc.ID())
		c.markOpen()
		if onOpen != nil {
			onOpen()
		}
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		c.push(msg.Data)
	})

	dc.OnError(func(err error) {
		c.log.Warnf("Data channel error: %v", err)
	})

	dc.OnClose(func() {
		c.log.Debugf("Data channel '%s'-'%d' closed", dc.Label(), dc.ID())
		_ = c.Close()
	})
}

func (c *connection) markOpen() {
	c.openOnce.Do(func() { close(c.opened) })
}

func (c *connection) push(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.recvClosed {
		return
	}
	// a message can overtake the open callback
	c.markOpen()
	select {
	case c.recvChan <- data:
	default:
		c.log.Warnf("Receive buffer full, dropping %d bytes", len(data))
	}
}

func (c *connection) closeRecv() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.recvClosed {
		c.recvClosed = true
		close(c.recvChan)
	}
}

func (c *connection) PeerID() string {
	return c.peerID
}

func (c *connection) Metadata() transport.ConnectionMetadata {
	return c.metadata
}

func (c *connection) Opened() <-chan struct{} {
	return c.opened
}

func (c *connection) Send(data []byte) error {
	c.mu.Lock()
	dc := c.dc
	closed := c.recvClosed
	c.mu.Unlock()

	if closed {
		return transport.ErrClosed
	}
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return transport.ErrNotOpen
	}
	if err := dc.Send(data); err != nil {
		return fmt.Errorf("failed to send on data channel: %w", err)
	}
	return nil
}

func (c *connection) Recv() <-chan []byte {
	return c.recvChan
}

func (c *connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		dc := c.dc
		c.mu.Unlock()

		if dc != nil {
			_ = dc.Close()
		}
		err = c.pc.Close()
		c.closeRecv()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

var _ transport.Conn = (*connection)(nil)
