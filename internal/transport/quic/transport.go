// Package quic implements the channel transport directly over QUIC, for
// peers that can reach each other without signaling. Each channel is its own
// QUIC connection with a single bidirectional stream. Messages on the stream
// are length prefixed and the first one carries the metadata.
package quic

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

const handshakeTimeout = 10 * time.Second

type Transport struct {
	udp      net.PacketConn
	qt       *quic.Transport
	listener *quic.Listener
	cfg      Config
	logger   *logrus.Logger

	incoming chan transport.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
}

// Listen binds cfg.ListenAddr and starts accepting channels.
func Listen(cfg Config, logger *logrus.Logger) (*Transport, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.QUIC == nil {
		cfg.QUIC = DefaultConfig().QUIC
	}
	if cfg.TLS == nil {
		tlsConf, err := serverTLS()
		if err != nil {
			return nil, err
		}
		cfg.TLS = tlsConf
	}

	udp, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	qt := &quic.Transport{Conn: udp}
	ln, err := qt.Listen(cfg.TLS, cfg.QUIC)
	if err != nil {
		_ = udp.Close()
		return nil, fmt.Errorf("failed to start QUIC listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Transport{
		udp:      udp,
		qt:       qt,
		listener: ln,
		cfg:      cfg,
		logger:   logger,
		incoming: make(chan transport.Conn, 16),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[*conn]struct{}),
	}

	t.wg.Add(1)
	go t.acceptLoop()
	return t, nil
}

func (t *Transport) LocalAddr() net.Addr {
	return t.udp.LocalAddr()
}

// Connect dials peerID, a host:port address.
func (t *Transport) Connect(ctx context.Context, peerID string, metadata transport.ConnectionMetadata) (transport.Conn, error) {
	header, err := protocol.EncodeMetadata(metadata)
	if err != nil {
		return nil, err
	}

	addr, err := net.ResolveUDPAddr("udp", peerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", transport.ErrUnknownPeer, err)
	}

	qconn, err := t.qt.Dial(ctx, addr, clientTLS(), t.cfg.QUIC)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", peerID, err)
	}

	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		_ = qconn.CloseWithError(0, "")
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	c := newConn(peerID, metadata, qconn, stream, t.logger)
	if err := c.codec.Write(stream, header); err != nil {
		_ = qconn.CloseWithError(0, "")
		return nil, fmt.Errorf("failed to send metadata: %w", err)
	}

	if err := t.track(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *Transport) acceptLoop() {
	defer t.wg.Done()

	for {
		qconn, err := t.listener.Accept(t.ctx)
		if err != nil {
			if t.ctx.Err() == nil && !errors.Is(err, quic.ErrServerClosed) {
				t.logger.Warnf("Error accepting QUIC connection: %v", err)
			}
			return
		}

		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.handshake(qconn)
		}()
	}
}

// handshake reads the channel metadata from the first stream of qconn.
func (t *Transport) handshake(qconn *quic.Conn) {
	peerID := qconn.RemoteAddr().String()

	ctx, cancel := context.WithTimeout(t.ctx, handshakeTimeout)
	defer cancel()

	stream, err := qconn.AcceptStream(ctx)
	if err != nil {
		t.logger.Warnf("Error accepting stream from %s: %v", peerID, err)
		_ = qconn.CloseWithError(0, "")
		return
	}

	codec := protocol.NewCodec()
	header, err := codec.Read(stream)
	if err != nil {
		t.logger.Warnf("Error reading metadata from %s: %v", peerID, err)
		_ = qconn.CloseWithError(0, "")
		return
	}
	metadata, err := protocol.DecodeMetadata(header)
	if err != nil {
		t.logger.Warnf("Invalid metadata from %s: %v", peerID, err)
		_ = qconn.CloseWithError(0, "")
		return
	}

	c := newConn(peerID, metadata, qconn, stream, t.logger)
	if err := t.track(c); err != nil {
		return
	}

	select {
	case t.incoming <- c:
	case <-t.ctx.Done():
		_ = c.Close()
	}
}

func (t *Transport) track(c *conn) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		_ = c.Close()
		return transport.ErrClosed
	}
	t.conns[c] = struct{}{}
	c.onClose = func() {
		t.mu.Lock()
		delete(t.conns, c)
		t.mu.Unlock()
	}
	c.start()
	return nil
}

func (t *Transport) Accept() <-chan transport.Conn {
	return t.incoming
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conns := make([]*conn, 0, len(t.conns))
	for c := range t.conns {
		conns = append(conns, c)
	}
	t.mu.Unlock()

	t.cancel()
	for _, c := range conns {
		_ = c.Close()
	}
	err := t.listener.Close()
	t.wg.Wait()
	close(t.incoming)

	if cerr := t.qt.Close(); err == nil {
		err = cerr
	}
	_ = t.udp.Close()
	return err
}

var _ transport.Transport = (*Transport)(nil)
