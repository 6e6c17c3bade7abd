// Package webrtc implements the channel transport over WebRTC data channels.
// Offers and answers travel through a transport.Signaler; ICE candidates are
// gathered up front and embedded in the session descriptions.
package webrtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

type Transport struct {
	config   webrtc.Configuration
	signaler transport.Signaler
	logger   *logrus.Logger

	mu          sync.Mutex
	connections map[string]*connection
	incoming    chan transport.Conn
	closed      bool
}

// New creates a WebRTC transport. Run must be called to process signals.
func New(signaler transport.Signaler, stunServers []string, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Transport{
		config:      Configuration(stunServers),
		signaler:    signaler,
		logger:      logger,
		connections: make(map[string]*connection),
		incoming:    make(chan transport.Conn, 16),
	}
}

func connKey(peerID, connID string) string {
	return peerID + "/" + connID
}

func (t *Transport) Connect(ctx context.Context, peerID string, metadata transport.ConnectionMetadata) (transport.Conn, error) {
	label, err := encodeLabel(metadata)
	if err != nil {
		return nil, err
	}

	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	conn := newConnection(uuid.NewString(), peerID, pc, t.logger)
	conn.metadata = metadata
	if err := t.register(conn); err != nil {
		_ = pc.Close()
		return nil, err
	}

	if err := t.offer(ctx, conn, label); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

func (t *Transport) offer(ctx context.Context, conn *connection, label string) error {
	dc, err := conn.pc.CreateDataChannel(label, DefaultDataChannelConfig())
	if err != nil {
		return fmt.Errorf("failed to create data channel: %w", err)
	}
	conn.setupDataChannel(dc, nil)

	offer, err := conn.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	if err := t.describe(ctx, conn, offer); err != nil {
		return err
	}

	t.logger.Debugf("Sending offer to %s for channel %s", conn.peerID, conn.id)
	return t.sendDescription(ctx, conn)
}

// describe sets the local description and waits for ICE gathering.
func (t *Transport) describe(ctx context.Context, conn *connection, desc webrtc.SessionDescription) error {
	gathered := webrtc.GatheringCompletePromise(conn.pc)
	if err := conn.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("failed to set local description: %w", err)
	}

	select {
	case <-gathered:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transport) sendDescription(ctx context.Context, conn *connection) error {
	payload, err := encodeEnvelope(envelope{ConnID: conn.id, SDP: *conn.pc.LocalDescription()})
	if err != nil {
		return err
	}
	if err := t.signaler.SendSignal(ctx, conn.peerID, payload); err != nil {
		return fmt.Errorf("failed to send %s: %w", conn.pc.LocalDescription().Type, err)
	}
	return nil
}

// HandleSignal applies an offer or answer from a remote peer.
func (t *Transport) HandleSignal(ctx context.Context, signal transport.Signal) error {
	env, err := decodeEnvelope(signal.Payload)
	if err != nil {
		return err
	}

	switch env.SDP.Type {
	case webrtc.SDPTypeOffer:
		return t.answer(ctx, signal.PeerID, env)

	case webrtc.SDPTypeAnswer:
		t.mu.Lock()
		conn, exists := t.connections[connKey(signal.PeerID, env.ConnID)]
		t.mu.Unlock()
		if !exists {
			return fmt.Errorf("%w: no channel %s to %s", transport.ErrUnknownPeer, env.ConnID, signal.PeerID)
		}
		if err := conn.pc.SetRemoteDescription(env.SDP); err != nil {
			return fmt.Errorf("failed to set remote description: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unexpected signal type %s", env.SDP.Type)
	}
}

func (t *Transport) answer(ctx context.Context, peerID string, env envelope) error {
	pc, err := webrtc.NewPeerConnection(t.config)
	if err != nil {
		return fmt.Errorf("failed to create peer connection: %w", err)
	}

	conn := newConnection(env.ConnID, peerID, pc, t.logger)
	if err := t.register(conn); err != nil {
		_ = pc.Close()
		return err
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		md, err := decodeLabel(dc.Label())
		if err != nil {
			conn.log.Warnf("Rejecting data channel: %v", err)
			_ = conn.Close()
			return
		}
		conn.metadata = md
		conn.setupDataChannel(dc, func() { t.deliver(conn) })
	})

	if err := pc.SetRemoteDescription(env.SDP); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to set remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to create answer: %w", err)
	}
	if err := t.describe(ctx, conn, answer); err != nil {
		_ = conn.Close()
		return err
	}

	t.logger.Debugf("Sending answer to %s for channel %s", peerID, conn.id)
	if err := t.sendDescription(ctx, conn); err != nil {
		_ = conn.Close()
		return err
	}
	return nil
}

func (t *Transport) register(conn *connection) error {
	key := connKey(conn.peerID, conn.id)

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return transport.ErrClosed
	}
	if _, exists := t.connections[key]; exists {
		return fmt.Errorf("%w: %s", transport.ErrChannelInUse, key)
	}
	t.connections[key] = conn
	conn.onClose = func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.connections[key] == conn {
			delete(t.connections, key)
		}
	}
	return nil
}

func (t *Transport) deliver(conn *connection) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	select {
	case t.incoming <- conn:
	default:
		t.logger.Warnf("Dropping incoming channel from %s: accept queue full", conn.peerID)
		go conn.Close()
	}
}

func (t *Transport) Accept() <-chan transport.Conn {
	return t.incoming
}

// Run handles signals until ctx is done or the signaler stops.
func (t *Transport) Run(ctx context.Context) error {
	signals := t.signaler.RecvSignal()
	for {
		select {
		case signal, ok := <-signals:
			if !ok {
				return nil
			}
			go func() {
				if err := t.HandleSignal(ctx, signal); err != nil {
					t.logger.Warnf("Error handling signal from %s: %v", signal.PeerID, err)
				}
			}()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conns := make([]*connection, 0, len(t.connections))
	for _, conn := range t.connections {
		conns = append(conns, conn)
	}
	close(t.incoming)
	t.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
