package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

// Session is the part of a send or receive session the manager exposes.
type Session interface {
	ID() string
	PeerID() string
	Direction() Direction
	File() FileDescriptor
	Status() Status
	Done() <-chan struct{}
	Wait(ctx context.Context) (Status, error)
	Cancel() error
}

// Record is what the manager hands to its Recorder once a session ends.
type Record struct {
	SessionID  string
	PeerID     string
	Direction  Direction
	File       FileDescriptor
	State      string
	Reason     string
	Bytes      int64
	StartedAt  time.Time
	FinishedAt time.Time
}

type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

type Options struct {
	Transport transport.Transport
	// Config defaults to DefaultConfig when zero.
	Config   Config
	Listener Listener
	Recorder Recorder
	Logger   *logrus.Logger
}

// Manager owns the live sessions of one node. Sessions are registered when
// they start and removed when they reach a terminal state.
type Manager struct {
	transport transport.Transport
	cfg       Config
	listener  Listener
	recorder  Recorder
	logger    *logrus.Logger

	mu       sync.Mutex
	sessions map[string]Session
	byPeer   map[string]map[string]struct{}
	wg       sync.WaitGroup
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Transport == nil {
		return nil, errors.New("transport is required")
	}
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transfer config: %w", err)
	}
	listener := opts.Listener
	if listener == nil {
		listener = NopListener{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Manager{
		transport: opts.Transport,
		cfg:       cfg,
		listener:  listener,
		recorder:  opts.Recorder,
		logger:    logger,
		sessions:  make(map[string]Session),
		byPeer:    make(map[string]map[string]struct{}),
	}, nil
}

// Run starts a receive session for every inbound channel until ctx is done or
// the transport stops accepting.
func (m *Manager) Run(ctx context.Context) error {
	incoming := m.transport.Accept()
	for {
		select {
		case conn, ok := <-incoming:
			if !ok {
				return nil
			}
			if _, err := m.receive(ctx, conn); err != nil {
				m.logger.Warnf("Rejecting channel from %s: %v", conn.PeerID(), err)
				_ = conn.Close()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *Manager) receive(ctx context.Context, conn transport.Conn) (*ReceiveSession, error) {
	if err := conn.Metadata().Validate(); err != nil {
		return nil, err
	}

	s := newReceiveSession(uuid.NewString(), conn, m.cfg, m.listener, m.logger)
	m.start(ctx, s, s.run)
	return s, nil
}

// Send offers file to peerID and streams src once the peer accepts. src must
// yield exactly file.Size bytes. The session stops when ctx is cancelled.
func (m *Manager) Send(ctx context.Context, peerID string, file FileDescriptor, src io.Reader) (*SendSession, error) {
	if err := file.Metadata().Validate(); err != nil {
		return nil, err
	}
	reader, err := NewChunkReader(src, file.Size, m.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	dial := func(ctx context.Context) (transport.Conn, error) {
		return m.transport.Connect(ctx, peerID, file.Metadata())
	}
	s := newSendSession(uuid.NewString(), peerID, file, reader, dial, m.cfg, m.listener, m.logger)
	m.start(ctx, s, s.run)
	return s, nil
}

// SendFile sends the file at path and closes it when the session ends.
func (m *Manager) SendFile(ctx context.Context, peerID, path string) (*SendSession, error) {
	f, desc, err := OpenFile(path)
	if err != nil {
		return nil, err
	}

	s, err := m.Send(ctx, peerID, desc, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	go func() {
		<-s.Done()
		_ = f.Close()
	}()
	return s, nil
}

func (m *Manager) Accept(id string) error {
	s, err := m.receiveSession(id)
	if err != nil {
		return err
	}
	return s.Accept()
}

func (m *Manager) Decline(id string) error {
	s, err := m.receiveSession(id)
	if err != nil {
		return err
	}
	return s.Decline()
}

func (m *Manager) Cancel(id string) error {
	s, ok := m.Session(id)
	if !ok {
		return ErrSessionNotFound
	}
	return s.Cancel()
}

func (m *Manager) receiveSession(id string) (*ReceiveSession, error) {
	s, ok := m.Session(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	rs, ok := s.(*ReceiveSession)
	if !ok {
		return nil, fmt.Errorf("%w: %s is a send session", ErrInvalidDecision, id)
	}
	return rs, nil
}

func (m *Manager) Session(id string) (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions returns the live sessions, oldest first.
func (m *Manager) Sessions() []Session {
	m.mu.Lock()
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.Unlock()

	sortSessions(out)
	return out
}

func (m *Manager) SessionsForPeer(peerID string) []Session {
	m.mu.Lock()
	out := make([]Session, 0, len(m.byPeer[peerID]))
	for id := range m.byPeer[peerID] {
		out = append(out, m.sessions[id])
	}
	m.mu.Unlock()

	sortSessions(out)
	return out
}

// Wait blocks until every started session has ended and been recorded.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func (m *Manager) start(ctx context.Context, s Session, run func(context.Context)) {
	m.mu.Lock()
	m.sessions[s.ID()] = s
	ids, ok := m.byPeer[s.PeerID()]
	if !ok {
		ids = make(map[string]struct{})
		m.byPeer[s.PeerID()] = ids
	}
	ids[s.ID()] = struct{}{}
	m.mu.Unlock()

	m.logger.Debugf("Started %s session %s with %s for %s", s.Direction(), s.ID(), s.PeerID(), s.File().Name)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		run(ctx)
		m.remove(s)
		m.record(context.WithoutCancel(ctx), s.Status())
	}()
}

func (m *Manager) remove(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, s.ID())
	if ids, ok := m.byPeer[s.PeerID()]; ok {
		delete(ids, s.ID())
		if len(ids) == 0 {
			delete(m.byPeer, s.PeerID())
		}
	}
}

func (m *Manager) record(ctx context.Context, st Status) {
	if m.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := m.recorder.Record(ctx, Record{
		SessionID:  st.ID,
		PeerID:     st.PeerID,
		Direction:  st.Direction,
		File:       st.File,
		State:      st.State,
		Reason:     st.Reason,
		Bytes:      st.Bytes,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
	})
	if err != nil {
		m.logger.Warnf("Error recording session %s: %v", st.ID, err)
	}
}

func sortSessions(ss []Session) {
	sort.Slice(ss, func(i, j int) bool {
		return ss[i].Status().StartedAt.Before(ss[j].Status().StartedAt)
	})
}
