package transfer

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
)

const inboxSize = 8

// Dialer opens the data channel for a send session.
type Dialer func(ctx context.Context) (transport.Conn, error)

// Status is a point-in-time snapshot of a session.
type Status struct {
	ID         string
	PeerID     string
	Direction  Direction
	File       FileDescriptor
	State      string
	Bytes      int64
	Reason     string
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports whether the session finished and delivered the file.
func (s Status) Succeeded() bool {
	return s.State == SenderCompleted.String()
}

type session struct {
	id        string
	peerID    string
	direction Direction
	file      FileDescriptor
	cfg       Config
	listener  Listener
	log       *logrus.Entry

	conn  transport.Conn
	inbox chan Event
	done  chan struct{}
	timer *stepTimer

	mu     sync.Mutex
	status Status
}

func newSession(id, peerID string, dir Direction, file FileDescriptor, cfg Config, listener Listener, log *logrus.Logger) session {
	if listener == nil {
		listener = NopListener{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return session{
		id:        id,
		peerID:    peerID,
		direction: dir,
		file:      file,
		cfg:       cfg,
		listener:  listener,
		log: log.WithFields(logrus.Fields{
			"session":   id,
			"peer":      peerID,
			"direction": dir,
		}),
		inbox: make(chan Event, inboxSize),
		done:  make(chan struct{}),
		timer: newStepTimer(cfg.StepTimeout),
		status: Status{
			ID:        id,
			PeerID:    peerID,
			Direction: dir,
			File:      file,
			StartedAt: time.Now(),
		},
	}
}

func (s *session) ID() string {
	return s.id
}

func (s *session) PeerID() string {
	return s.peerID
}

func (s *session) Direction() Direction {
	return s.direction
}

func (s *session) File() FileDescriptor {
	return s.file
}

// Done is closed once the session reaches a terminal state.
func (s *session) Done() <-chan struct{} {
	return s.done
}

func (s *session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) Wait(ctx context.Context) (Status, error) {
	select {
	case <-s.done:
		return s.Status(), nil
	case <-ctx.Done():
		return s.Status(), ctx.Err()
	}
}

func (s *session) post(ev Event) error {
	select {
	case <-s.done:
		return ErrSessionNotFound
	default:
	}
	select {
	case s.inbox <- ev:
		return nil
	case <-s.done:
		return ErrSessionNotFound
	}
}

func (s *session) setState(state string, n int64) {
	s.mu.Lock()
	prev := s.status.State
	s.status.State = state
	s.status.Bytes = n
	s.mu.Unlock()

	if prev != state {
		s.log.Debugf("State %s -> %s", prev, state)
	}
}

func (s *session) setFailure(reason string, err error) {
	s.mu.Lock()
	s.status.Reason = reason
	s.status.Err = err
	s.mu.Unlock()
}

func (s *session) finish() {
	s.timer.stop()
	s.mu.Lock()
	s.status.FinishedAt = time.Now()
	s.mu.Unlock()
	close(s.done)
}

func (s *session) sendFrame(f protocol.Frame) error {
	data, err := protocol.EncodeFrame(f)
	if err != nil {
		return err
	}
	return s.conn.Send(data)
}

func (s *session) decodeFrame(msg []byte) (protocol.Frame, bool) {
	f, err := protocol.DecodeFrame(msg)
	if err != nil {
		s.log.Warnf("Dropping malformed message: %v", err)
		return protocol.Frame{}, false
	}
	return f, true
}

func (s *session) closeConn(graceful bool) {
	conn := s.conn
	if conn == nil {
		return
	}
	if graceful && s.cfg.CloseGrace > 0 {
		time.AfterFunc(s.cfg.CloseGrace, func() { _ = conn.Close() })
		return
	}
	if err := conn.Close(); err != nil {
		s.log.Debugf("Error closing channel: %v", err)
	}
}

func (s *session) progress(p ReportProgress) {
	s.listener.Progress(Progress{
		SessionID: s.id,
		PeerID:    s.peerID,
		Direction: s.direction,
		File:      s.file,
		Bytes:     p.Bytes,
		Total:     p.Total,
		Fraction:  p.Fraction(),
	})
}

func (s *session) failed(f Fail) {
	s.setFailure(f.Reason, f.Err)
	s.log.Warnf("Transfer failed: %s: %v", f.Reason, f.Err)
	s.listener.Failed(Failure{
		SessionID: s.id,
		PeerID:    s.peerID,
		Direction: s.direction,
		File:      s.file,
		Reason:    f.Reason,
		Err:       f.Err,
	})
}

func (s *session) completed(data []byte) {
	s.log.Infof("Transfer of %s complete (%d bytes)", s.file.Name, s.file.Size)
	s.listener.Complete(Completion{
		SessionID: s.id,
		PeerID:    s.peerID,
		Direction: s.direction,
		File:      s.file,
		Data:      data,
	})
}

type dialResult struct {
	conn transport.Conn
	err  error
}

// SendSession drives a Sender over one data channel.
type SendSession struct {
	session
	machine Sender
	reader  *ChunkReader
	dial    Dialer
	dials   chan dialResult
	reads   chan Event
	dialing bool
}

func newSendSession(id, peerID string, file FileDescriptor, reader *ChunkReader, dial Dialer, cfg Config, listener Listener, log *logrus.Logger) *SendSession {
	s := &SendSession{
		session: newSession(id, peerID, DirectionSend, file, cfg, listener, log),
		machine: NewSender(file.Size),
		reader:  reader,
		dial:    dial,
		dials:   make(chan dialResult, 1),
		reads:   make(chan Event, 1),
	}
	s.status.State = s.machine.State.String()
	return s
}

// Cancel fails the session with ReasonCancelled.
func (s *SendSession) Cancel() error {
	return s.post(Cancelled{})
}

func (s *SendSession) run(ctx context.Context) {
	defer s.finish()
	defer s.releaseDial()

	dialCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		opened <-chan struct{}
		recv   <-chan []byte
	)

	s.apply(dialCtx, SendRequested{})
	for !s.machine.Terminal() {
		select {
		case res := <-s.dials:
			s.dialing = false
			if res.err != nil {
				s.apply(dialCtx, ConnectFailed{Err: res.err})
				continue
			}
			s.conn = res.conn
			opened, recv = res.conn.Opened(), res.conn.Recv()

		case <-opened:
			opened = nil
			s.apply(dialCtx, ChannelOpened{})

		case msg, ok := <-recv:
			if !ok {
				recv = nil
				s.apply(dialCtx, ChannelClosed{})
				continue
			}
			// a message implies the channel is open even if the open
			// notification has not been observed yet
			if opened != nil {
				opened = nil
				s.apply(dialCtx, ChannelOpened{})
			}
			if f, ok := s.decodeFrame(msg); ok {
				s.apply(dialCtx, FrameReceived{Frame: f})
			}

		case ev := <-s.reads:
			s.apply(dialCtx, ev)

		case ev := <-s.inbox:
			s.apply(dialCtx, ev)

		case <-s.timer.C():
			s.apply(dialCtx, TimedOut{})

		case <-ctx.Done():
			s.apply(dialCtx, Cancelled{})
		}
	}
}

// releaseDial closes a channel whose dial finishes after the session ended.
func (s *SendSession) releaseDial() {
	if !s.dialing {
		return
	}
	go func() {
		if res := <-s.dials; res.conn != nil {
			_ = res.conn.Close()
		}
	}()
}

func (s *SendSession) apply(ctx context.Context, ev Event) {
	before := s.machine
	queue := []Event{ev}
	for len(queue) > 0 {
		ev, queue = queue[0], queue[1:]

		var effects []Effect
		s.machine, effects = s.machine.Step(ev)
		for _, eff := range effects {
			if next := s.execute(ctx, eff); next != nil {
				queue = append(queue, next)
			}
		}
	}

	if s.machine.State == SenderRejected {
		s.setFailure(ReasonCancelled, ErrCancelled)
	}
	s.setState(s.machine.State.String(), s.machine.BytesSent)
	if s.machine.Waiting() {
		s.timer.restart(s.machine != before)
	} else {
		s.timer.stop()
	}
}

func (s *SendSession) execute(ctx context.Context, eff Effect) Event {
	switch eff := eff.(type) {
	case OpenChannel:
		s.dialing = true
		go func() {
			conn, err := s.dial(ctx)
			s.dials <- dialResult{conn: conn, err: err}
		}()

	case ReadChunk:
		go func() {
			data, err := s.reader.Next()
			if err != nil {
				s.reads <- ReadFailed{Err: err}
				return
			}
			s.reads <- ChunkRead{Data: data}
		}()

	case SendFrame:
		if err := s.sendFrame(eff.Frame); err != nil {
			s.log.Warnf("Error sending %s: %v", eff.Frame, err)
			return ChannelClosed{}
		}

	case ReportProgress:
		s.progress(eff)

	case Complete:
		s.completed(nil)

	case Fail:
		s.failed(eff)

	case CloseChannel:
		s.closeConn(eff.Graceful)

	case Violation:
		s.log.Warnf("Dropping message: %v", eff.Err)
	}
	return nil
}

// ReceiveSession drives a Receiver over an accepted data channel and
// reassembles the file in memory.
type ReceiveSession struct {
	session
	machine Receiver
	chunks  [][]byte
}

func newReceiveSession(id string, conn transport.Conn, cfg Config, listener Listener, log *logrus.Logger) *ReceiveSession {
	file := DescriptorFromMetadata(conn.Metadata())
	s := &ReceiveSession{
		session: newSession(id, conn.PeerID(), DirectionReceive, file, cfg, listener, log),
		machine: NewReceiver(),
	}
	s.conn = conn
	s.status.State = s.machine.State.String()
	return s
}

func (s *ReceiveSession) Accept() error {
	return s.decide(Accepted{})
}

func (s *ReceiveSession) Decline() error {
	return s.decide(Declined{})
}

func (s *ReceiveSession) Cancel() error {
	return s.post(Cancelled{})
}

func (s *ReceiveSession) decide(ev Event) error {
	if s.Status().State != ReceiverAwaitingUserDecision.String() {
		select {
		case <-s.done:
			return ErrSessionNotFound
		default:
			return ErrInvalidDecision
		}
	}
	return s.post(ev)
}

func (s *ReceiveSession) run(ctx context.Context) {
	defer s.finish()

	recv := s.conn.Recv()
	s.apply(OfferReceived{File: s.file})
	for !s.machine.Terminal() {
		select {
		case msg, ok := <-recv:
			if !ok {
				recv = nil
				s.apply(ChannelClosed{})
				continue
			}
			if f, ok := s.decodeFrame(msg); ok {
				s.apply(FrameReceived{Frame: f})
			}

		case ev := <-s.inbox:
			s.apply(ev)

		case <-s.timer.C():
			s.apply(TimedOut{})

		case <-ctx.Done():
			s.apply(Cancelled{})
		}
	}
}

func (s *ReceiveSession) apply(ev Event) {
	before := s.machine
	queue := []Event{ev}
	for len(queue) > 0 {
		ev, queue = queue[0], queue[1:]

		var effects []Effect
		s.machine, effects = s.machine.Step(ev)
		for _, eff := range effects {
			if next := s.execute(eff); next != nil {
				queue = append(queue, next)
			}
		}
	}

	if s.machine.State == ReceiverRejected {
		s.setFailure(ReasonDeclined, nil)
	}
	s.setState(s.machine.State.String(), s.machine.ReceivedSize)
	if s.machine.Waiting() {
		s.timer.restart(s.machine != before)
	} else {
		s.timer.stop()
	}
}

func (s *ReceiveSession) execute(eff Effect) Event {
	switch eff := eff.(type) {
	case RequestDecision:
		// listeners may decide synchronously
		s.setState(s.machine.State.String(), s.machine.ReceivedSize)
		s.log.Infof("Incoming transfer of %s (%d bytes)", eff.File.Name, eff.File.Size)
		s.listener.IncomingTransferRequest(IncomingRequest{
			SessionID: s.id,
			PeerID:    s.peerID,
			File:      eff.File,
		})

	case SendFrame:
		if err := s.sendFrame(eff.Frame); err != nil {
			s.log.Warnf("Error sending %s: %v", eff.Frame, err)
			return ChannelClosed{}
		}

	case AppendChunk:
		// payloads alias the transport buffer
		s.chunks = append(s.chunks, bytes.Clone(eff.Data))

	case ReportProgress:
		s.progress(eff)

	case Complete:
		data := bytes.Join(s.chunks, nil)
		if data == nil {
			data = []byte{}
		}
		s.chunks = nil
		s.completed(data)

	case Fail:
		s.chunks = nil
		s.failed(eff)

	case CloseChannel:
		s.closeConn(eff.Graceful)

	case Violation:
		s.log.Warnf("Dropping message: %v", eff.Err)
	}
	return nil
}
