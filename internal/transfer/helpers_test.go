package transfer

import (
	"sync"
	"testing"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 2 * time.Second

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CloseGrace = 10 * time.Millisecond
	return cfg
}

func testLogger() (*logrus.Logger, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return logger, hook
}

// mockConn is an instrumented channel. It counts DATA frames sent but not yet
// acknowledged by frames delivered through deliver.
type mockConn struct {
	peerID   string
	metadata transport.ConnectionMetadata
	opened   chan struct{}
	recv     chan []byte
	sent     chan protocol.Frame

	mu             sync.Mutex
	closed         bool
	outstanding    int
	maxOutstanding int
	dataBytes      int
}

func newMockConn(peerID string, md transport.ConnectionMetadata) *mockConn {
	opened := make(chan struct{})
	close(opened)
	return &mockConn{
		peerID:   peerID,
		metadata: md,
		opened:   opened,
		recv:     make(chan []byte, 64),
		sent:     make(chan protocol.Frame, 64),
	}
}

func (c *mockConn) PeerID() string                         { return c.peerID }
func (c *mockConn) Metadata() transport.ConnectionMetadata { return c.metadata }
func (c *mockConn) Opened() <-chan struct{}                { return c.opened }
func (c *mockConn) Recv() <-chan []byte                    { return c.recv }

func (c *mockConn) Send(data []byte) error {
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		return err
	}
	f.Payload = append([]byte(nil), f.Payload...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return transport.ErrClosed
	}
	if f.Kind == protocol.FrameData {
		c.outstanding++
		c.dataBytes += len(f.Payload)
		if c.outstanding > c.maxOutstanding {
			c.maxOutstanding = c.outstanding
		}
	}
	c.sent <- f
	return nil
}

func (c *mockConn) deliver(t *testing.T, f protocol.Frame) {
	t.Helper()
	data, err := protocol.EncodeFrame(f)
	require.NoError(t, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if f.Kind == protocol.FrameAck {
		c.outstanding--
	}
	c.recv <- data
}

// deliverRaw hands the session bytes that need not decode as a frame.
func (c *mockConn) deliverRaw(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.recv <- data
	}
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.recv)
	}
	return nil
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) stats() (maxOutstanding, dataBytes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxOutstanding, c.dataBytes
}

func (c *mockConn) next(t *testing.T) protocol.Frame {
	t.Helper()
	select {
	case f := <-c.sent:
		return f
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a frame")
		return protocol.Frame{}
	}
}

func (c *mockConn) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case f := <-c.sent:
		t.Fatalf("unexpected frame %s", f)
	case <-time.After(d):
	}
}

type recordingListener struct {
	mu          sync.Mutex
	requests    []IncomingRequest
	progress    []Progress
	completions []Completion
	failures    []Failure

	requested chan IncomingRequest
}

func newRecordingListener() *recordingListener {
	return &recordingListener{requested: make(chan IncomingRequest, 16)}
}

func (l *recordingListener) IncomingTransferRequest(req IncomingRequest) {
	l.mu.Lock()
	l.requests = append(l.requests, req)
	l.mu.Unlock()
	l.requested <- req
}

func (l *recordingListener) Progress(p Progress) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = append(l.progress, p)
}

func (l *recordingListener) Complete(c Completion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.completions = append(l.completions, c)
}

func (l *recordingListener) Failed(f Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, f)
}

func (l *recordingListener) snapshot() (progress []Progress, completions []Completion, failures []Failure) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Progress(nil), l.progress...),
		append([]Completion(nil), l.completions...),
		append([]Failure(nil), l.failures...)
}

func (l *recordingListener) nextRequest(t *testing.T) IncomingRequest {
	t.Helper()
	select {
	case req := <-l.requested:
		return req
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for an incoming request")
		return IncomingRequest{}
	}
}

func waitDone(t *testing.T, s Session) Status {
	t.Helper()
	select {
	case <-s.Done():
		return s.Status()
	case <-time.After(waitTimeout):
		t.Fatalf("session %s did not finish, state %s", s.ID(), s.Status().State)
		return Status{}
	}
}

func patterned(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i*7 + i/251)
	}
	return b
}
