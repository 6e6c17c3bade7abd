package transfer

import "github.com/rudransh-shrivastava/peer-drop/internal/protocol"

// Event is an input to a state machine.
type Event interface {
	event()
}

type (
	SendRequested struct{}
	ChannelOpened struct{}
	ConnectFailed struct{ Err error }
	FrameReceived struct{ Frame protocol.Frame }
	ChunkRead     struct{ Data []byte }
	ReadFailed    struct{ Err error }
	ChannelClosed struct{}
	TimedOut      struct{}
	Cancelled     struct{}
	OfferReceived struct{ File FileDescriptor }
	Accepted      struct{}
	Declined      struct{}
)

func (SendRequested) event() {}
func (ChannelOpened) event() {}
func (ConnectFailed) event() {}
func (FrameReceived) event() {}
func (ChunkRead) event()     {}
func (ReadFailed) event()    {}
func (ChannelClosed) event() {}
func (TimedOut) event()      {}
func (Cancelled) event()     {}
func (OfferReceived) event() {}
func (Accepted) event()      {}
func (Declined) event()      {}

// Effect is an action a state machine asks its session to perform.
type Effect interface {
	effect()
}

type (
	OpenChannel     struct{}
	ReadChunk       struct{}
	SendFrame       struct{ Frame protocol.Frame }
	AppendChunk     struct{ Data []byte }
	ReportProgress  struct{ Bytes, Total int64 }
	RequestDecision struct{ File FileDescriptor }
	Complete        struct{}
	Fail            struct {
		Reason string
		Err    error
	}
	CloseChannel struct{ Graceful bool }
	Violation    struct{ Err error }
)

func (OpenChannel) effect()     {}
func (ReadChunk) effect()       {}
func (SendFrame) effect()       {}
func (AppendChunk) effect()     {}
func (ReportProgress) effect()  {}
func (RequestDecision) effect() {}
func (Complete) effect()        {}
func (Fail) effect()            {}
func (CloseChannel) effect()    {}
func (Violation) effect()       {}

// Fraction is Bytes/Total, or 1 for an empty file.
func (p ReportProgress) Fraction() float64 {
	return fraction(p.Bytes, p.Total)
}

func fraction(n, total int64) float64 {
	if total <= 0 {
		return 1
	}
	return float64(n) / float64(total)
}
