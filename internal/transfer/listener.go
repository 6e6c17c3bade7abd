package transfer

type Direction string

const (
	DirectionSend    Direction = "send"
	DirectionReceive Direction = "receive"
)

type IncomingRequest struct {
	SessionID string
	PeerID    string
	File      FileDescriptor
}

type Progress struct {
	SessionID string
	PeerID    string
	Direction Direction
	File      FileDescriptor
	Bytes     int64
	Total     int64
	Fraction  float64
}

// Completion is delivered once per successful session. Data holds the
// reassembled file on the receiving side and is nil on the sending side.
type Completion struct {
	SessionID string
	PeerID    string
	Direction Direction
	File      FileDescriptor
	Data      []byte
}

type Failure struct {
	SessionID string
	PeerID    string
	Direction Direction
	File      FileDescriptor
	Reason    string
	Err       error
}

// Listener receives session notifications. Calls are made from the session's
// goroutine and should return quickly.
type Listener interface {
	IncomingTransferRequest(req IncomingRequest)
	Progress(p Progress)
	Complete(c Completion)
	Failed(f Failure)
}

type NopListener struct{}

func (NopListener) IncomingTransferRequest(IncomingRequest) {}
func (NopListener) Progress(Progress)                       {}
func (NopListener) Complete(Completion)                     {}
func (NopListener) Failed(Failure)                          {}

// Listeners fans notifications out in order.
type Listeners []Listener

func (ls Listeners) IncomingTransferRequest(req IncomingRequest) {
	for _, l := range ls {
		l.IncomingTransferRequest(req)
	}
}

func (ls Listeners) Progress(p Progress) {
	for _, l := range ls {
		l.Progress(p)
	}
}

func (ls Listeners) Complete(c Completion) {
	for _, l := range ls {
		l.Complete(c)
	}
}

func (ls Listeners) Failed(f Failure) {
	for _, l := range ls {
		l.Failed(f)
	}
}
