package transfer

import (
	"errors"

	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
)

// Sender is the sending half of the transfer protocol. It is a value: Step
// returns the next Sender and the effects the session has to carry out.
//
// Transmission is stop-and-wait. At most one chunk is in flight, and the next
// chunk is only read once the previous one has been acknowledged.
type Sender struct {
	State     SenderState
	Size      int64
	BytesSent int64
	// NextSeq is the sequence number of the next DATA frame.
	NextSeq  uint32
	inFlight bool
	reading  bool
}

func NewSender(size int64) Sender {
	return Sender{State: SenderIdle, Size: size}
}

func (s Sender) Terminal() bool {
	return s.State == SenderCompleted || s.State == SenderRejected || s.State == SenderFailed
}

// Waiting reports whether the sender is blocked on its peer or channel, which
// is when the step timer runs. AwaitingReady is left out: READY follows a
// human decision on the other side, and the receiver never times that either.
func (s Sender) Waiting() bool {
	switch s.State {
	case SenderAwaitingChannelOpen, SenderSending, SenderAwaitingFinalAck:
		return true
	default:
		return false
	}
}

// InFlight reports whether a sent chunk is waiting for its ACK.
func (s Sender) InFlight() bool {
	return s.inFlight
}

func (s Sender) Step(ev Event) (Sender, []Effect) {
	switch ev := ev.(type) {
	case SendRequested:
		if s.State != SenderIdle {
			return s, s.violation("send requested in state %s", s.State)
		}
		s.State = SenderAwaitingChannelOpen
		return s, []Effect{OpenChannel{}}

	case ChannelOpened:
		if s.State != SenderAwaitingChannelOpen {
			return s, s.violation("channel opened in state %s", s.State)
		}
		s.State = SenderAwaitingReady
		return s, nil

	case ConnectFailed:
		if s.State != SenderAwaitingChannelOpen {
			return s, nil
		}
		return s.fail(ReasonConnectFailed, errors.Join(ErrConnectFailed, ev.Err))

	case FrameReceived:
		return s.onFrame(ev.Frame)

	case ChunkRead:
		return s.onChunk(ev.Data)

	case ReadFailed:
		if s.Terminal() {
			return s, nil
		}
		return s.fail(ReasonSourceRead, ev.Err)

	case ChannelClosed:
		if s.Terminal() {
			return s, nil
		}
		return s.fail(ReasonConnectionLost, ErrChannelClosed)

	case TimedOut:
		if !s.Waiting() {
			return s, nil
		}
		return s.fail(ReasonTimeout, ErrTimeout)

	case Cancelled:
		switch {
		case s.State == SenderIdle:
			s.State = SenderRejected
			return s, nil
		case s.Terminal():
			return s, nil
		}
		return s.fail(ReasonCancelled, ErrCancelled)

	default:
		return s, s.violation("sender cannot handle %T", ev)
	}
}

func (s Sender) onFrame(f protocol.Frame) (Sender, []Effect) {
	if s.Terminal() {
		return s, nil
	}

	switch f.Kind {
	case protocol.FrameReady:
		if s.State != SenderAwaitingReady {
			return s, s.violation("READY in state %s", s.State)
		}
		if s.Size == 0 {
			s.State = SenderCompleted
			return s, []Effect{Complete{}, CloseChannel{Graceful: true}}
		}
		s.State = SenderSending
		s.reading = true
		return s, []Effect{ReadChunk{}}

	case protocol.FrameAck:
		if !s.inFlight {
			return s, s.violation("ACK seq=%d with no chunk in flight", f.Seq)
		}
		if want := s.NextSeq - 1; f.Seq != want {
			return s, s.violation("ACK seq=%d, expected %d", f.Seq, want)
		}
		s.inFlight = false
		if s.State == SenderAwaitingFinalAck {
			s.State = SenderCompleted
			return s, []Effect{Complete{}, CloseChannel{Graceful: true}}
		}
		s.reading = true
		return s, []Effect{ReadChunk{}}

	default:
		return s, s.violation("sender received %s", f.Kind)
	}
}

func (s Sender) onChunk(data []byte) (Sender, []Effect) {
	if s.Terminal() {
		return s, nil
	}
	if s.State != SenderSending || !s.reading {
		return s, s.violation("unexpected chunk in state %s", s.State)
	}
	s.reading = false

	if len(data) == 0 || s.BytesSent+int64(len(data)) > s.Size {
		return s.fail(ReasonSourceRead, &SourceReadError{Offset: s.BytesSent, Err: errors.New("source does not match declared size")})
	}

	seq := s.NextSeq
	s.NextSeq++
	s.BytesSent += int64(len(data))
	s.inFlight = true
	if s.BytesSent == s.Size {
		s.State = SenderAwaitingFinalAck
	}

	return s, []Effect{
		SendFrame{Frame: protocol.Data(seq, data)},
		ReportProgress{Bytes: s.BytesSent, Total: s.Size},
	}
}

func (s Sender) fail(reason string, err error) (Sender, []Effect) {
	s.State = SenderFailed
	s.inFlight = false
	s.reading = false
	return s, []Effect{Fail{Reason: reason, Err: err}, CloseChannel{}}
}

func (s Sender) violation(format string, args ...any) []Effect {
	return []Effect{Violation{Err: violation(format, args...)}}
}
