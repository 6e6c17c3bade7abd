package transfer

import "github.com/rudransh-shrivastava/peer-drop/internal/protocol"

// Receiver is the receiving half of the transfer protocol. Nothing is
// acknowledged or counted before the user accepts the offer.
type Receiver struct {
	State        ReceiverState
	File         FileDescriptor
	ReceivedSize int64
	// NextSeq is the sequence number the next DATA frame must carry.
	NextSeq uint32
}

func NewReceiver() Receiver {
	return Receiver{State: ReceiverIdle}
}

func (r Receiver) Terminal() bool {
	return r.State == ReceiverCompleted || r.State == ReceiverRejected || r.State == ReceiverFailed
}

// Waiting reports whether the step timer should run. The user decision is
// never timed.
func (r Receiver) Waiting() bool {
	return r.State == ReceiverAwaitingFirstChunk || r.State == ReceiverReceiving
}

func (r Receiver) Accepted() bool {
	return r.State == ReceiverAwaitingFirstChunk || r.State == ReceiverReceiving || r.State == ReceiverCompleted
}

func (r Receiver) Step(ev Event) (Receiver, []Effect) {
	switch ev := ev.(type) {
	case OfferReceived:
		if r.State != ReceiverIdle {
			return r, r.violation("offer in state %s", r.State)
		}
		r.State = ReceiverAwaitingUserDecision
		r.File = ev.File
		return r, []Effect{RequestDecision{File: ev.File}}

	case Accepted:
		if r.State != ReceiverAwaitingUserDecision {
			return r, []Effect{Violation{Err: ErrInvalidDecision}}
		}
		effects := []Effect{SendFrame{Frame: protocol.Ready()}}
		if r.File.Size == 0 {
			r.State = ReceiverCompleted
			return r, append(effects, Complete{}, CloseChannel{Graceful: true})
		}
		r.State = ReceiverAwaitingFirstChunk
		return r, effects

	case Declined:
		if r.State != ReceiverAwaitingUserDecision {
			return r, []Effect{Violation{Err: ErrInvalidDecision}}
		}
		r.State = ReceiverRejected
		return r, []Effect{CloseChannel{}}

	case FrameReceived:
		return r.onFrame(ev.Frame)

	case ChannelClosed:
		if r.Terminal() {
			return r, nil
		}
		return r.fail(ReasonIncomplete, ErrChannelClosed)

	case TimedOut:
		if !r.Waiting() {
			return r, nil
		}
		return r.fail(ReasonTimeout, ErrTimeout)

	case Cancelled:
		if r.Terminal() {
			return r, nil
		}
		return r.fail(ReasonCancelled, ErrCancelled)

	default:
		return r, r.violation("receiver cannot handle %T", ev)
	}
}

func (r Receiver) onFrame(f protocol.Frame) (Receiver, []Effect) {
	if r.Terminal() {
		return r, nil
	}
	if f.Kind != protocol.FrameData {
		return r, r.violation("receiver received %s", f.Kind)
	}
	if !r.Accepted() {
		return r, r.violation("DATA seq=%d before acceptance dropped", f.Seq)
	}
	if f.Seq != r.NextSeq {
		return r, r.violation("DATA seq=%d, expected %d", f.Seq, r.NextSeq)
	}
	if r.ReceivedSize+int64(len(f.Payload)) > r.File.Size {
		return r, r.violation("DATA seq=%d overflows declared size %d", f.Seq, r.File.Size)
	}

	r.NextSeq++
	r.ReceivedSize += int64(len(f.Payload))
	r.State = ReceiverReceiving

	effects := []Effect{
		AppendChunk{Data: f.Payload},
		ReportProgress{Bytes: r.ReceivedSize, Total: r.File.Size},
		SendFrame{Frame: protocol.Ack(f.Seq)},
	}
	if r.ReceivedSize >= r.File.Size {
		r.State = ReceiverCompleted
		effects = append(effects, Complete{}, CloseChannel{Graceful: true})
	}
	return r, effects
}

func (r Receiver) fail(reason string, err error) (Receiver, []Effect) {
	r.State = ReceiverFailed
	return r, []Effect{Fail{Reason: reason, Err: err}, CloseChannel{}}
}

func (r Receiver) violation(format string, args ...any) []Effect {
	return []Effect{Violation{Err: violation(format, args...)}}
}
