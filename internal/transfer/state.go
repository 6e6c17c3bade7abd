package transfer

type SenderState int

const (
	SenderIdle SenderState = iota
	SenderAwaitingChannelOpen
	SenderAwaitingReady
	SenderSending
	SenderAwaitingFinalAck
	SenderCompleted
	SenderRejected
	SenderFailed
)

func (s SenderState) String() string {
	switch s {
	case SenderIdle:
		return "idle"
	case SenderAwaitingChannelOpen:
		return "awaiting-channel-open"
	case SenderAwaitingReady:
		return "awaiting-ready"
	case SenderSending:
		return "sending"
	case SenderAwaitingFinalAck:
		return "awaiting-final-ack"
	case SenderCompleted:
		return "completed"
	case SenderRejected:
		return "rejected"
	case SenderFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type ReceiverState int

const (
	ReceiverIdle ReceiverState = iota
	ReceiverAwaitingUserDecision
	ReceiverAwaitingFirstChunk
	ReceiverReceiving
	ReceiverCompleted
	ReceiverRejected
	ReceiverFailed
)

func (s ReceiverState) String() string {
	switch s {
	case ReceiverIdle:
		return "idle"
	case ReceiverAwaitingUserDecision:
		return "awaiting-user-decision"
	case ReceiverAwaitingFirstChunk:
		return "awaiting-first-chunk"
	case ReceiverReceiving:
		return "receiving"
	case ReceiverCompleted:
		return "completed"
	case ReceiverRejected:
		return "rejected"
	case ReceiverFailed:
		return "failed"
	default:
		return "unknown"
	}
}
