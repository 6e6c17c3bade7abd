package protocol

const (
	// DefaultChunkSize keeps a DATA frame well under the message size limit
	// of browser data channels.
	DefaultChunkSize = 16 * 1024
	// MaxMessageSize is the largest message a channel is expected to carry.
	MaxMessageSize = 64 * 1024
	// MaxChunkSize leaves room for the frame header inside MaxMessageSize.
	MaxChunkSize = MaxMessageSize - frameOverhead

	frameOverhead = 16
)

type FrameKind uint8

const (
	FrameReady FrameKind = 0x01
	FrameAck   FrameKind = 0x02
	FrameData  FrameKind = 0x03
)

func (k FrameKind) String() string {
	switch k {
	case FrameReady:
		return "READY"
	case FrameAck:
		return "ACK"
	case FrameData:
		return "DATA"
	default:
		return "UNKNOWN"
	}
}

func (k FrameKind) valid() bool {
	return k == FrameReady || k == FrameAck || k == FrameData
}
