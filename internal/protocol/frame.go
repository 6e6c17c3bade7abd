package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMalformed       = errors.New("malformed message")
	ErrUnknownKind     = errors.New("unknown frame kind")
	ErrPayloadTooLarge = errors.New("payload exceeds max chunk size")
)

const (
	fieldKind    protowire.Number = 1
	fieldSeq     protowire.Number = 2
	fieldPayload protowire.Number = 3
)

// Frame is a single in-band message on a transfer channel. READY carries no
// payload, ACK echoes the Seq of the chunk it acknowledges and DATA carries
// one chunk.
type Frame struct {
	Kind    FrameKind
	Seq     uint32
	Payload []byte
}

func Ready() Frame { return Frame{Kind: FrameReady} }

func Ack(seq uint32) Frame { return Frame{Kind: FrameAck, Seq: seq} }

func Data(seq uint32, payload []byte) Frame {
	return Frame{Kind: FrameData, Seq: seq, Payload: payload}
}

func (f Frame) String() string {
	if f.Kind == FrameData {
		return fmt.Sprintf("%s seq=%d len=%d", f.Kind, f.Seq, len(f.Payload))
	}
	return fmt.Sprintf("%s seq=%d", f.Kind, f.Seq)
}

func EncodeFrame(f Frame) ([]byte, error) {
	if !f.Kind.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, f.Kind)
	}
	if len(f.Payload) > MaxChunkSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}

	b := make([]byte, 0, len(f.Payload)+frameOverhead)
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Kind))
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Seq))
	if f.Kind == FrameData {
		b = protowire.AppendTag(b, fieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, f.Payload)
	}
	return b, nil
}

// DecodeFrame parses a frame. The returned Payload aliases b.
func DecodeFrame(b []byte) (Frame, error) {
	var f Frame
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			if v > 0xFF {
				return Frame{}, fmt.Errorf("%w: %d", ErrUnknownKind, v)
			}
			f.Kind = FrameKind(v)
			b = b[n:]
		case num == fieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			if v > 0xFFFFFFFF {
				return Frame{}, fmt.Errorf("%w: seq out of range", ErrMalformed)
			}
			f.Seq = uint32(v)
			b = b[n:]
		case num == fieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			f.Payload = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if !f.Kind.valid() {
		return Frame{}, fmt.Errorf("%w: %d", ErrUnknownKind, f.Kind)
	}
	if len(f.Payload) > MaxChunkSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	return f, nil
}
