package protocol

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func TestFrameData(t *testing.T) {
	payload := []byte("This is some chunk data for testing purposes.")

	data, err := EncodeFrame(Data(7, payload))
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if decoded.Kind != FrameData {
		t.Errorf("Expected DATA, got %s", decoded.Kind)
	}
	if decoded.Seq != 7 {
		t.Errorf("Expected seq 7, got %d", decoded.Seq)
	}
	if !bytes.Equal(decoded.Payload, payload) {
		t.Errorf("Payload mismatch")
	}
}

func TestFrameReadyHasNoPayload(t *testing.T) {
	data, err := EncodeFrame(Ready())
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if decoded.Kind != FrameReady {
		t.Errorf("Expected READY, got %s", decoded.Kind)
	}
	if len(decoded.Payload) != 0 {
		t.Errorf("Expected empty payload, got %d bytes", len(decoded.Payload))
	}
}

func TestFrameAckCarriesSeq(t *testing.T) {
	data, err := EncodeFrame(Ack(1 << 20))
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}

	if decoded.Kind != FrameAck || decoded.Seq != 1<<20 {
		t.Errorf("Expected ACK seq %d, got %s", 1<<20, decoded)
	}
}

func TestEncodeFrameRejectsUnknownKind(t *testing.T) {
	_, err := EncodeFrame(Frame{Kind: 0x42})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestEncodeFrameRejectsOversizedPayload(t *testing.T) {
	_, err := EncodeFrame(Data(0, make([]byte, MaxChunkSize+1)))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestMaxChunkFitsInMessage(t *testing.T) {
	data, err := EncodeFrame(Data(0xFFFFFFFF, make([]byte, MaxChunkSize)))
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	if len(data) > MaxMessageSize {
		t.Errorf("Encoded frame of %d bytes exceeds %d", len(data), MaxMessageSize)
	}
}

func TestDecodeFrameTruncated(t *testing.T) {
	data, err := EncodeFrame(Data(3, []byte("hello world")))
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}

	_, err = DecodeFrame(data[:len(data)-4])
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}
}

func TestDecodeFrameEmpty(t *testing.T) {
	_, err := DecodeFrame(nil)
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestDecodeFrameSkipsUnknownFields(t *testing.T) {
	data, err := EncodeFrame(Ack(9))
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	data = protowire.AppendTag(data, 15, protowire.BytesType)
	data = protowire.AppendString(data, "future")

	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if decoded.Kind != FrameAck || decoded.Seq != 9 {
		t.Errorf("Expected ACK seq 9, got %s", decoded)
	}
}

func TestMetadata(t *testing.T) {
	md := Metadata{FileName: "holiday.jpg", FileSize: 40000, FileType: "image/jpeg"}

	data, err := EncodeMetadata(md)
	if err != nil {
		t.Fatalf("EncodeMetadata failed: %v", err)
	}

	decoded, err := DecodeMetadata(data)
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	if decoded != md {
		t.Errorf("Expected %+v, got %+v", md, decoded)
	}
}

func TestMetadataZeroSizeNoType(t *testing.T) {
	md := Metadata{FileName: "empty"}

	data, err := EncodeMetadata(md)
	if err != nil {
		t.Fatalf("EncodeMetadata failed: %v", err)
	}

	decoded, err := DecodeMetadata(data)
	if err != nil {
		t.Fatalf("DecodeMetadata failed: %v", err)
	}
	if decoded != md {
		t.Errorf("Expected %+v, got %+v", md, decoded)
	}
}

func TestMetadataValidation(t *testing.T) {
	if _, err := EncodeMetadata(Metadata{FileSize: 10}); !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed for empty name, got %v", err)
	}
	if _, err := EncodeMetadata(Metadata{FileName: "a", FileSize: -1}); !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed for negative size, got %v", err)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()
	var buf bytes.Buffer

	messages := [][]byte{[]byte("first"), {}, bytes.Repeat([]byte{0xAB}, 1024)}
	for _, msg := range messages {
		if err := codec.Write(&buf, msg); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	for i, want := range messages {
		got, err := codec.Read(&buf)
		if err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Message %d mismatch", i)
		}
	}

	if _, err := codec.Read(&buf); err != io.EOF {
		t.Errorf("Expected io.EOF, got %v", err)
	}
}

func TestCodecRejectsOversizedLength(t *testing.T) {
	codec := NewCodec()
	buf := bytes.NewBuffer([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	if _, err := codec.Read(buf); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

func TestFrameKindString(t *testing.T) {
	if FrameReady.String() != "READY" || FrameAck.String() != "ACK" || FrameData.String() != "DATA" {
		t.Error("Unexpected frame kind names")
	}
	if FrameKind(0x99).String() != "UNKNOWN" {
		t.Error("Expected UNKNOWN for invalid kind")
	}
}
