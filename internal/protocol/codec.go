package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Codec frames messages on byte streams with a big endian uint32 length
// prefix. Message-oriented transports do not need it.
type Codec struct {
	maxSize uint32
}

func NewCodec() *Codec {
	return &Codec{maxSize: MaxMessageSize}
}

func (c *Codec) Write(w io.Writer, msg []byte) error {
	if uint64(len(msg)) > uint64(c.maxSize) {
		return fmt.Errorf("%w: message of %d bytes", ErrPayloadTooLarge, len(msg))
	}

	buf := make([]byte, 4+len(msg))
	binary.BigEndian.PutUint32(buf, uint32(len(msg)))
	copy(buf[4:], msg)

	_, err := w.Write(buf)
	return err
}

func (c *Codec) Read(r io.Reader) ([]byte, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, err
	}
	if length > c.maxSize {
		return nil, fmt.Errorf("%w: message of %d bytes", ErrPayloadTooLarge, length)
	}

	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
