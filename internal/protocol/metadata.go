package protocol

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldFileName protowire.Number = 1
	fieldFileSize protowire.Number = 2
	fieldFileType protowire.Number = 3
)

// Metadata describes the file offered on a channel. It travels out of band
// when the channel is opened.
type Metadata struct {
	FileName string
	FileSize int64
	FileType string
}

func (m Metadata) Validate() error {
	if m.FileName == "" {
		return fmt.Errorf("%w: empty file name", ErrMalformed)
	}
	if m.FileSize < 0 {
		return fmt.Errorf("%w: negative file size %d", ErrMalformed, m.FileSize)
	}
	return nil
}

func EncodeMetadata(m Metadata) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	b := make([]byte, 0, len(m.FileName)+len(m.FileType)+16)
	b = protowire.AppendTag(b, fieldFileName, protowire.BytesType)
	b = protowire.AppendString(b, m.FileName)
	b = protowire.AppendTag(b, fieldFileSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.FileSize))
	if m.FileType != "" {
		b = protowire.AppendTag(b, fieldFileType, protowire.BytesType)
		b = protowire.AppendString(b, m.FileType)
	}
	return b, nil
}

func DecodeMetadata(b []byte) (Metadata, error) {
	var m Metadata
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldFileName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			m.FileName = v
			b = b[n:]
		case num == fieldFileSize && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			if v > 1<<63-1 {
				return Metadata{}, fmt.Errorf("%w: file size out of range", ErrMalformed)
			}
			m.FileSize = int64(v)
			b = b[n:]
		case num == fieldFileType && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			m.FileType = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Metadata{}, fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}
