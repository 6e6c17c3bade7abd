package transfer

import (
	"errors"
	"fmt"
	"io"
)

// ChunkReader splits a source of known size into chunks of at most
// chunkSize bytes. Reading is sequential.
type ChunkReader struct {
	src       io.Reader
	size      int64
	chunkSize int
	offset    int64
}

func NewChunkReader(src io.Reader, size int64, chunkSize int) (*ChunkReader, error) {
	return newChunkReader(src, size, chunkSize, 0)
}

// NewChunkReaderAt starts reading src at offset.
func NewChunkReaderAt(src io.ReaderAt, size int64, chunkSize int, offset int64) (*ChunkReader, error) {
	if offset < 0 || offset > size {
		return nil, fmt.Errorf("offset %d outside [0, %d]", offset, size)
	}
	return newChunkReader(io.NewSectionReader(src, offset, size-offset), size, chunkSize, offset)
}

func newChunkReader(src io.Reader, size int64, chunkSize int, offset int64) (*ChunkReader, error) {
	if src == nil {
		return nil, errors.New("nil source")
	}
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if size < 0 {
		return nil, fmt.Errorf("size must not be negative, got %d", size)
	}
	return &ChunkReader{src: src, size: size, chunkSize: chunkSize, offset: offset}, nil
}

// Next returns the next chunk, or io.EOF once offset reaches size. A source
// that fails or ends early yields a *SourceReadError.
func (r *ChunkReader) Next() ([]byte, error) {
	if r.Exhausted() {
		return nil, io.EOF
	}

	n := int64(r.chunkSize)
	if remaining := r.size - r.offset; remaining < n {
		n = remaining
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r.src, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &SourceReadError{Offset: r.offset, Err: err}
	}

	r.offset += n
	return buf, nil
}

func (r *ChunkReader) Exhausted() bool {
	return r.offset >= r.size
}

func (r *ChunkReader) Offset() int64 {
	return r.offset
}

func (r *ChunkReader) Size() int64 {
	return r.size
}

func (r *ChunkReader) ChunkSize() int {
	return r.chunkSize
}
