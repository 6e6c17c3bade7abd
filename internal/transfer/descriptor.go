package transfer

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rudransh-shrivastava/peer-drop/internal/transport"
)

const sniffLen = 512

// FileDescriptor describes the file being transferred.
type FileDescriptor struct {
	Name     string
	Size     int64
	MimeType string
}

func (d FileDescriptor) Metadata() transport.ConnectionMetadata {
	return transport.ConnectionMetadata{
		FileName: d.Name,
		FileSize: d.Size,
		FileType: d.MimeType,
	}
}

func DescriptorFromMetadata(md transport.ConnectionMetadata) FileDescriptor {
	return FileDescriptor{
		Name:     md.FileName,
		Size:     md.FileSize,
		MimeType: md.FileType,
	}
}

// OpenFile opens path for sending and describes it. The caller owns the
// returned file.
func OpenFile(path string) (*os.File, FileDescriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, FileDescriptor{}, fmt.Errorf("failed to open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, FileDescriptor{}, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, FileDescriptor{}, fmt.Errorf("%s is a directory", path)
	}

	desc := FileDescriptor{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MimeType: DetectMimeType(filepath.Base(path), f),
	}
	return f, desc, nil
}

// DetectMimeType prefers the extension and falls back to sniffing the first
// bytes of r.
func DetectMimeType(name string, r io.ReaderAt) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	if r == nil {
		return "application/octet-stream"
	}

	head := make([]byte, sniffLen)
	n, _ := r.ReadAt(head, 0)
	return http.DetectContentType(head[:n])
}
