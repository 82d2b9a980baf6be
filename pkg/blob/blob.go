package blob

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// MemoryBlob holds the file content in memory.
type MemoryBlob struct {
	name        string
	data        []byte
	contentType string
}

// FromBytes wraps data as a blob. The content type is sniffed from the data.
func FromBytes(name string, data []byte) *MemoryBlob {
	return &MemoryBlob{
		name:        name,
		data:        data,
		contentType: detect(name, data),
	}
}

func (b *MemoryBlob) Name() string        { return b.name }
func (b *MemoryBlob) Size() int64         { return int64(len(b.data)) }
func (b *MemoryBlob) ContentType() string { return b.contentType }

func (b *MemoryBlob) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

// FileBlob references a file on disk. The file is reopened for every attempt.
type FileBlob struct {
	path        string
	size        int64
	contentType string
}

// FromFile stats path and sniffs its content type.
func FromFile(path string) (*FileBlob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)

	return &FileBlob{
		path:        path,
		size:        info.Size(),
		contentType: detect(path, buf[:n]),
	}, nil
}

func (b *FileBlob) Name() string        { return filepath.Base(b.path) }
func (b *FileBlob) Size() int64         { return b.size }
func (b *FileBlob) ContentType() string { return b.contentType }
func (b *FileBlob) Path() string        { return b.path }

func (b *FileBlob) Open() (io.ReadCloser, error) {
	f, err := os.Open(b.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// detect prefers the extension for text formats mimetype cannot tell apart (csv vs plain text).
func detect(name string, head []byte) string {
	byExt := mime.TypeByExtension(filepath.Ext(name))
	if len(head) == 0 {
		if byExt != "" {
			return byExt
		}
		return "application/octet-stream"
	}
	mt := mimetype.Detect(head)
	if byExt != "" && mt.Is("text/plain") {
		return byExt
	}
	return mt.String()
}
