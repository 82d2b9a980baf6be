package compression

import (
	"fmt"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm is a request body encoding. Its value is sent as Content-Encoding.
type Algorithm string

const (
	None   Algorithm = ""
	Gzip   Algorithm = "gzip"
	LZ4    Algorithm = "lz4"
	Snappy Algorithm = "snappy"
	Zstd   Algorithm = "zstd"
)

// Parse accepts the names used in configuration files.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case None, "none":
		return None, nil
	case Gzip:
		return Gzip, nil
	case LZ4:
		return LZ4, nil
	case Snappy:
		return Snappy, nil
	case Zstd:
		return Zstd, nil
	default:
		return None, fmt.Errorf("unsupported compression algorithm: %s", name)
	}
}

// NewWriter wraps w so that everything written is encoded with algo.
// Close must be called to flush the encoder; it does not close w.
func NewWriter(algo Algorithm, w io.Writer) (io.WriteCloser, error) {
	switch algo {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case LZ4:
		return lz4.NewWriter(w), nil
	case Snappy:
		return snappy.NewBufferedWriter(w), nil
	case Zstd:
		enc, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
		return enc, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

// NewReader decodes a body produced by NewWriter.
func NewReader(algo Algorithm, r io.Reader) (io.ReadCloser, error) {
	switch algo {
	case None:
		return io.NopCloser(r), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip decoder: %w", err)
		}
		return zr, nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	case Snappy:
		return io.NopCloser(snappy.NewReader(r)), nil
	case Zstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
		}
		return dec.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", algo)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
