package content

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// DefaultMaxContentSize bounds decompressed content when no limit is configured.
const DefaultMaxContentSize = 100 * 1024 * 1024

// Compress replaces ec.Content with its compressed form when ec.Compression is set.
func Compress(ec *EncodedContent) error {
	if ec.Compression == nil {
		return nil
	}

	var buf bytes.Buffer
	var w io.WriteCloser
	switch *ec.Compression {
	case CompressionDeflate:
		// zlib framing (RFC 1950), as produced by CompressionStream("deflate")
		zw, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
		if err != nil {
			return fmt.Errorf("deflate writer: %w", err)
		}
		w = zw
	case CompressionGzip:
		w = gzip.NewWriter(&buf)
	default:
		return fmt.Errorf("%w: unsupported %s", ErrInvalidContent, *ec.Compression)
	}

	if _, err := w.Write(ec.Content); err != nil {
		return fmt.Errorf("compress %s: %w", *ec.Compression, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", *ec.Compression, err)
	}
	ec.Content = buf.Bytes()
	return nil
}

// Decompress reverses Compress. Expansion stops with ErrOversizeContent as
// soon as more than maxSize bytes would be produced, and the output buffer
// never grows past maxSize+1 bytes.
func Decompress(ec *EncodedContent, maxSize int) error {
	if ec.Compression == nil {
		return nil
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxContentSize
	}

	var r io.ReadCloser
	switch *ec.Compression {
	case CompressionDeflate:
		zr, err := zlib.NewReader(bytes.NewReader(ec.Content))
		if err != nil {
			return fmt.Errorf("%w: deflate header: %v", ErrInvalidContent, err)
		}
		r = zr
	case CompressionGzip:
		gr, err := gzip.NewReader(bytes.NewReader(ec.Content))
		if err != nil {
			return fmt.Errorf("%w: gzip header: %v", ErrInvalidContent, err)
		}
		r = gr
	default:
		return fmt.Errorf("%w: unsupported %s", ErrInvalidContent, *ec.Compression)
	}
	defer r.Close()

	out, err := readBounded(r, len(ec.Content), maxSize)
	if err != nil {
		return err
	}
	ec.Content = out
	ec.Compression = nil
	return nil
}

func readBounded(r io.Reader, hint, maxSize int) ([]byte, error) {
	limit := maxSize + 1
	initial := min(max(hint*4, 512), limit)
	buf := make([]byte, 0, initial)

	for {
		if len(buf) == cap(buf) {
			if cap(buf) >= limit {
				return nil, fmt.Errorf("%w: limit %d bytes", ErrOversizeContent, maxSize)
			}
			grown := make([]byte, len(buf), min(cap(buf)*2, limit))
			copy(grown, buf)
			buf = grown
		}

		n, err := r.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %v", ErrInvalidContent, err)
		}
	}

	if len(buf) > maxSize {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrOversizeContent, maxSize)
	}
	return buf, nil
}
