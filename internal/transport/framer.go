package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

const defaultChunkSize = 64 * 1024

// ErrFrameLength is returned by a fixed-length framer configured with a non-positive size.
var ErrFrameLength = errors.New("transport: frame length must be positive")

// Framer splits a byte stream into messages. Implementations may reuse the
// returned slice on the next call.
type Framer interface {
	Next(r *bufio.Reader) ([]byte, error)
}

// FixedLength frames every n bytes.
type FixedLength struct {
	buf []byte
}

// NewFixedLength returns a framer producing n-byte messages.
func NewFixedLength(n int) *FixedLength {
	if n <= 0 {
		return &FixedLength{}
	}
	return &FixedLength{buf: make([]byte, n)}
}

func (f *FixedLength) Next(r *bufio.Reader) ([]byte, error) {
	if len(f.buf) == 0 {
		return nil, ErrFrameLength
	}
	if _, err := io.ReadFull(r, f.buf); err != nil {
		return nil, err
	}
	return f.buf, nil
}

// Chunk delivers whatever a single read returns as one message.
type Chunk struct {
	buf []byte
}

// NewChunk returns a framer that reads at most size bytes per message.
func NewChunk(size int) *Chunk {
	if size <= 0 {
		size = defaultChunkSize
	}
	return &Chunk{buf: make([]byte, size)}
}

func (c *Chunk) Next(r *bufio.Reader) ([]byte, error) {
	for {
		n, err := r.Read(c.buf)
		if n > 0 {
			return c.buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Delimiter frames on a terminator sequence; the terminator is part of the message.
type Delimiter struct {
	delim []byte
	acc   []byte
}

// NewDelimiter returns a framer splitting on delim.
func NewDelimiter(delim []byte) *Delimiter {
	return &Delimiter{delim: append([]byte(nil), delim...)}
}

func (d *Delimiter) Next(r *bufio.Reader) ([]byte, error) {
	if len(d.delim) == 0 {
		return nil, errors.New("transport: empty delimiter")
	}
	last := d.delim[len(d.delim)-1]
	d.acc = d.acc[:0]
	for {
		line, err := r.ReadSlice(last)
		d.acc = append(d.acc, line...)
		if err == nil {
			if bytes.HasSuffix(d.acc, d.delim) {
				return d.acc, nil
			}
			continue
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return nil, err
	}
}

// Framing names a probe framing strategy.
type Framing string

const (
	FramingChunk     Framing = "chunk"
	FramingDelimiter Framing = "delimiter"
)

// HeaderTerminator ends an HTTP/1.x message head.
var HeaderTerminator = []byte("\r\n\r\n")

// ParseFraming validates a framing name.
func ParseFraming(s string) (Framing, error) {
	switch Framing(strings.ToLower(strings.TrimSpace(s))) {
	case "", FramingChunk:
		return FramingChunk, nil
	case FramingDelimiter:
		return FramingDelimiter, nil
	default:
		return "", fmt.Errorf("unsupported probe framing %q (use chunk or delimiter)", s)
	}
}

func (f Framing) newFramer() Framer {
	if f == FramingDelimiter {
		return NewDelimiter(HeaderTerminator)
	}
	return NewChunk(defaultChunkSize)
}
