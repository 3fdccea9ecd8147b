// Package sse decodes newline-delimited event streams whose payload lines
// start with "data: ". Input may arrive in arbitrary chunks; multi-byte
// characters and lines split across chunks are reassembled.
package sse

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/yanun0323/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DataPrefix marks an event line.
const DataPrefix = "data: "

// DefaultChunkSize is the read size used by Lines.
const DefaultChunkSize = 4 << 10

// Decoder turns byte chunks into complete, non-blank lines.
// It is not safe for concurrent use.
type Decoder struct {
	transformer transform.Transformer
	pending     []byte // undecoded tail, e.g. half of a multi-byte character
	partial     []byte // decoded text after the last line break
	scratch     []byte
}

// NewDecoder creates a decoder for the given text encoding. A nil encoding means UTF-8.
func NewDecoder(enc encoding.Encoding) *Decoder {
	if enc == nil {
		enc = unicode.UTF8
	}
	return &Decoder{
		transformer: enc.NewDecoder(),
		scratch:     make([]byte, DefaultChunkSize),
	}
}

// Feed decodes chunk and returns the lines it completes.
// Text after the last line break is kept for the next call.
func (d *Decoder) Feed(chunk []byte) ([]string, error) {
	if err := d.decode(chunk, false); err != nil {
		return nil, err
	}
	return d.drainLines(), nil
}

// Flush ends the stream and returns the remaining line, if it is not blank.
func (d *Decoder) Flush() ([]string, error) {
	if err := d.decode(nil, true); err != nil {
		return nil, err
	}
	lines := d.drainLines()
	if line, ok := normalizeLine(d.partial); ok {
		lines = append(lines, line)
	}
	d.partial = d.partial[:0]
	d.transformer.Reset()
	return lines, nil
}

func (d *Decoder) decode(chunk []byte, atEOF bool) error {
	src := chunk
	if len(d.pending) != 0 {
		src = append(d.pending, chunk...)
	}
	d.pending = nil

	for len(src) != 0 || atEOF {
		nDst, nSrc, err := d.transformer.Transform(d.scratch, src, atEOF)
		d.partial = append(d.partial, d.scratch[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			if len(src) == 0 {
				return nil
			}
		case transform.ErrShortDst:
			if nDst == 0 && nSrc == 0 {
				d.scratch = make([]byte, 2*len(d.scratch))
			}
		case transform.ErrShortSrc:
			if atEOF {
				return errors.Wrap(err, "decode trailing bytes")
			}
			d.pending = append([]byte(nil), src...)
			return nil
		default:
			return errors.Wrap(err, "decode chunk")
		}
	}
	return nil
}

func (d *Decoder) drainLines() []string {
	var lines []string
	for {
		idx := bytes.IndexByte(d.partial, '\n')
		if idx < 0 {
			break
		}
		if line, ok := normalizeLine(d.partial[:idx]); ok {
			lines = append(lines, line)
		}
		d.partial = d.partial[idx+1:]
	}
	if len(d.partial) == 0 {
		d.partial = nil
	}
	return lines
}

func normalizeLine(raw []byte) (string, bool) {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	return string(raw), true
}

// Payload strips DataPrefix from an event line. ok is false for any other line.
func Payload(line string) (payload string, ok bool) {
	return strings.CutPrefix(line, DataPrefix)
}

// Lines reads r in chunks and yields every complete non-blank line in order.
// The sequence ends at io.EOF, when ctx is done, or after yielding a read or decode error.
func Lines(ctx context.Context, r io.Reader, enc encoding.Encoding) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		dec := NewDecoder(enc)
		buf := make([]byte, DefaultChunkSize)
		for {
			if ctx.Err() != nil {
				return
			}

			n, readErr := r.Read(buf)
			if n > 0 {
				lines, err := dec.Feed(buf[:n])
				if err != nil {
					yield("", err)
					return
				}
				for _, line := range lines {
					if ctx.Err() != nil {
						return
					}
					if !yield(line, nil) {
						return
					}
				}
			}

			if readErr == nil {
				continue
			}
			if readErr != io.EOF {
				if ctx.Err() == nil {
					yield("", fmt.Errorf("read stream: %w", readErr))
				}
				return
			}

			lines, err := dec.Flush()
			if err != nil {
				yield("", err)
				return
			}
			for _, line := range lines {
				if ctx.Err() != nil || !yield(line, nil) {
					return
				}
			}
			return
		}
	}
}
