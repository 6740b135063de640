// Package lineio reads newline-delimited text without failing on over-long lines.
package lineio

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLineSize bounds the text kept for a single line.
const DefaultMaxLineSize = 1024 * 1024

// Reader yields lines like bufio.Scanner with ScanLines, except that a line
// longer than the limit is consumed up to its newline and flagged with
// TooLong instead of ending the read.
type Reader struct {
	br      *bufio.Reader
	max     int
	line    int
	text    []byte
	tooLong bool
	err     error
}

// NewReader returns a Reader over r keeping at most maxLineSize bytes per line.
// A non-positive maxLineSize selects DefaultMaxLineSize.
func NewReader(r io.Reader, maxLineSize int) *Reader {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return &Reader{br: bufio.NewReaderSize(r, 64*1024), max: maxLineSize}
}

// Next advances to the next line. It returns false at the end of input or on a read error.
func (r *Reader) Next() bool {
	if r.err != nil {
		return false
	}
	r.text = r.text[:0]
	r.tooLong = false
	read := false

	for {
		chunk, err := r.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
		}
		if !r.tooLong {
			if len(r.text)+len(chunk) > r.max+2 {
				// Keep a prefix for diagnostics and drop the rest of the line.
				keep := r.max - len(r.text)
				if keep > 0 {
					r.text = append(r.text, chunk[:min(keep, len(chunk))]...)
				}
				r.tooLong = true
			} else {
				r.text = append(r.text, chunk...)
			}
		}

		switch {
		case err == nil:
			r.line++
			r.trim()
			return true
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			r.err = io.EOF
			if !read {
				return false
			}
			r.line++
			r.trim()
			return true
		default:
			r.err = err
			return false
		}
	}
}

// trim drops the line terminator, and the trailing \r of a CRLF ending.
func (r *Reader) trim() {
	if !r.tooLong {
		r.text = bytes.TrimSuffix(r.text, []byte{'\n'})
		r.text = bytes.TrimSuffix(r.text, []byte{'\r'})
		if len(r.text) > r.max {
			r.text = r.text[:r.max]
			r.tooLong = true
		}
	}
}

// Text returns the current line. For a TooLong line it is the kept prefix.
func (r *Reader) Text() string {
	return string(r.text)
}

// Line returns the 1-based number of the current line.
func (r *Reader) Line() int {
	return r.line
}

// TooLong reports whether the current line exceeded the limit.
func (r *Reader) TooLong() bool {
	return r.tooLong
}

// Err returns the first non-EOF read error.
func (r *Reader) Err() error {
	if errors.Is(r.err, io.EOF) {
		return nil
	}
	return r.err
}
