package comm

import (
	"bytes"
	"io"
)

// TimeoutFunc decides whether a read result means "no data before the
// deadline" rather than a failure. Drivers disagree on how they report it.
type TimeoutFunc func(n int, err error) bool

// LineReader splits a byte stream into lines, turning driver timeouts into
// the empty-line signal of Transport.ReadLine.
type LineReader struct {
	r         io.Reader
	isTimeout TimeoutFunc
	buf       []byte
	chunk     []byte
}

// NewLineReader wraps r. A nil isTimeout treats only (0, nil) as a timeout.
func NewLineReader(r io.Reader, isTimeout TimeoutFunc) *LineReader {
	if isTimeout == nil {
		isTimeout = func(n int, err error) bool { return n == 0 && err == nil }
	}
	return &LineReader{
		r:         r,
		isTimeout: isTimeout,
		chunk:     make([]byte, 256),
	}
}

// ReadLine returns the next '\n'-terminated line, terminator included, or ""
// when the underlying read times out.
func (lr *LineReader) ReadLine() (string, error) {
	for {
		if i := bytes.IndexByte(lr.buf, '\n'); i >= 0 {
			line := string(lr.buf[:i+1])
			lr.buf = lr.buf[i+1:]
			return line, nil
		}

		n, err := lr.r.Read(lr.chunk)
		if n > 0 {
			lr.buf = append(lr.buf, lr.chunk[:n]...)
		}
		if lr.isTimeout(n, err) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
	}
}
