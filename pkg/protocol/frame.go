package protocol

import (
	"bufio"
	"errors"
	"io"
)

const (
	// MaxLineSize is the longest line accepted from the wire (1 MB)
	MaxLineSize = 1024 * 1024

	// initialLineBuffer is the starting size of the line scanner buffer
	initialLineBuffer = 4096
)

var ErrLineTooLong = errors.New("line exceeds maximum size (1 MB)")

// LineReader splits a stream into newline-terminated lines.
// It is not safe for concurrent use; a connection has exactly one reader.
type LineReader struct {
	scanner *bufio.Scanner
	done    bool
}

// NewLineReader wraps r in a line reader limited to MaxLineSize
func NewLineReader(r io.Reader) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), MaxLineSize)
	return &LineReader{scanner: scanner}
}

// ReadLine returns the next line without its terminator. A final line that
// is not newline-terminated is still returned. io.EOF means the peer closed
// the stream cleanly. The returned slice is only valid until the next call.
func (lr *LineReader) ReadLine() ([]byte, error) {
	if lr.done {
		return nil, io.EOF
	}
	if lr.scanner.Scan() {
		return lr.scanner.Bytes(), nil
	}
	lr.done = true
	err := lr.scanner.Err()
	if err == nil {
		return nil, io.EOF
	}
	if errors.Is(err, bufio.ErrTooLong) {
		return nil, ErrLineTooLong
	}
	return nil, err
}

// WriteLine encodes p and writes it to w as one line in a single Write call
func WriteLine(w io.Writer, p Packet) (int, error) {
	data, err := EncodeLine(p)
	if err != nil {
		return 0, err
	}
	return w.Write(data)
}
