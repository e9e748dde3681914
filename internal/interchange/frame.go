package interchange

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame so that a corrupt length prefix
// cannot trigger a huge allocation.
const MaxFrameSize = 64 << 20

// FrameWriter writes length-prefixed frames: an unsigned varint byte count
// followed by the payload.
type FrameWriter struct {
	w   io.Writer
	buf [binary.MaxVarintLen64]byte
}

// NewFrameWriter returns a writer framing onto w.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame writes one frame.
func (fw *FrameWriter) WriteFrame(p []byte) error {
	if len(p) > MaxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit %d", len(p), MaxFrameSize)
	}
	n := binary.PutUvarint(fw.buf[:], uint64(len(p)))
	if _, err := fw.w.Write(fw.buf[:n]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := fw.w.Write(p); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// FrameReader reads frames written by FrameWriter.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader returns a reader of frames from r.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReader(r)}
}

// ReadFrame returns the next payload. It returns io.EOF when the stream
// ends cleanly between frames and io.ErrUnexpectedEOF when it ends inside
// one.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	size, err := binary.ReadUvarint(fr.r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	if size > MaxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit %d", size, MaxFrameSize)
	}
	p := make([]byte, size)
	if _, err := io.ReadFull(fr.r, p); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return p, nil
}
