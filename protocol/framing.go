package protocol

import (
	"bufio"
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/wippyai/wasi-executor/errors"
)

// DefaultMaxFrameSize bounds a frame body unless configured otherwise.
const DefaultMaxFrameSize = 64 << 20

const headerSize = 8

// FrameReader reads frames of an 8-byte little-endian length followed by
// exactly that many body bytes.
type FrameReader struct {
	r   *bufio.Reader
	max uint64
}

// NewFrameReader reads frames from r. max == 0 selects DefaultMaxFrameSize.
func NewFrameReader(r io.Reader, max uint64) *FrameReader {
	if max == 0 {
		max = DefaultMaxFrameSize
	}
	return &FrameReader{r: bufio.NewReader(r), max: max}
}

// ReadFrame returns the next frame body. It returns io.EOF, unwrapped, only
// when the stream ends exactly on a frame boundary. Any other short read is
// a framing error.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	var hdr [headerSize]byte
	n, err := io.ReadFull(fr.r, hdr[:])
	if err != nil {
		if n == 0 && stderrors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, errors.Framing(errors.KindShortIO,
			fmt.Sprintf("short frame header: %d of %d bytes", n, headerSize), err)
	}

	size := binary.LittleEndian.Uint64(hdr[:])
	if size > fr.max {
		return nil, errors.Framing(errors.KindFrameTooLarge,
			fmt.Sprintf("frame of %d bytes exceeds limit of %d", size, fr.max), nil)
	}

	body := make([]byte, size)
	if n, err := io.ReadFull(fr.r, body); err != nil {
		return nil, errors.Framing(errors.KindShortIO,
			fmt.Sprintf("short frame body: %d of %d bytes", n, size), err)
	}
	return body, nil
}

// FrameWriter writes length-prefixed frames.
type FrameWriter struct {
	w   *bufio.Writer
	max uint64
}

// NewFrameWriter writes frames to w. max == 0 selects DefaultMaxFrameSize.
func NewFrameWriter(w io.Writer, max uint64) *FrameWriter {
	if max == 0 {
		max = DefaultMaxFrameSize
	}
	return &FrameWriter{w: bufio.NewWriter(w), max: max}
}

// WriteFrame writes body as one frame and flushes it.
func (fw *FrameWriter) WriteFrame(body []byte) error {
	if uint64(len(body)) > fw.max {
		return errors.Framing(errors.KindFrameTooLarge,
			fmt.Sprintf("frame of %d bytes exceeds limit of %d", len(body), fw.max), nil)
	}
	var hdr [headerSize]byte
	binary.LittleEndian.PutUint64(hdr[:], uint64(len(body)))
	if _, err := fw.w.Write(hdr[:]); err != nil {
		return errors.Framing(errors.KindShortIO, "write frame header", err)
	}
	if _, err := fw.w.Write(body); err != nil {
		return errors.Framing(errors.KindShortIO, "write frame body", err)
	}
	if err := fw.w.Flush(); err != nil {
		return errors.Framing(errors.KindShortIO, "flush frame", err)
	}
	return nil
}
