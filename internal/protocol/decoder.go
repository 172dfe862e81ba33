package protocol

import (
	"encoding/binary"
	"fmt"
)

// Decoder splits a byte stream into wire frames. Sockets deliver
// arbitrary chunks, so the decoder accumulates input across reads and
// hands back one complete frame at a time. It is not safe for
// concurrent use; each connection owns one decoder.
type Decoder struct {
	buf []byte
}

// Feed appends freshly read bytes to the internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next extracts the next complete frame, header included. It returns
// (nil, nil) when no complete frame is buffered yet. A length prefix
// below HeaderSize or above MaxFrameSize returns ErrFraming; the stream
// cannot be resynchronised and the caller must drop the connection.
func (d *Decoder) Next() ([]byte, error) {
	if len(d.buf) < 2 {
		return nil, nil
	}

	size := int(binary.LittleEndian.Uint16(d.buf[0:2]))
	if size < HeaderSize || size > MaxFrameSize {
		return nil, fmt.Errorf("%w: declared length %d", ErrFraming, size)
	}
	if len(d.buf) < size {
		return nil, nil
	}

	// Copy out: Feed reuses the backing array.
	frame := make([]byte, size)
	copy(frame, d.buf[:size])
	d.buf = d.buf[size:]
	return frame, nil
}

// Buffered returns the number of bytes waiting in the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Reset discards all buffered bytes.
func (d *Decoder) Reset() {
	d.buf = nil
}
