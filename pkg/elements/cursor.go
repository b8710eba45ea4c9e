package elements

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Cursor is a bounded, seek-based reader over a region of a borrowed
// io.ReadSeeker. It never buffers the underlying document: every accessor
// seeks explicitly and reads only the bytes it needs.
//
// Accesses outside [start, end] fail with *FormatError instead of seeking
// silently past the end of the stream.
type Cursor struct {
	rs    io.ReadSeeker
	start int64
	end   int64
	pos   int64
}

// NewCursor returns a cursor over rs restricted to the absolute byte range
// [start, end). The stream is positioned at start.
func NewCursor(rs io.ReadSeeker, start, end int64) (*Cursor, error) {
	if start < 0 || end < start {
		return nil, &FormatError{Offset: start, Message: fmt.Sprintf("invalid region [%d, %d)", start, end)}
	}
	c := &Cursor{rs: rs, start: start, end: end}
	if err := c.SeekTo(start); err != nil {
		return nil, err
	}
	return c, nil
}

// NewStreamCursor returns a cursor covering the whole stream.
func NewStreamCursor(rs io.ReadSeeker) (*Cursor, error) {
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, &FormatError{Message: "seeking to end of stream", Cause: err}
	}
	return NewCursor(rs, 0, size)
}

// Pos returns the absolute stream position of the cursor.
func (c *Cursor) Pos() int64 { return c.pos }

// Start returns the first absolute offset of the region.
func (c *Cursor) Start() int64 { return c.start }

// End returns the exclusive absolute end of the region.
func (c *Cursor) End() int64 { return c.end }

// Remaining returns the number of bytes left before the end of the region.
func (c *Cursor) Remaining() int64 { return c.end - c.pos }

// SeekTo moves to an absolute offset inside the region.
func (c *Cursor) SeekTo(off int64) error {
	if off < c.start || off > c.end {
		return &FormatError{Offset: off, Message: fmt.Sprintf("seek outside region [%d, %d)", c.start, c.end)}
	}
	got, err := c.rs.Seek(off, io.SeekStart)
	if err != nil {
		return &FormatError{Offset: off, Message: "seek failed", Cause: err}
	}
	if got != off {
		return &FormatError{Offset: off, Message: fmt.Sprintf("seek landed at %d", got)}
	}
	c.pos = off
	return nil
}

// Skip advances the cursor by n bytes with a relative seek.
func (c *Cursor) Skip(n int64) error {
	if n < 0 || n > c.Remaining() {
		return &FormatError{
			Offset:  c.pos,
			Message: fmt.Sprintf("cannot skip %d bytes, %d remaining", n, c.Remaining()),
			Cause:   io.ErrUnexpectedEOF,
		}
	}
	got, err := c.rs.Seek(n, io.SeekCurrent)
	if err != nil {
		return &FormatError{Offset: c.pos, Message: "relative seek failed", Cause: err}
	}
	if got != c.pos+n {
		return &FormatError{Offset: c.pos, Message: fmt.Sprintf("relative seek landed at %d", got)}
	}
	c.pos = got
	return nil
}

// Read implements io.Reader, stopping at the end of the region.
func (c *Cursor) Read(p []byte) (int, error) {
	if c.pos >= c.end {
		return 0, io.EOF
	}
	if int64(len(p)) > c.Remaining() {
		p = p[:c.Remaining()]
	}
	n, err := c.rs.Read(p)
	c.pos += int64(n)
	return n, err
}

// ReadN reads exactly n bytes.
func (c *Cursor) ReadN(n int) ([]byte, error) {
	if n < 0 || int64(n) > c.Remaining() {
		return nil, &FormatError{
			Offset:  c.pos,
			Message: fmt.Sprintf("cannot read %d bytes, %d remaining", n, c.Remaining()),
			Cause:   io.ErrUnexpectedEOF,
		}
	}
	buf := make([]byte, n)
	off := c.pos
	if _, err := io.ReadFull(c, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, &FormatError{Offset: off, Message: fmt.Sprintf("reading %d bytes", n), Cause: err}
	}
	return buf, nil
}

// ReadByte reads a single byte.
func (c *Cursor) ReadByte() (byte, error) {
	b, err := c.ReadN(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadUint32LE reads a little-endian uint32.
func (c *Cursor) ReadUint32LE() (uint32, error) {
	b, err := c.ReadN(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadCompactSize reads a compact-size integer at the current position.
func (c *Cursor) ReadCompactSize() (uint64, error) {
	off := c.pos
	v, err := ReadCompactSize(c)
	if err != nil {
		return 0, &FormatError{Offset: off, Message: "reading compact size", Cause: err}
	}
	return v, nil
}

// ReadVarSlice reads a compact-size length followed by that many bytes.
func (c *Cursor) ReadVarSlice() ([]byte, error) {
	n, err := c.ReadCompactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(c.Remaining()) {
		return nil, &FormatError{
			Offset:  c.pos,
			Message: fmt.Sprintf("length %d exceeds %d remaining bytes", n, c.Remaining()),
			Cause:   io.ErrUnexpectedEOF,
		}
	}
	return c.ReadN(int(n))
}

// SkipVarSlice skips a length-prefixed byte string and returns the number
// of bytes consumed including the prefix.
func (c *Cursor) SkipVarSlice() (int64, error) {
	start := c.pos
	n, err := c.ReadCompactSize()
	if err != nil {
		return 0, err
	}
	if n > uint64(c.Remaining()) {
		return 0, &FormatError{
			Offset:  c.pos,
			Message: fmt.Sprintf("length %d exceeds %d remaining bytes", n, c.Remaining()),
			Cause:   io.ErrUnexpectedEOF,
		}
	}
	if err := c.Skip(int64(n)); err != nil {
		return 0, err
	}
	return c.pos - start, nil
}
