// Package protocol implements the advancement and recipe-book packet group
// of the game protocol: a binary codec that must stay byte-compatible with
// the reference client.
//
// All integers are big-endian. VarInt is LEB128 with a five byte maximum,
// strings are VarInt-length-prefixed UTF-8, booleans one byte, optionals a
// present bit followed by the value, lists a VarInt count followed by the
// elements.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"opalcraft.gg/internal/resource"
)

// ErrTruncated reports a frame that ended before its payload did.
var ErrTruncated = errors.New("truncated packet")

const maxVarIntBytes = 5

// Writer assembles a packet payload.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) VarInt(v int32) {
	u := uint32(v)
	for {
		b := byte(u & 0x7F)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if u == 0 {
			return
		}
	}
}

func (w *Writer) Bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *Writer) U8(v uint8) {
	w.buf.WriteByte(v)
}

func (w *Writer) I32(v int32) {
	w.buf.Write([]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

func (w *Writer) I64(v int64) {
	w.buf.Write([]byte{
		byte(v >> 56), byte(v >> 48), byte(v >> 40), byte(v >> 32),
		byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v),
	})
}

func (w *Writer) F32(v float32) {
	w.I32(int32(math.Float32bits(v)))
}

func (w *Writer) String(s string) {
	w.VarInt(int32(len(s)))
	w.buf.WriteString(s)
}

func (w *Writer) ID(id resource.ID) {
	w.String(id.String())
}

// Raw appends pre-encoded bytes, used for NBT blobs.
func (w *Writer) Raw(b []byte) {
	w.buf.Write(b)
}

// OptionalID writes a present bit, then the id when present.
func (w *Writer) OptionalID(id *resource.ID) {
	w.Bool(id != nil)
	if id != nil {
		w.ID(*id)
	}
}

// OptionalI64 writes a present bit, then the value when present.
func (w *Writer) OptionalI64(v *int64) {
	w.Bool(v != nil)
	if v != nil {
		w.I64(*v)
	}
}

// Reader consumes a packet payload.
type Reader struct {
	buf []byte
	off int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining reports how many payload bytes are left unread.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

func (r *Reader) U8() (uint8, error) {
	if r.off >= len(r.buf) {
		return 0, ErrTruncated
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *Reader) VarInt() (int32, error) {
	var u uint32
	for i := 0; i < maxVarIntBytes; i++ {
		b, err := r.U8()
		if err != nil {
			return 0, err
		}
		u |= uint32(b&0x7F) << (7 * i)
		if b&0x80 == 0 {
			return int32(u), nil
		}
	}
	return 0, fmt.Errorf("varint longer than %d bytes", maxVarIntBytes)
}

func (r *Reader) Bool() (bool, error) {
	b, err := r.U8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *Reader) I64() (int64, error) {
	if r.Remaining() < 8 {
		return 0, ErrTruncated
	}
	var v int64
	for i := 0; i < 8; i++ {
		v = v<<8 | int64(r.buf[r.off+i])
	}
	r.off += 8
	return v, nil
}

func (r *Reader) String() (string, error) {
	n, err := r.VarInt()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > r.Remaining() {
		return "", ErrTruncated
	}
	s := string(r.buf[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}

func (r *Reader) ID() (resource.ID, error) {
	s, err := r.String()
	if err != nil {
		return resource.ID{}, err
	}
	return resource.Parse(s)
}
