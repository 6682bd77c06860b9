// Package nbt writes the network variant of the NBT binary format: the root
// compound carries a tag id but no name. Only the tag types the protocol's
// text payloads need are implemented.
package nbt

import (
	"bytes"
	"encoding/binary"
)

// Tag ids.
const (
	TagEnd      = 0x00
	TagByte     = 0x01
	TagInt      = 0x03
	TagString   = 0x08
	TagList     = 0x09
	TagCompound = 0x0A
)

// Writer assembles an NBT payload. All multi-byte integers are big-endian.
type Writer struct {
	buf bytes.Buffer
}

func NewWriter() *Writer {
	return &Writer{}
}

// BeginCompound opens the unnamed root compound.
func (w *Writer) BeginCompound() {
	w.buf.WriteByte(TagCompound)
}

// End closes the current compound (root, nested, or list element).
func (w *Writer) End() {
	w.buf.WriteByte(TagEnd)
}

// String writes a named string entry.
func (w *Writer) String(name, value string) {
	w.buf.WriteByte(TagString)
	w.writeName(name)
	w.writeString(value)
}

// Byte writes a named byte entry.
func (w *Writer) Byte(name string, value int8) {
	w.buf.WriteByte(TagByte)
	w.writeName(name)
	w.buf.WriteByte(byte(value))
}

// Int writes a named 32-bit integer entry.
func (w *Writer) Int(name string, value int32) {
	w.buf.WriteByte(TagInt)
	w.writeName(name)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(value))
	w.buf.Write(tmp[:])
}

// BeginCompoundList writes a named list-of-compounds header. Each element is
// written as bare compound entries terminated by End.
func (w *Writer) BeginCompoundList(name string, count int) {
	w.buf.WriteByte(TagList)
	w.writeName(name)
	w.buf.WriteByte(TagCompound)
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(count))
	w.buf.Write(tmp[:])
}

func (w *Writer) writeName(name string) {
	w.writeString(name)
}

func (w *Writer) writeString(s string) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], uint16(len(s)))
	w.buf.Write(tmp[:])
	w.buf.WriteString(s)
}

// Bytes returns the accumulated payload.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}
