package mmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// reader keeps the first error; later reads are no-ops returning zero.
type reader struct {
	r   io.Reader
	err error
}

func (p *reader) read(v interface{}) {
	if p.err != nil {
		return
	}
	p.err = binary.Read(p.r, binary.LittleEndian, v)
}

func (p *reader) skip(n int) {
	if p.err != nil || n <= 0 {
		return
	}
	_, p.err = io.CopyN(io.Discard, p.r, int64(n))
}

func (p *reader) readUint8() uint8 {
	var v uint8
	p.read(&v)
	return v
}

func (p *reader) readUint16() uint16 {
	var v uint16
	p.read(&v)
	return v
}

func (p *reader) readInt() int {
	var v int32
	p.read(&v)
	return int(v)
}

func (p *reader) readFloat() float32 {
	var v float32
	p.read(&v)
	return v
}

// readVInt reads a signed index of sz bytes.
func (p *reader) readVInt(sz byte) int {
	switch sz {
	case 1:
		var v int8
		p.read(&v)
		return int(v)
	case 2:
		var v int16
		p.read(&v)
		return int(v)
	case 4:
		var v int32
		p.read(&v)
		return int(v)
	}
	return 0
}

// readVUInt reads an unsigned index of sz bytes.
func (p *reader) readVUInt(sz byte) int {
	switch sz {
	case 1:
		return int(p.readUint8())
	case 2:
		return int(p.readUint16())
	case 4:
		var v uint32
		p.read(&v)
		return int(v)
	}
	return 0
}

// readSJIS reads a fixed size, NUL terminated Shift-JIS string.
func (p *reader) readSJIS(n int) string {
	b := make([]byte, n)
	p.read(b)
	utf8Data, _, _ := transform.Bytes(japanese.ShiftJIS.NewDecoder(), bytes.SplitN(b, []byte{0}, 2)[0])
	return string(utf8Data)
}

// maxTextSize bounds PMX strings so a corrupt length prefix fails instead
// of allocating.
const maxTextSize = 1 << 20

// readText reads a length prefixed PMX string.
func (p *reader) readText(utf8 bool) string {
	n := p.readInt()
	if p.err != nil || n <= 0 {
		return ""
	}
	if n > maxTextSize {
		p.err = fmt.Errorf("%w: text of %d bytes", ErrFormat, n)
		return ""
	}
	if utf8 {
		data := make([]byte, n)
		p.read(data)
		return string(data)
	}
	data := make([]uint16, n/2)
	p.read(data)
	return string(utf16.Decode(data))
}

type writer struct {
	w   io.Writer
	err error
}

func (p *writer) write(v interface{}) {
	if p.err != nil {
		return
	}
	p.err = binary.Write(p.w, binary.LittleEndian, v)
}

func (p *writer) writeInt(v int) {
	p.write(int32(v))
}

func (p *writer) writeVInt(sz byte, v int) {
	switch sz {
	case 1:
		p.write(int8(v))
	case 2:
		p.write(int16(v))
	case 4:
		p.write(int32(v))
	}
}

func (p *writer) writeText(s string, utf8 bool) {
	if utf8 {
		p.writeInt(len(s))
		p.write([]byte(s))
		return
	}
	data := utf16.Encode([]rune(s))
	p.writeInt(len(data) * 2)
	p.write(data)
}

// writeSJIS writes s as a NUL padded Shift-JIS string of n bytes. Names
// that do not fit are cut at a character boundary.
func (p *writer) writeSJIS(s string, n int) {
	p.write(encodeSJIS(s, n))
}

func encodeSJIS(s string, n int) []byte {
	enc := encoding.ReplaceUnsupported(japanese.ShiftJIS.NewEncoder())
	b := make([]byte, 0, n)
	for _, r := range s {
		c, _, err := transform.String(enc, string(r))
		if err != nil || len(b)+len(c) > n {
			break
		}
		b = append(b, c...)
	}
	return append(b, make([]byte, n-len(b))...)
}
