package mmd

import (
	"bufio"
	"fmt"
	"io"
)

type pmdReader struct {
	reader
	header *Header
}

func (p *pmdReader) readBone() *Bone {
	var b Bone
	b.Name = p.readSJIS(20)
	b.ParentID = p.readVInt(2)
	b.TailID = p.readVInt(2)
	if b.TailID <= 0 {
		b.TailID = -1
	}
	p.skip(1 + 2) // type, IK
	p.read(&b.Pos)
	b.Flags = BoneFlagRotatable | BoneFlagVisible | BoneFlagEnabled
	if b.TailID >= 0 {
		b.Flags |= BoneFlagTailIndex
	}
	return &b
}

func (p *pmdReader) parse() (*Model, error) {
	h := p.header
	if h == nil {
		h = &Header{Format: make([]byte, 3)}
		p.read(h.Format)
		p.header = h
	}
	if string(h.Format) != "Pmd" {
		return nil, fmt.Errorf("%w: %q", ErrFormat, h.Format)
	}
	p.read(&h.Version)

	m := &Model{Header: h}
	m.Name = p.readSJIS(20)
	m.Comment = p.readSJIS(256)
	p.skip(p.readInt() * 38) // vertices
	p.skip(p.readInt() * 2)  // faces
	p.skip(p.readInt() * 70) // materials
	n := int(p.readUint16())
	for i := 0; i < n && p.err == nil; i++ {
		m.Bones = append(m.Bones, p.readBone())
	}
	if p.err != nil {
		return nil, fmt.Errorf("pmd: %w", p.err)
	}
	return m, nil
}

// ParsePMD reads the bones of a PMD model.
func ParsePMD(r io.Reader) (*Model, error) {
	p := &pmdReader{reader: reader{r: r}}
	return p.parse()
}

// Parse reads the bones of a PMX or PMD model.
func Parse(r io.Reader) (*Model, error) {
	br := bufio.NewReader(r)
	format, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	if string(format[:3]) == "Pmd" {
		return ParsePMD(br)
	}
	return ParsePMX(br)
}
