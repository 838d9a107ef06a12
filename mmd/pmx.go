package mmd

import (
	"errors"
	"fmt"
	"io"
)

// see also:
// https://gist.github.com/felixjones/f8a06bd48f9da9a4539f

var ErrFormat = errors.New("unsupported format")

type pmxReader struct {
	reader
	header *Header
}

func (p *pmxReader) index(attr int) int {
	return p.readVInt(p.header.Info[attr])
}

func (p *pmxReader) text() string {
	return p.readText(p.header.Info[AttrStringEncoding] != 0)
}

func (p *pmxReader) readHeader() error {
	h := p.header
	if h == nil {
		h = &Header{Format: make([]byte, 4)}
		p.read(h.Format)
		p.header = h
	}
	if string(h.Format) != "PMX " {
		return fmt.Errorf("%w: %q", ErrFormat, h.Format)
	}
	p.read(&h.Version)
	h.Info = make([]byte, p.readUint8())
	p.read(h.Info)
	if p.err == nil && len(h.Info) < 8 {
		return fmt.Errorf("%w: PMX header has %d attributes", ErrFormat, len(h.Info))
	}
	return p.err
}

func (p *pmxReader) skipVertex() error {
	bone := int(p.header.Info[AttrBoneIndexSz])
	p.skip(12 + 12 + 8 + 16*int(p.header.Info[AttrExtUV]))
	switch t := p.readUint8(); t {
	case 0:
		p.skip(bone)
	case 1:
		p.skip(bone*2 + 4)
	case 2, 4:
		p.skip(bone*4 + 16)
	case 3:
		p.skip(bone*2 + 4 + 36)
	default:
		if p.err == nil {
			return fmt.Errorf("%w: vertex weight type %d", ErrFormat, t)
		}
	}
	p.skip(4)
	return p.err
}

func (p *pmxReader) skipMaterial() {
	tex := int(p.header.Info[AttrTexIndexSz])
	p.text()
	p.text()
	p.skip(16 + 12 + 4 + 12 + 1 + 16 + 4 + tex*2 + 1)
	if p.readUint8() == 0 {
		p.skip(tex)
	} else {
		p.skip(1)
	}
	p.text()
	p.skip(4)
}

func (p *pmxReader) readBone() *Bone {
	var b Bone
	b.Name = p.text()
	b.NameEn = p.text()
	p.read(&b.Pos)
	b.ParentID = p.index(AttrBoneIndexSz)
	b.Layer = p.readInt()
	b.Flags = p.readUint16()

	if b.Flags&BoneFlagTailIndex != 0 {
		b.TailID = p.index(AttrBoneIndexSz)
	} else {
		b.TailID = -1
		p.read(&b.TailPos)
	}
	bone := int(p.header.Info[AttrBoneIndexSz])
	if b.Flags&(BoneFlagInheritRotation|BoneFlagInheritTranslation) != 0 {
		p.skip(bone + 4)
	}
	if b.Flags&BoneFlagFixedAxis != 0 {
		p.skip(12)
	}
	if b.Flags&BoneFlagLocalAxis != 0 {
		p.skip(24)
	}
	if b.Flags&BoneFlagExternalParent != 0 {
		p.skip(4)
	}
	if b.Flags&BoneFlagEnableIK != 0 {
		p.skip(bone + 4 + 4)
		links := p.readInt()
		for i := 0; i < links && p.err == nil; i++ {
			p.skip(bone)
			if p.readUint8() != 0 {
				p.skip(24)
			}
		}
	}
	return &b
}

func (p *pmxReader) parse() (*Model, error) {
	if err := p.readHeader(); err != nil {
		return nil, err
	}
	m := &Model{Header: p.header}
	m.Name = p.text()
	m.NameEn = p.text()
	m.Comment = p.text()
	p.text()

	vn := p.readInt()
	for i := 0; i < vn && p.err == nil; i++ {
		if err := p.skipVertex(); err != nil {
			return nil, err
		}
	}
	p.skip(p.readInt() * int(p.header.Info[AttrVertIndexSz]))
	tn := p.readInt()
	for i := 0; i < tn && p.err == nil; i++ {
		p.text()
	}
	mn := p.readInt()
	for i := 0; i < mn && p.err == nil; i++ {
		p.skipMaterial()
	}
	bn := p.readInt()
	for i := 0; i < bn && p.err == nil; i++ {
		m.Bones = append(m.Bones, p.readBone())
	}
	if p.err != nil {
		return nil, fmt.Errorf("pmx: %w", p.err)
	}
	return m, nil
}

// ParsePMX reads the bones of a PMX model.
func ParsePMX(r io.Reader) (*Model, error) {
	p := &pmxReader{reader: reader{r: r}}
	return p.parse()
}

// Supported bone flags. The data of other flags is not kept, so WritePMX
// drops them.
const pmxWriteFlags = BoneFlagTailIndex | BoneFlagRotatable | BoneFlagTranslatable | BoneFlagVisible | BoneFlagEnabled | BoneFlagPhysicsMode

// WritePMX writes m as a PMX 2.0 model with bones only.
func WritePMX(w io.Writer, m *Model) error {
	h := m.Header
	if h == nil || len(h.Info) < 8 {
		h = NewModel("").Header
	}
	p := &writer{w: w}
	utf8 := h.Info[AttrStringEncoding] != 0
	bone := h.Info[AttrBoneIndexSz]

	p.write([]byte("PMX "))
	p.write(float32(2))
	p.write(uint8(len(h.Info)))
	p.write(h.Info)
	p.writeText(m.Name, utf8)
	p.writeText(m.NameEn, utf8)
	p.writeText(m.Comment, utf8)
	p.writeText("", utf8)
	// vertices, faces, textures, materials
	for i := 0; i < 4; i++ {
		p.writeInt(0)
	}

	p.writeInt(len(m.Bones))
	for _, b := range m.Bones {
		flags := b.Flags & pmxWriteFlags
		if b.TailID >= 0 {
			flags |= BoneFlagTailIndex
		} else {
			flags &^= BoneFlagTailIndex
		}
		p.writeText(b.Name, utf8)
		p.writeText(b.NameEn, utf8)
		p.write(&b.Pos)
		p.writeVInt(bone, b.ParentID)
		p.writeInt(b.Layer)
		p.write(flags)
		if flags&BoneFlagTailIndex != 0 {
			p.writeVInt(bone, b.TailID)
		} else {
			p.write(&b.TailPos)
		}
	}
	// morphs, display frames, rigid bodies, joints
	for i := 0; i < 4; i++ {
		p.writeInt(0)
	}
	return p.err
}
