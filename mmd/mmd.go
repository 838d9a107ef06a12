// Package mmd reads and writes the MikuMikuDance formats used for
// retargeting: bone hierarchies from .pmx/.pmd models and bone motion in .vmd.
package mmd

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

type Vector4 struct {
	X float32
	Y float32
	Z float32
	W float32
}

type Header struct {
	Format  []byte
	Version float32
	Info    []byte
}

// Model is the bone part of a PMX or PMD document. Meshes, materials and
// morphs are skipped when parsing.
type Model struct {
	Header  *Header
	Name    string
	NameEn  string
	Comment string
	Bones   []*Bone
}

func NewModel(name string) *Model {
	return &Model{Header: &Header{
		Format:  []byte("PMX "),
		Version: 2,
		Info:    []byte{1, 0, 4, 4, 4, 4, 4, 4},
	}, Name: name}
}

// Bone positions are in model space.
type Bone struct {
	Name     string
	NameEn   string
	Pos      Vector3
	ParentID int
	Layer    int
	Flags    uint16
	TailID   int
	// TailPos is an offset from Pos, used when TailID < 0.
	TailPos Vector3
}

// BoneIndex returns the index of the first bone named name, or -1.
func (m *Model) BoneIndex(name string) int {
	for i, b := range m.Bones {
		if b.Name == name {
			return i
		}
	}
	return -1
}

const (
	BoneFlagTailIndex    uint16 = 1
	BoneFlagRotatable    uint16 = 2
	BoneFlagTranslatable uint16 = 4
	BoneFlagVisible      uint16 = 8
	BoneFlagEnabled      uint16 = 16
	BoneFlagEnableIK     uint16 = 32

	BoneFlagInheritRotation    uint16 = 256
	BoneFlagInheritTranslation uint16 = 512
	BoneFlagFixedAxis          uint16 = 1024
	BoneFlagLocalAxis          uint16 = 2048
	BoneFlagPhysicsMode        uint16 = 4096
	BoneFlagExternalParent     uint16 = 8192
)

const (
	AttrStringEncoding int = iota
	AttrExtUV
	AttrVertIndexSz
	AttrTexIndexSz
	AttrMatIndexSz
	AttrBoneIndexSz
	AttrMorphIndexSz
	AttrRBIndexSz
)
