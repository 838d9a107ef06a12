package mmd

import (
	"errors"
	"fmt"
	"io"
	"sort"
)

const (
	vmdMagic   = "Vocaloid Motion Data 0002"
	vmdMagicV1 = "Vocaloid Motion Data file"

	// VMDFrameRate is the frame rate of VMD key frames.
	VMDFrameRate = 30
)

// Animation is the bone and morph part of a VMD motion.
type Animation struct {
	// Name is the model the motion was made for.
	Name  string
	Bone  []*BoneKey
	Morph []*MorphKey
}

// BoneKey is a bone pose at a frame. Position is an offset from the bind
// position and Rotation is relative to the bind orientation.
type BoneKey struct {
	Target   string
	Frame    int
	Position Vector3
	Rotation Vector4
	// Params holds the bezier interpolation curves.
	Params [64]byte
}

type MorphKey struct {
	Target string
	Frame  int
	Value  float32
}

// LinearParams are interpolation curves that keep every channel linear.
var LinearParams = func() [64]byte {
	var row [16]byte
	for i := range row {
		if i < 8 {
			row[i] = 20
		} else {
			row[i] = 107
		}
	}
	var p [64]byte
	for k := 0; k < 4; k++ {
		copy(p[k*16:k*16+16-k], row[k:])
	}
	return p
}()

// Sort orders keys by frame, keeping the file order of equal frames.
func (a *Animation) Sort() {
	sort.SliceStable(a.Bone, func(i, j int) bool { return a.Bone[i].Frame < a.Bone[j].Frame })
	sort.SliceStable(a.Morph, func(i, j int) bool { return a.Morph[i].Frame < a.Morph[j].Frame })
}

// FrameCount returns the last frame plus one.
func (a *Animation) FrameCount() int {
	n := 0
	for _, k := range a.Bone {
		n = max(n, k.Frame+1)
	}
	for _, k := range a.Morph {
		n = max(n, k.Frame+1)
	}
	return n
}

// BoneNames returns the bones with keys, in order of first appearance.
func (a *Animation) BoneNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, k := range a.Bone {
		if !seen[k.Target] {
			seen[k.Target] = true
			names = append(names, k.Target)
		}
	}
	return names
}

// ParseVMD reads a motion. Camera, light and shadow sections are ignored.
func ParseVMD(r io.Reader) (*Animation, error) {
	p := &reader{r: r}
	nameLen := 20
	switch magic := p.readSJIS(30); magic {
	case vmdMagic:
	case vmdMagicV1:
		nameLen = 10
	default:
		if p.err != nil {
			return nil, p.err
		}
		return nil, fmt.Errorf("%w: %q", ErrFormat, magic)
	}

	var anim Animation
	anim.Name = p.readSJIS(nameLen)
	n := p.readInt()
	for i := 0; i < n && p.err == nil; i++ {
		k := &BoneKey{}
		k.Target = p.readSJIS(15)
		k.Frame = p.readInt()
		p.read(&k.Position)
		p.read(&k.Rotation)
		p.read(&k.Params)
		anim.Bone = append(anim.Bone, k)
	}
	if p.err != nil {
		return nil, fmt.Errorf("vmd: %w", p.err)
	}

	// Motions from some tools end after the bone keys.
	n = p.readInt()
	if errors.Is(p.err, io.EOF) {
		return &anim, nil
	}
	for i := 0; i < n && p.err == nil; i++ {
		k := &MorphKey{}
		k.Target = p.readSJIS(15)
		k.Frame = p.readInt()
		k.Value = p.readFloat()
		anim.Morph = append(anim.Morph, k)
	}
	if p.err != nil {
		return nil, fmt.Errorf("vmd: %w", p.err)
	}
	return &anim, nil
}

// WriteVMD writes a version 2 motion with empty camera and light sections.
func WriteVMD(w io.Writer, a *Animation) error {
	p := &writer{w: w}
	p.writeSJIS(vmdMagic, 30)
	p.writeSJIS(a.Name, 20)

	p.writeInt(len(a.Bone))
	for _, k := range a.Bone {
		p.writeSJIS(k.Target, 15)
		p.writeInt(k.Frame)
		p.write(&k.Position)
		p.write(&k.Rotation)
		p.write(&k.Params)
	}
	p.writeInt(len(a.Morph))
	for _, k := range a.Morph {
		p.writeSJIS(k.Target, 15)
		p.writeInt(k.Frame)
		p.write(k.Value)
	}
	p.writeInt(0) // camera
	p.writeInt(0) // light
	return p.err
}
