package gltfutil

import (
	"errors"
	"fmt"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/skeleton"
	"github.com/qmuntal/gltf"
)

var ErrNoSkin = errors.New("skin not found")

// Skin is a skeleton read from a glTF document. Nodes holds the node of
// each bone.
type Skin struct {
	Skeleton *skeleton.Skeleton
	Nodes    []uint32
}

// NodeLocal returns the local transform of a node. Scale is dropped.
func NodeLocal(n *gltf.Node) geom.Transform {
	if n.MatrixOrDefault() != gltf.DefaultMatrix {
		m := n.Matrix
		return *geom.NewTransformFromMatrix4(geom.NewMatrix4FromSlice(m[:]))
	}
	return geom.Transform{
		Rotation:    *geom.NewQuaternionFromArray(n.RotationOrDefault()).Normalize(),
		Translation: *geom.NewVector3FromArray(n.TranslationOrDefault()),
	}
}

func nodeParents(doc *gltf.Document) []int {
	parents := make([]int, len(doc.Nodes))
	for i := range parents {
		parents[i] = -1
	}
	for i, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) < len(parents) {
				parents[c] = i
			}
		}
	}
	return parents
}

// LoadSkin builds a skeleton from the joints of a skin. With skin < 0, or a
// document without skins, every node becomes a bone. Nodes between two
// joints are folded into the child joint's local transform.
func LoadSkin(doc *gltf.Document, skin int) (*Skin, error) {
	var joints []uint32
	switch {
	case skin >= 0 && skin < len(doc.Skins):
		joints = doc.Skins[skin].Joints
	case skin < 0 || (len(doc.Skins) == 0 && skin == 0):
		for i := range doc.Nodes {
			joints = append(joints, uint32(i))
		}
	default:
		return nil, fmt.Errorf("%w: %d", ErrNoSkin, skin)
	}

	boneOf := map[uint32]int{}
	for i, j := range joints {
		if int(j) >= len(doc.Nodes) {
			return nil, fmt.Errorf("joint %d: node %d out of range", i, j)
		}
		boneOf[j] = i
	}
	nodeParent := nodeParents(doc)

	locals := make([]geom.Transform, len(joints))
	parents := make([]int, len(joints))
	for i, j := range joints {
		locals[i] = NodeLocal(doc.Nodes[j])
		parents[i] = -1
		for p := nodeParent[j]; p >= 0; p = nodeParent[p] {
			if b, ok := boneOf[uint32(p)]; ok {
				parents[i] = b
				break
			}
			pl := NodeLocal(doc.Nodes[p])
			locals[i] = *pl.Mul(&locals[i])
		}
	}

	// The distance to the first child is the bone length.
	lengths := make([]float32, len(joints))
	for i := len(joints) - 1; i >= 0; i-- {
		if p := parents[i]; p >= 0 {
			lengths[p] = locals[i].Translation.Len()
		}
	}

	s := skeleton.New()
	for i, j := range joints {
		name := doc.Nodes[j].Name
		if name == "" {
			name = fmt.Sprintf("node%d", j)
		}
		s.AddBone(name, locals[i], parents[i], lengths[i])
	}
	if err := s.Build(); err != nil {
		return nil, err
	}
	return &Skin{Skeleton: s, Nodes: joints}, nil
}

// BoneNode returns the node of a named bone, or -1.
func (s *Skin) BoneNode(name string) int {
	if b := s.Skeleton.BoneIndex(name); b >= 0 {
		return int(s.Nodes[b])
	}
	return -1
}
