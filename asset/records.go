package asset

import (
	"errors"
	"fmt"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/mapper"
	"github.com/binzume/retarget/skeleton"
)

const (
	KindSkeleton = "skeleton"
	KindMapper   = "mapper"
)

var ErrKind = errors.New("unexpected asset kind")

type BoneRecord struct {
	Name     string     `yaml:"name"`
	Parent   int        `yaml:"parent"`
	Position [3]float32 `yaml:"position,flow"`
	Rotation [4]float32 `yaml:"rotation,flow"`
	// Euler is an alternative to Rotation for hand written records: angles
	// in degrees, applied in EulerOrder (XYZ by default).
	Euler      []float32 `yaml:"euler,flow,omitempty"`
	EulerOrder string    `yaml:"euler_order,omitempty"`
	Length     float32   `yaml:"length,omitempty"`
}

func (b *BoneRecord) rotation() (*geom.Quaternion, error) {
	if len(b.Euler) > 0 {
		order, ok := geom.ParseRotationOrder(b.EulerOrder)
		if len(b.Euler) != 3 || !ok {
			return nil, fmt.Errorf("bone %q: bad euler rotation %v %q", b.Name, b.Euler, b.EulerOrder)
		}
		return geom.NewEulerDegrees(b.Euler[0], b.Euler[1], b.Euler[2], order).ToQuaternion(), nil
	}
	rot := geom.NewQuaternionFromArray(b.Rotation)
	if rot.LenSqr() == 0 {
		return geom.NewIdentityQuaternion(), nil
	}
	return rot.Normalize(), nil
}

// SkeletonRecord is the persisted form of a Skeleton: bones with local bind
// transforms and parent indices.
type SkeletonRecord struct {
	Kind  string       `yaml:"kind"`
	Name  string       `yaml:"name,omitempty"`
	Bones []BoneRecord `yaml:"bones"`
}

func NewSkeletonRecord(name string, s *skeleton.Skeleton) *SkeletonRecord {
	r := &SkeletonRecord{Kind: KindSkeleton, Name: name}
	for i := 0; i < s.BoneCount(); i++ {
		b := s.Bone(i)
		t, q := b.Local.Translation, b.Local.Rotation
		r.Bones = append(r.Bones, BoneRecord{
			Name:     b.Name,
			Parent:   b.Parent,
			Position: [3]float32{t.X, t.Y, t.Z},
			Rotation: [4]float32{q.X, q.Y, q.Z, q.W},
			Length:   b.Length,
		})
	}
	return r
}

// Skeleton builds a new skeleton from the record.
func (r *SkeletonRecord) Skeleton() (*skeleton.Skeleton, error) {
	s := skeleton.New()
	if err := r.apply(s); err != nil {
		return nil, err
	}
	return s, nil
}

// apply replaces the bones of s, keeping s itself valid for its holders.
func (r *SkeletonRecord) apply(s *skeleton.Skeleton) error {
	if r.Kind != "" && r.Kind != KindSkeleton {
		return fmt.Errorf("%w: %q", ErrKind, r.Kind)
	}
	rots := make([]*geom.Quaternion, len(r.Bones))
	for i := range r.Bones {
		rot, err := r.Bones[i].rotation()
		if err != nil {
			return err
		}
		rots[i] = rot
	}
	s.Clear()
	for i, b := range r.Bones {
		s.AddBone(b.Name, *geom.NewTransform(rots[i], geom.NewVector3FromArray(b.Position)), b.Parent, b.Length)
	}
	return s.Build()
}

type ChainRecord struct {
	Name  string `yaml:"name"`
	First string `yaml:"first"`
	Last  string `yaml:"last"`
}

type MappingRecord struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// MapperRecord is the persisted form of a Mapper. Chains and mappings are
// stored by name, so a record survives bone reordering in its skeletons.
type MapperRecord struct {
	Kind         string          `yaml:"kind"`
	Source       string          `yaml:"source"`
	Target       string          `yaml:"target"`
	SourceChains []ChainRecord   `yaml:"source_chains"`
	TargetChains []ChainRecord   `yaml:"target_chains"`
	Mapping      []MappingRecord `yaml:"mapping"`
}

// NewMapperRecord captures m. source and target are references to the
// skeleton assets, usually paths relative to the mapper file.
func NewMapperRecord(m *mapper.Mapper, source, target string) *MapperRecord {
	r := &MapperRecord{Kind: KindMapper, Source: source, Target: target}
	chainRecord := func(s *skeleton.Skeleton, c mapper.BoneChain) ChainRecord {
		return ChainRecord{Name: c.Name, First: s.BoneName(c.First), Last: s.BoneName(c.Last)}
	}
	for _, c := range m.SourceChains() {
		r.SourceChains = append(r.SourceChains, chainRecord(m.Source(), c))
	}
	for i, c := range m.TargetChains() {
		r.TargetChains = append(r.TargetChains, chainRecord(m.Target(), c))
		if s := m.MappingForChain(i); s != mapper.Unmapped {
			r.Mapping = append(r.Mapping, MappingRecord{Source: m.SourceChain(s).Name, Target: c.Name})
		}
	}
	return r
}

// Apply rebuilds m from the record on the given skeletons.
func (r *MapperRecord) Apply(m *mapper.Mapper, source, target *skeleton.Skeleton) error {
	if r.Kind != "" && r.Kind != KindMapper {
		return fmt.Errorf("%w: %q", ErrKind, r.Kind)
	}
	if err := m.SetSkeletons(source, target); err != nil {
		return err
	}
	for _, c := range r.SourceChains {
		if err := m.AddSourceChain(c.Name, c.First, c.Last); err != nil {
			return err
		}
	}
	for _, c := range r.TargetChains {
		if err := m.AddTargetChain(c.Name, c.First, c.Last); err != nil {
			return err
		}
	}
	for _, mp := range r.Mapping {
		if err := m.MapChain(mp.Source, mp.Target); err != nil {
			return err
		}
	}
	return nil
}
