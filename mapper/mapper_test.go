package mapper

import (
	"errors"
	"testing"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/skeleton"
)

// newLinearSkeleton stacks bones along +Y, step apart.
func newLinearSkeleton(t *testing.T, step float32, names ...string) *skeleton.Skeleton {
	t.Helper()
	s := skeleton.New()
	for i, name := range names {
		local := geom.IdentityTransform
		if i > 0 {
			local = *geom.NewTranslationTransform(0, step, 0)
		}
		s.AddBone(name, local, i-1, step)
	}
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBuilderAPI(t *testing.T) {
	src := newLinearSkeleton(t, 1, "hip", "spine", "chest", "head")
	tgt := newLinearSkeleton(t, 2, "Hips", "Spine", "Head")

	m := New()
	if err := m.AddSourceChain("x", "hip", "hip"); !errors.Is(err, ErrNoSkeleton) {
		t.Error("expected ErrNoSkeleton: ", err)
	}
	if err := m.SetSkeletons(src, nil); !errors.Is(err, ErrNoSkeleton) {
		t.Error("expected ErrNoSkeleton: ", err)
	}
	if err := m.SetSkeletons(src, tgt); err != nil {
		t.Fatal(err)
	}

	steps := []func() error{
		func() error { return m.AddSourceChain("root", "hip", "hip") },
		func() error { return m.AddSourceChain("torso", "spine", "chest") },
		func() error { return m.AddTargetChain("Root", "Hips", "Hips") },
		func() error { return m.AddTargetChain("Torso", "Spine", "Spine") },
		func() error { return m.MapChain("root", "Root") },
		func() error { return m.MapChain("torso", "Torso") },
		func() error { return m.MapBone("head", "Head") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatal(i, err)
		}
	}
	if m.SourceChainCount() != 3 || m.TargetChainCount() != 3 || m.MappedChainCount() != 3 {
		t.Error("counts: ", m.SourceChainCount(), m.TargetChainCount(), m.MappedChainCount())
	}
	if m.MappingForChain(1) != 1 || m.SourceChain(1).Last != 2 {
		t.Error("torso mapping: ", m.MappingForChain(1), m.SourceChain(1))
	}
	if m.TargetChain(2).Name != "Head" || m.MappingForChain(2) != 2 {
		t.Error("head mapping: ", m.TargetChain(2))
	}
}

func TestBuilderFailureResets(t *testing.T) {
	src := newLinearSkeleton(t, 1, "hip", "spine", "chest")
	tgt := newLinearSkeleton(t, 1, "hip", "spine")

	tests := []struct {
		name string
		op   func(m *Mapper) error
		want error
	}{
		{"missing bone", func(m *Mapper) error { return m.AddSourceChain("c", "hip", "nope") }, ErrBoneNotFound},
		{"not a descendant", func(m *Mapper) error { return m.AddSourceChain("c", "chest", "hip") }, ErrInvalidChain},
		{"overlap", func(m *Mapper) error { return m.AddSourceChain("c", "spine", "chest") }, ErrChainOverlap},
		{"duplicate", func(m *Mapper) error { return m.AddSourceChain("a", "chest", "chest") }, ErrDuplicateChain},
		{"unknown chain", func(m *Mapper) error { return m.MapChain("a", "nope") }, ErrChainNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			if err := m.SetSkeletons(src, tgt); err != nil {
				t.Fatal(err)
			}
			if err := m.AddSourceChain("a", "hip", "spine"); err != nil {
				t.Fatal(err)
			}
			v := m.Version()
			err := tt.op(m)
			if !errors.Is(err, tt.want) {
				t.Fatal("error: ", err, tt.want)
			}
			if m.SourceChainCount() != 0 || m.TargetChainCount() != 0 {
				t.Error("mapper should be empty after a failure")
			}
			if m.Version() == v {
				t.Error("version should change on reset")
			}
		})
	}
}

func TestBuildUsingBoneNames(t *testing.T) {
	src := newLinearSkeleton(t, 1, "Hip", "Spine", "Chest", "Head")
	tgt := newLinearSkeleton(t, 2, "Hip", "Spine", "Head")

	m := New()
	if err := m.BuildUsingBoneNames(src, tgt, nil); err != nil {
		t.Fatal(err)
	}
	// Chest has no counterpart and joins Spine's chain
	if m.SourceChainCount() != 3 || m.SourceChain(1) != (BoneChain{"Spine", 1, 2}) {
		t.Error("source chains: ", m.SourceChains())
	}
	if m.TargetChainCount() != 3 {
		t.Fatal("target chains: ", m.TargetChains())
	}
	for i := 0; i < m.TargetChainCount(); i++ {
		s := m.MappingForChain(i)
		if s == Unmapped || m.SourceChain(s).Name != m.TargetChain(i).Name {
			t.Error("mapping by name: ", m.TargetChain(i), s)
		}
	}
}

func TestBuildUsingBoneNamesAliases(t *testing.T) {
	src := newLinearSkeleton(t, 1, "センター", "上半身", "頭")
	tgt := newLinearSkeleton(t, 1, "hips", "spine", "head")
	aliases := map[string]string{"センター": "hips", "上半身": "spine", "頭": "head"}

	m := New()
	if err := m.BuildUsingBoneNames(src, tgt, aliases); err != nil {
		t.Fatal(err)
	}
	if m.MappedChainCount() != 3 {
		t.Error("mapped: ", m.MappedChainCount())
	}
	if s := m.MappingForChain(2); m.SourceChain(s).Name != "頭" {
		t.Error("head mapping: ", m.SourceChain(s))
	}
}

func TestBuildUsingBoneNamesErrors(t *testing.T) {
	m := New()
	if err := m.BuildUsingBoneNames(nil, nil, nil); !errors.Is(err, ErrNoSkeleton) {
		t.Error("expected ErrNoSkeleton: ", err)
	}

	// target has two unmatched tails below Hip
	src := newLinearSkeleton(t, 1, "Hip", "Spine")
	tgt := newLinearSkeleton(t, 1, "Hip", "Spine")
	tgt.AddBone("TailA", *geom.NewTranslationTransform(0, -1, 0), 0, 1)
	tgt.AddBone("TailB", *geom.NewTranslationTransform(0, -1, 1), 0, 1)
	if err := tgt.Build(); err != nil {
		t.Fatal(err)
	}
	err := m.BuildUsingBoneNames(src, tgt, nil)
	var be *BranchError
	if !errors.As(err, &be) || be.Bone != 3 {
		t.Error("expected a branch error on TailB: ", err)
	}
	if m.SourceChainCount() != 0 || m.TargetChainCount() != 0 {
		t.Error("mapper should be empty after a failure")
	}

	// unmatched root
	other := newLinearSkeleton(t, 1, "Root", "Hip", "Spine")
	if err := m.BuildUsingBoneNames(src, other, nil); !errors.Is(err, ErrNoAnchor) {
		t.Error("expected ErrNoAnchor: ", err)
	}

	dup := newLinearSkeleton(t, 1, "Hip", "Spine", "Spine")
	if err := m.BuildUsingBoneNames(src, dup, nil); !errors.Is(err, skeleton.ErrDuplicateName) {
		t.Error("expected ErrDuplicateName: ", err)
	}
}

func TestBuildUsingBoneDistance(t *testing.T) {
	src := newLinearSkeleton(t, 1, "a", "b", "c", "d")
	tgt := newLinearSkeleton(t, 1.1, "w", "x", "y")

	m := New()
	if err := m.BuildUsingBoneDistance(src, tgt, 0.5); err != nil {
		t.Fatal(err)
	}
	// a<->w, b<->x (0.1 apart), c<->y (0.2 apart); d has nothing close
	if m.SourceChainCount() != 3 || m.SourceChain(2) != (BoneChain{"c", 2, 3}) {
		t.Error("source chains: ", m.SourceChains())
	}
	for i := 0; i < m.TargetChainCount(); i++ {
		if m.MappingForChain(i) != i {
			t.Error("mapping: ", i, m.MappingForChain(i))
		}
	}
}

func TestBuildIdentity(t *testing.T) {
	s := newLinearSkeleton(t, 1, "a", "b", "c")
	m := New()
	if err := m.BuildUsingBoneNames(s, s, nil); err != nil {
		t.Fatal(err)
	}
	if m.SourceChainCount() != 3 || m.TargetChainCount() != 3 {
		t.Fatal("one chain per bone expected")
	}
	for i := 0; i < 3; i++ {
		if c := m.TargetChain(i); c.First != i || c.Last != i || m.MappingForChain(i) != i {
			t.Error("identity chain: ", c, m.MappingForChain(i))
		}
	}
}
