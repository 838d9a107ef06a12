package skeleton

import (
	"errors"
	"fmt"

	"github.com/binzume/retarget/geom"
)

// PoseTool builds skeletons and poses from model space descriptions.
// It is mostly used to set up fixtures:
//
//	tool := NewPoseTool(s)
//	tool.StartSkeleton("hip", axisX, 0, zero).Bone("spine", "hip", axisX, 0, up).BuildSkeleton()
//	tool.Start().Rotate("spine", axisX, math.Pi/2).End()
type PoseTool struct {
	skeleton *Skeleton
	parents  []string

	local      []geom.Transform
	model      []geom.Transform
	modelDirty bool
	localDirty bool
	err        error
}

func NewPoseTool(s *Skeleton) *PoseTool {
	return &PoseTool{skeleton: s}
}

func (p *PoseTool) Skeleton() *Skeleton {
	return p.skeleton
}

// StartSkeleton adds a root bone with the given model space transform.
func (p *PoseTool) StartSkeleton(name string, axis *geom.Vector3, angle float32, pos *geom.Vector3) *PoseTool {
	return p.Bone(name, "", axis, angle, pos)
}

// Bone adds a bone with the given model space transform. The parent is
// resolved by name in BuildSkeleton, so bones may be declared in any order.
func (p *PoseTool) Bone(name, parent string, axis *geom.Vector3, angle float32, pos *geom.Vector3) *PoseTool {
	p.parents = append(p.parents, parent)
	p.skeleton.AddBone(name, *geom.NewAxisAngleTransform(axis, angle, pos), -1, 1)
	return p
}

// BuildSkeleton resolves parent names, converts the declared model space
// transforms into local ones and builds the skeleton.
func (p *PoseTool) BuildSkeleton() error {
	s := p.skeleton
	base := s.BoneCount() - len(p.parents)
	for i, name := range p.parents {
		if name == "" {
			continue
		}
		parent := s.BoneIndex(name)
		if parent < 0 {
			return fmt.Errorf("%w: %q", ErrBoneNotFound, name)
		}
		s.parents[base+i] = parent
	}
	p.parents = nil

	model := append([]geom.Transform(nil), s.locals...)
	for i := base; i < len(model); i++ {
		parent := s.parents[i]
		switch {
		case parent >= base:
			s.locals[i] = *model[parent].InverseMul(&model[i])
		case parent >= 0 && parent < len(s.bindModel):
			s.locals[i] = *s.bindModel[parent].InverseMul(&model[i])
		case parent >= 0:
			return ErrNotBuilt
		}
	}
	if err := s.Build(); err != nil {
		return err
	}
	p.local = make([]geom.Transform, s.BoneCount())
	p.model = make([]geom.Transform, s.BoneCount())
	return p.Start().End()
}

// Start resets the pose to the bind pose.
func (p *PoseTool) Start() *PoseTool {
	p.err = nil
	p.ensureSize()
	copy(p.local, p.skeleton.locals)
	p.localDirty = false
	p.modelDirty = true
	return p
}

// Rotate rotates a bone about its own origin.
func (p *PoseTool) Rotate(name string, axis *geom.Vector3, angle float32) *PoseTool {
	return p.apply(name, func(local *geom.Transform) *geom.Transform {
		return local.Mul(geom.NewAxisAngleTransform(axis, angle, &geom.Vector3{}))
	})
}

// Translate moves a bone along its own axes.
func (p *PoseTool) Translate(name string, v *geom.Vector3) *PoseTool {
	return p.apply(name, func(local *geom.Transform) *geom.Transform {
		return local.Mul(geom.NewTranslationTransform(v.X, v.Y, v.Z))
	})
}

// RotateAndTranslate applies a rigid transform in the parent's space.
func (p *PoseTool) RotateAndTranslate(name string, axis *geom.Vector3, angle float32, pos *geom.Vector3) *PoseTool {
	return p.apply(name, func(local *geom.Transform) *geom.Transform {
		return geom.NewAxisAngleTransform(axis, angle, pos).Mul(local)
	})
}

func (p *PoseTool) apply(name string, f func(*geom.Transform) *geom.Transform) *PoseTool {
	i := p.skeleton.BoneIndex(name)
	if i < 0 {
		p.err = errors.Join(p.err, fmt.Errorf("%w: %q", ErrBoneNotFound, name))
		return p
	}
	p.sync()
	p.local[i] = *f(&p.local[i])
	p.modelDirty = true
	return p
}

// End finishes a pose edit and returns the first error of the edit.
func (p *PoseTool) End() error {
	p.modelDirty = true
	p.sync()
	return p.err
}

func (p *PoseTool) ensureSize() {
	n := p.skeleton.BoneCount()
	if len(p.local) != n {
		p.local = make([]geom.Transform, n)
		p.model = make([]geom.Transform, n)
	}
}

func (p *PoseTool) sync() {
	switch {
	case p.modelDirty:
		p.skeleton.localToModel(p.local, p.model)
		p.modelDirty = false
	case p.localDirty:
		p.skeleton.modelToLocal(p.model, p.local)
		p.localDirty = false
	}
}

func (p *PoseTool) Local() []geom.Transform {
	p.ensureSize()
	p.sync()
	return p.local
}

// AccessLocal returns the local pose for writing; the model pose is
// recomputed on the next read.
func (p *PoseTool) AccessLocal() []geom.Transform {
	p.ensureSize()
	p.sync()
	p.modelDirty = true
	return p.local
}

func (p *PoseTool) Model() []geom.Transform {
	p.ensureSize()
	p.sync()
	return p.model
}

// AccessModel returns the model pose for writing; the local pose is
// recomputed on the next read.
func (p *PoseTool) AccessModel() []geom.Transform {
	p.ensureSize()
	p.sync()
	p.localDirty = true
	return p.model
}

// TestBoneModel checks the model space transform of a bone.
func (p *PoseTool) TestBoneModel(name string, axis *geom.Vector3, angle float32, pos *geom.Vector3, tol float64) error {
	i := p.skeleton.BoneIndex(name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrBoneNotFound, name)
	}
	want := geom.NewAxisAngleTransform(axis, angle, pos)
	got := p.Model()[i]
	if !TransformApproxEqual(&got, want, tol) {
		return fmt.Errorf("bone %q: model transform %v, want %v", name, got, *want)
	}
	return nil
}
