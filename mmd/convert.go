package mmd

import (
	"math"

	"github.com/binzume/retarget/anim"
	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/skeleton"
)

// Options converts between MMD coordinates and skeleton coordinates.
type Options struct {
	// Scale multiplies positions. Zero means 1.
	Scale float32
	// FlipZ mirrors the Z axis, turning MMD's left handed space into a
	// right handed one.
	FlipZ bool
}

func (o *Options) scale() float32 {
	if o.Scale == 0 {
		return 1
	}
	return o.Scale
}

func (o *Options) position(v *Vector3) geom.Vector3 {
	s := o.scale()
	p := geom.Vector3{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
	if o.FlipZ {
		p.Z = -p.Z
	}
	return p
}

func (o *Options) mmdPosition(v *geom.Vector3) Vector3 {
	s := o.scale()
	p := Vector3{X: v.X / s, Y: v.Y / s, Z: v.Z / s}
	if o.FlipZ {
		p.Z = -p.Z
	}
	return p
}

func (o *Options) rotation(q *Vector4) geom.Quaternion {
	r := geom.Quaternion{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
	if r.LenSqr() == 0 {
		return geom.Quaternion{W: 1}
	}
	if o.FlipZ {
		r.X, r.Y = -r.X, -r.Y
	}
	return r
}

func (o *Options) mmdRotation(q *geom.Quaternion) Vector4 {
	r := Vector4{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
	if o.FlipZ {
		r.X, r.Y = -r.X, -r.Y
	}
	return r
}

// Skeleton builds a skeleton from the model bones. MMD bones carry no
// orientation, so every bind rotation is the identity.
func (m *Model) Skeleton(opts Options) (*skeleton.Skeleton, error) {
	n := len(m.Bones)
	pos := make([]geom.Vector3, n)
	for i, b := range m.Bones {
		pos[i] = opts.position(&b.Pos)
	}
	s := skeleton.New()
	for i, b := range m.Bones {
		parent := b.ParentID
		local := geom.Transform{Rotation: geom.Quaternion{W: 1}, Translation: pos[i]}
		if parent >= 0 && parent < n {
			local.Translation = *pos[i].Sub(&pos[parent])
		} else {
			parent = -1
		}
		var length float32
		if b.TailID >= 0 && b.TailID < n {
			length = pos[b.TailID].Sub(&pos[i]).Len()
		} else if b.TailID < 0 {
			tail := opts.position(&b.TailPos)
			length = tail.Len()
		}
		s.AddBone(b.Name, local, parent, length)
	}
	if err := s.Build(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewModelFromSkeleton returns a bones-only model in the skeleton's bind
// pose. Bind rotations are dropped.
func NewModelFromSkeleton(name string, s *skeleton.Skeleton, opts Options) *Model {
	m := NewModel(name)
	n := s.BoneCount()
	for i := 0; i < n; i++ {
		bind := s.BindModel(i)
		m.Bones = append(m.Bones, &Bone{
			Name:     s.BoneName(i),
			Pos:      opts.mmdPosition(&bind.Translation),
			ParentID: s.BoneParent(i),
			Flags:    BoneFlagRotatable | BoneFlagVisible | BoneFlagEnabled,
			TailID:   -1,
		})
	}
	for i := 0; i < n; i++ {
		if p := s.BoneParent(i); p >= 0 && m.Bones[p].TailID < 0 {
			m.Bones[p].TailID = i
			m.Bones[p].Flags |= BoneFlagTailIndex
		}
	}
	if n > 0 {
		m.Bones[0].Flags |= BoneFlagTranslatable
	}
	return m
}

// Clip converts the bone keys into a clip at VMDFrameRate. Morph keys are
// not part of the clip.
func (a *Animation) Clip(opts Options) *anim.Clip {
	clip := anim.NewClip(a.Name, VMDFrameRate)
	for _, k := range a.Bone {
		clip.AddKey(k.Target, float32(k.Frame), geom.Transform{
			Rotation:    opts.rotation(&k.Rotation),
			Translation: opts.position(&k.Position),
		})
	}
	clip.Sort()
	return clip
}

// NewAnimation converts a clip into VMD bone keys with linear interpolation.
// Keys are resampled to whole frames at VMDFrameRate; keys landing on the
// same frame keep the last one.
func NewAnimation(name string, clip *anim.Clip, opts Options) *Animation {
	a := &Animation{Name: name}
	rate := clip.FrameRate
	if rate <= 0 {
		rate = VMDFrameRate
	}
	for _, t := range clip.Tracks {
		last := -1
		for _, key := range t.Keys {
			frame := int(math.Round(float64(key.Frame * VMDFrameRate / rate)))
			k := &BoneKey{
				Target:   t.Bone,
				Frame:    frame,
				Position: opts.mmdPosition(&key.Transform.Translation),
				Rotation: opts.mmdRotation(&key.Transform.Rotation),
				Params:   LinearParams,
			}
			if frame == last {
				a.Bone[len(a.Bone)-1] = k
				continue
			}
			a.Bone = append(a.Bone, k)
			last = frame
		}
	}
	return a
}
