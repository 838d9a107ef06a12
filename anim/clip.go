package anim

import (
	"sort"

	"github.com/binzume/retarget/geom"
)

// Keyframe is a bone offset from its bind pose at a frame.
// Translation is added to the bind translation and Rotation is applied
// after the bind rotation.
type Keyframe struct {
	Frame     float32
	Transform geom.Transform
}

type Track struct {
	Bone string
	Keys []Keyframe
}

// Clip is a set of bone tracks sampled in frames.
type Clip struct {
	Name      string
	FrameRate float32
	Tracks    []*Track
}

func NewClip(name string, frameRate float32) *Clip {
	return &Clip{Name: name, FrameRate: frameRate}
}

// Track returns the track of bone, or nil.
func (c *Clip) Track(bone string) *Track {
	for _, t := range c.Tracks {
		if t.Bone == bone {
			return t
		}
	}
	return nil
}

// AddKey appends a key to the bone's track, creating the track if needed.
// Call Sort after adding keys out of order.
func (c *Clip) AddKey(bone string, frame float32, t geom.Transform) {
	tr := c.Track(bone)
	if tr == nil {
		tr = &Track{Bone: bone}
		c.Tracks = append(c.Tracks, tr)
	}
	tr.Keys = append(tr.Keys, Keyframe{Frame: frame, Transform: t})
}

func (c *Clip) Sort() {
	for _, t := range c.Tracks {
		sort.SliceStable(t.Keys, func(i, j int) bool { return t.Keys[i].Frame < t.Keys[j].Frame })
	}
}

// Duration returns the last key frame of the clip.
func (c *Clip) Duration() float32 {
	var d float32
	for _, t := range c.Tracks {
		if n := len(t.Keys); n > 0 && t.Keys[n-1].Frame > d {
			d = t.Keys[n-1].Frame
		}
	}
	return d
}

func (c *Clip) KeyCount() int {
	n := 0
	for _, t := range c.Tracks {
		n += len(t.Keys)
	}
	return n
}

// Sample interpolates the track at frame. Frames outside the keys clamp to
// the first or last key. An empty track yields the identity offset.
func (t *Track) Sample(frame float32) geom.Transform {
	n := len(t.Keys)
	if n == 0 {
		return geom.IdentityTransform
	}
	i := sort.Search(n, func(i int) bool { return t.Keys[i].Frame > frame })
	if i == 0 {
		return t.Keys[0].Transform
	}
	if i == n {
		return t.Keys[n-1].Transform
	}
	a, b := &t.Keys[i-1], &t.Keys[i]
	f := (frame - a.Frame) / (b.Frame - a.Frame)
	return *a.Transform.Interpolate(&b.Transform, f)
}

// ApplyKey returns the local transform of a bone posed by key.
func ApplyKey(bind, key *geom.Transform) geom.Transform {
	return geom.Transform{
		Rotation:    *bind.Rotation.Mul(&key.Rotation),
		Translation: *bind.Translation.Add(&key.Translation),
	}
}

// KeyFromLocal is the inverse of ApplyKey.
func KeyFromLocal(bind, local *geom.Transform) geom.Transform {
	return geom.Transform{
		Rotation:    *bind.Rotation.Inverse().Mul(&local.Rotation),
		Translation: *local.Translation.Sub(&bind.Translation),
	}
}
