package anim

import (
	"fmt"
	"math"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/skeleton"
)

// Player samples a clip into local poses of a skeleton.
type Player struct {
	clip     *Clip
	skeleton *skeleton.Skeleton
	// bone index -> track, nil when the bone is not animated
	tracks []*Track
	frame  float32
	Loop   bool
}

// NewPlayer binds the clip's tracks to bones by name. Tracks without a
// matching bone are ignored.
func NewPlayer(clip *Clip, s *skeleton.Skeleton) *Player {
	p := &Player{clip: clip, skeleton: s, tracks: make([]*Track, s.BoneCount())}
	unbound := 0
	for _, t := range clip.Tracks {
		if i := s.BoneIndex(t.Bone); i >= 0 {
			p.tracks[i] = t
		} else {
			unbound++
		}
	}
	if unbound > 0 {
		logging.Debug("tracks without bones", "clip", clip.Name, "count", unbound)
	}
	return p
}

func (p *Player) Clip() *Clip {
	return p.clip
}

func (p *Player) Frame() float32 {
	return p.frame
}

func (p *Player) Seek(frame float32) {
	p.frame = frame
	p.wrap()
}

// Advance moves the play head by seconds.
func (p *Player) Advance(seconds float32) {
	p.frame += seconds * p.clip.FrameRate
	p.wrap()
}

func (p *Player) wrap() {
	d := p.clip.Duration()
	if !p.Loop || d <= 0 || (p.frame >= 0 && p.frame <= d) {
		return
	}
	f := math.Mod(float64(p.frame), float64(d))
	switch {
	case math.IsNaN(f):
		f = 0
	case f < 0:
		f += float64(d)
	}
	p.frame = float32(f)
}

// Pose writes the local pose at the current frame into out.
func (p *Player) Pose(out []geom.Transform) error {
	return p.PoseAt(p.frame, out)
}

// PoseAt writes the local pose at frame into out. Bones without a track
// keep their bind pose.
func (p *Player) PoseAt(frame float32, out []geom.Transform) error {
	if len(out) != len(p.tracks) {
		return fmt.Errorf("%w: got %d, want %d", skeleton.ErrPoseSize, len(out), len(p.tracks))
	}
	for i, t := range p.tracks {
		bind := p.skeleton.BoneLocal(i)
		if t == nil {
			out[i] = bind
			continue
		}
		key := t.Sample(frame)
		out[i] = ApplyKey(&bind, &key)
	}
	return nil
}
