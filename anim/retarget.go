package anim

import (
	"context"
	"sync"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/mapper"
	"github.com/binzume/retarget/skeleton"
)

type RetargetOptions struct {
	// Workers is the number of goroutines, each with its own runtime.
	Workers int
	Runtime mapper.RuntimeOptions
	// Step is the sampling interval in frames. Defaults to 1.
	Step float32
	// Progress is called once per retargeted frame, possibly concurrently.
	Progress func()
}

// FrameCount returns the number of frames RetargetClip samples.
func (o *RetargetOptions) FrameCount(clip *Clip) int {
	return int(clip.Duration()/o.step()) + 1
}

func (o *RetargetOptions) step() float32 {
	if o.Step <= 0 {
		return 1
	}
	return o.Step
}

// RetargetClip samples clip on the source skeleton of m and returns a clip
// for the target skeleton. Bones that never leave their bind pose get no
// track.
func RetargetClip(ctx context.Context, m *mapper.Mapper, clip *Clip, opts RetargetOptions) (*Clip, error) {
	src, tgt := m.Source(), m.Target()
	if src == nil || tgt == nil {
		return nil, mapper.ErrNoSkeleton
	}
	step := opts.step()
	n := opts.FrameCount(clip)
	workers := max(1, min(opts.Workers, n))

	player := NewPlayer(clip, src)
	poses := make([][]geom.Transform, n)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	fail := func(err error) {
		once.Do(func() {
			firstErr = err
			cancel()
		})
	}

	frames := make(chan int, workers*2)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt := mapper.NewRuntime(m, opts.Runtime)
			if err := rt.Compile(); err != nil {
				fail(err)
				return
			}
			defer rt.Destroy()
			source := make([]geom.Transform, src.BoneCount())
			for i := range frames {
				if ctx.Err() != nil {
					continue
				}
				if err := player.PoseAt(float32(i)*step, source); err != nil {
					fail(err)
					continue
				}
				out := make([]geom.Transform, tgt.BoneCount())
				if err := rt.CalcPoseLocalSpace(source, out); err != nil {
					fail(err)
					continue
				}
				poses[i] = out
				if opts.Progress != nil {
					opts.Progress()
				}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case frames <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(frames)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := NewClip(clip.Name, clip.FrameRate)
	for b := 0; b < tgt.BoneCount(); b++ {
		bind := tgt.BoneLocal(b)
		track := &Track{Bone: tgt.BoneName(b), Keys: make([]Keyframe, n)}
		moving := false
		for i, pose := range poses {
			k := KeyFromLocal(&bind, &pose[b])
			track.Keys[i] = Keyframe{Frame: float32(i) * step, Transform: k}
			if !moving && !skeleton.TransformApproxEqual(&k, &geom.IdentityTransform, 1e-5) {
				moving = true
			}
		}
		if moving {
			out.Tracks = append(out.Tracks, track)
		}
	}
	logging.Info("clip retargeted", "clip", clip.Name, "frames", n, "workers", workers, "tracks", len(out.Tracks))
	return out, nil
}
