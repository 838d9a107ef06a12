package gltfutil

import (
	"errors"

	"github.com/binzume/retarget/anim"
	"github.com/binzume/retarget/internal/logging"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var ErrEmptyClip = errors.New("clip has no keys")

func timeAccessor(doc *gltf.Document, keys []anim.Keyframe, rate float32) uint32 {
	times := make([]float32, len(keys))
	for i, k := range keys {
		times[i] = k.Frame / rate
	}
	acc := modeler.WriteAccessor(doc, gltf.TargetNone, times)
	doc.Accessors[acc].Min = []float32{times[0]}
	doc.Accessors[acc].Max = []float32{times[len(times)-1]}
	return uint32(acc)
}

func hasTranslation(keys []anim.Keyframe) bool {
	for _, k := range keys {
		if k.Transform.Translation.LenSqr() > 0 {
			return true
		}
	}
	return false
}

// AddAnimation appends clip as a linear glTF animation on the skin's nodes
// and returns its index. Keys are applied to the bind pose, so channels hold
// node local transforms. Translation channels are written only for tracks
// that move.
func AddAnimation(doc *gltf.Document, skin *Skin, clip *anim.Clip) (int, error) {
	rate := clip.FrameRate
	if rate <= 0 {
		rate = 30
	}
	a := &gltf.Animation{Name: clip.Name}
	addChannel := func(node int, input, output uint32, path gltf.TRSProperty) {
		a.Samplers = append(a.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(input),
			Output:        gltf.Index(output),
			Interpolation: gltf.InterpolationLinear,
		})
		a.Channels = append(a.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(a.Samplers) - 1)),
			Target: gltf.ChannelTarget{
				Node: gltf.Index(uint32(node)),
				Path: path,
			},
		})
	}

	for _, t := range clip.Tracks {
		if len(t.Keys) == 0 {
			continue
		}
		bone := skin.Skeleton.BoneIndex(t.Bone)
		if bone < 0 {
			logging.Debug("track without node", "bone", t.Bone)
			continue
		}
		bind := skin.Skeleton.BoneLocal(bone)
		rotations := make([][4]float32, len(t.Keys))
		translations := make([][3]float32, len(t.Keys))
		for i, k := range t.Keys {
			local := anim.ApplyKey(&bind, &k.Transform)
			q, p := local.Rotation, local.Translation
			rotations[i] = [4]float32{q.X, q.Y, q.Z, q.W}
			translations[i] = [3]float32{p.X, p.Y, p.Z}
		}
		input := timeAccessor(doc, t.Keys, rate)
		node := int(skin.Nodes[bone])
		addChannel(node, input, uint32(modeler.WriteAccessor(doc, gltf.TargetNone, rotations)), gltf.TRSRotation)
		if hasTranslation(t.Keys) {
			addChannel(node, input, uint32(modeler.WriteAccessor(doc, gltf.TargetNone, translations)), gltf.TRSTranslation)
		}
	}
	if len(a.Channels) == 0 {
		return -1, ErrEmptyClip
	}
	doc.Animations = append(doc.Animations, a)
	return len(doc.Animations) - 1, nil
}
