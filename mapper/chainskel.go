package mapper

import (
	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/skeleton"
)

// BuildChainSkeleton reduces base to one bone per chain. Bone i is named
// after chains[i], its parent is the chain holding the parent of the chain's
// first bone, and its bind pose is the base bind pose at that first bone.
func BuildChainSkeleton(base *skeleton.Skeleton, chains []BoneChain) (*skeleton.Skeleton, error) {
	if !base.Built() {
		return nil, ErrSkeletonNotBuilt
	}
	parents := base.Parents()
	out := skeleton.New()
	model := make([]geom.Transform, len(chains))
	for i, c := range chains {
		parent := -1
		if p := parents[c.First]; p >= 0 {
			parent = FindChainByBone(chains, parents, p)
		}
		model[i] = base.BindModel(c.First)
		out.AddBone(c.Name, geom.IdentityTransform, parent, float32(c.Len(parents)))
	}
	for i := range chains {
		if p := out.BoneParent(i); p >= 0 {
			out.SetBoneLocal(i, *model[p].InverseMul(&model[i]))
		} else {
			out.SetBoneLocal(i, model[i])
		}
	}
	if err := out.Build(); err != nil {
		return nil, err
	}
	return out, nil
}
