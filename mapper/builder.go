package mapper

import (
	"fmt"

	"github.com/binzume/retarget/skeleton"
)

// BuildChains partitions every bone of s into chains. Each chain starts at a
// mapped bone; unmapped bones join the chain of their nearest mapped
// ancestor. A hierarchy that forks below a mapped bone without another
// mapped bone on the fork is rejected with a *BranchError.
func BuildChains(s *skeleton.Skeleton, mapped []bool) ([]BoneChain, error) {
	names := make([]string, s.BoneCount())
	for i := range names {
		names[i] = s.BoneName(i)
	}
	return buildChains(names, s.Parents(), mapped)
}

func buildChains(names []string, parents []int, mapped []bool) ([]BoneChain, error) {
	if len(mapped) != len(parents) {
		return nil, fmt.Errorf("mapped flags: got %d, want %d", len(mapped), len(parents))
	}
	var chains []BoneChain
	for bone := range parents {
		if FindChainByBone(chains, parents, bone) >= 0 {
			continue
		}

		anchor := -1
		for b := range Ancestors(parents, bone) {
			if mapped[b] {
				anchor = b
				break
			}
		}
		if anchor < 0 {
			return nil, fmt.Errorf("%w: bone %d (%s)", ErrNoAnchor, bone, names[bone])
		}

		idx := -1
		for i := range chains {
			if chains[i].First == anchor {
				idx = i
				break
			}
		}
		if idx < 0 {
			chains = append(chains, BoneChain{Name: names[anchor], First: anchor, Last: bone})
			continue
		}

		c := &chains[idx]
		if !extendsChain(parents, c, bone) {
			return nil, &BranchError{Chain: idx, ChainName: c.Name, First: c.First, Last: c.Last, Bone: bone}
		}
		c.Last = bone
	}
	return chains, nil
}
