package mapper

import "iter"

// BoneChain is a simple path of bones First -> ... -> Last in one skeleton.
// Walking parent links from Last reaches First.
type BoneChain struct {
	Name  string
	First int
	Last  int
}

// Ancestors yields bone and then each of its ancestors up to a root.
// The walk stops after len(parents) steps so a cyclic parent array
// cannot loop forever.
func Ancestors(parents []int, bone int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for n := 0; bone >= 0 && bone < len(parents) && n <= len(parents); n++ {
			if !yield(bone) {
				return
			}
			bone = parents[bone]
		}
	}
}

// Bones yields the bones of the chain from Last up to First.
func (c *BoneChain) Bones(parents []int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for b := range Ancestors(parents, c.Last) {
			if !yield(b) || b == c.First {
				return
			}
		}
	}
}

// Valid reports whether First is reachable from Last.
func (c *BoneChain) Valid(parents []int) bool {
	for b := range Ancestors(parents, c.Last) {
		if b == c.First {
			return true
		}
	}
	return false
}

func (c *BoneChain) Contains(parents []int, bone int) bool {
	if bone == c.First {
		return true
	}
	for b := range c.Bones(parents) {
		if b == bone {
			return true
		}
	}
	return false
}

// Len returns the number of bones in the chain.
func (c *BoneChain) Len(parents []int) int {
	n := 0
	for range c.Bones(parents) {
		n++
	}
	return n
}

// extendsChain reports whether bone continues c below its last bone.
// Walking up from bone, reaching Last first means bone lies below the
// chain's end; reaching First first means the two paths fork somewhere
// between First and Last.
func extendsChain(parents []int, c *BoneChain, bone int) bool {
	for b := range Ancestors(parents, bone) {
		if b == c.Last {
			return true
		}
		if b == c.First {
			return false
		}
	}
	return false
}

// FindChainByBone returns the index of the chain containing bone, or -1.
func FindChainByBone(chains []BoneChain, parents []int, bone int) int {
	for i := range chains {
		if chains[i].Contains(parents, bone) {
			return i
		}
	}
	return -1
}

// ChainIndex returns the index of the chain named name, or -1.
func ChainIndex(chains []BoneChain, name string) int {
	for i := range chains {
		if chains[i].Name == name {
			return i
		}
	}
	return -1
}
