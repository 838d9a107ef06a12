package mapper

import (
	"errors"
	"fmt"
)

var (
	ErrNoSkeleton       = errors.New("source and target skeletons must be set")
	ErrSkeletonNotBuilt = errors.New("skeleton is not built")
	ErrChainNotFound    = errors.New("chain not found")
	ErrBoneNotFound     = errors.New("bone not found")
	ErrInvalidChain     = errors.New("last bone is not a descendant of the first bone")
	ErrChainOverlap     = errors.New("chains overlap")
	ErrDuplicateChain   = errors.New("duplicate chain name")
	ErrBranch           = errors.New("branching hierarchy")
	ErrNoAnchor         = errors.New("no mapped ancestor")
	ErrNotCompiled      = errors.New("runtime is not compiled")
	ErrPoseSize         = errors.New("pose size does not match bone count")
)

// BranchError reports a bone that forks off below the first bone of an
// existing chain. Declaring the bone (or one of its ancestors below the
// fork) as mapped resolves it.
type BranchError struct {
	Chain     int
	ChainName string
	First     int
	Last      int
	Bone      int
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("%v: bone %d branches off chain %d (%s: %d -> %d)",
		ErrBranch, e.Bone, e.Chain, e.ChainName, e.First, e.Last)
}

func (e *BranchError) Is(target error) bool {
	return target == ErrBranch
}
