package skeleton

import "errors"

var (
	ErrNotBuilt       = errors.New("skeleton is not built")
	ErrPoseSize       = errors.New("pose size does not match bone count")
	ErrCycle          = errors.New("cyclic bone hierarchy")
	ErrDanglingParent = errors.New("parent index out of range")
	ErrDuplicateName  = errors.New("duplicate bone name")
	ErrBoneNotFound   = errors.New("bone not found")
)
