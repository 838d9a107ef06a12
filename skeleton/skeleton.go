package skeleton

import (
	"fmt"

	"github.com/binzume/retarget/geom"
)

// Bone is one row of a Skeleton.
type Bone struct {
	Name   string
	Local  geom.Transform
	Parent int
	Length float32
}

// Skeleton is an ordered bone hierarchy.
// Bones are stored in parallel arrays and addressed by index. Derived data
// (update order and bind pose) is valid only after Build.
type Skeleton struct {
	names   []string
	locals  []geom.Transform
	parents []int
	lengths []float32

	updateOrder []int
	bindModel   []geom.Transform
	invBind     []geom.Transform
	built       bool
	version     uint64
}

func New() *Skeleton {
	return &Skeleton{}
}

// AddBone appends a bone and returns its index.
// parent is -1 for a root.
func (s *Skeleton) AddBone(name string, local geom.Transform, parent int, length float32) int {
	s.names = append(s.names, name)
	s.locals = append(s.locals, local)
	s.parents = append(s.parents, parent)
	s.lengths = append(s.lengths, length)
	s.built = false
	s.version++
	return len(s.names) - 1
}

func (s *Skeleton) Clear() {
	s.names = nil
	s.locals = nil
	s.parents = nil
	s.lengths = nil
	s.updateOrder = nil
	s.bindModel = nil
	s.invBind = nil
	s.built = false
	s.version++
}

// Build computes the update order and the bind pose.
func (s *Skeleton) Build() error {
	s.built = false
	s.version++
	order, err := s.sortBones()
	if err != nil {
		s.updateOrder = nil
		return err
	}
	s.updateOrder = order
	s.calculateBindPose()
	s.built = true
	return nil
}

// sortBones orders bones breadth first from all roots so that a parent
// always precedes its children.
func (s *Skeleton) sortBones() ([]int, error) {
	n := len(s.names)
	children := make([][]int, n)
	var queue []int
	for i, p := range s.parents {
		switch {
		case p < 0:
			queue = append(queue, i)
		case p >= n || p == i:
			return nil, fmt.Errorf("%w: bone %d (%s) parent %d", ErrDanglingParent, i, s.names[i], p)
		default:
			children[p] = append(children[p], i)
		}
	}

	order := make([]int, 0, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, i)
		queue = append(queue, children[i]...)
	}
	if len(order) != n {
		visited := make([]bool, n)
		for _, i := range order {
			visited[i] = true
		}
		for i, v := range visited {
			if !v {
				return nil, fmt.Errorf("%w: bone %d (%s) is not reachable from a root", ErrCycle, i, s.names[i])
			}
		}
	}
	return order, nil
}

func (s *Skeleton) calculateBindPose() {
	n := len(s.names)
	s.bindModel = make([]geom.Transform, n)
	s.invBind = make([]geom.Transform, n)
	s.localToModel(s.locals, s.bindModel)
	for i := range s.bindModel {
		s.invBind[i] = *s.bindModel[i].Inverse()
	}
}

func (s *Skeleton) Built() bool {
	return s.built
}

// Version changes whenever bones are added, removed, edited or rebuilt.
func (s *Skeleton) Version() uint64 {
	return s.version
}

func (s *Skeleton) BoneCount() int {
	return len(s.names)
}

// BoneIndex returns the index of the first bone named name, or -1.
func (s *Skeleton) BoneIndex(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (s *Skeleton) Bone(i int) Bone {
	return Bone{Name: s.names[i], Local: s.locals[i], Parent: s.parents[i], Length: s.lengths[i]}
}

func (s *Skeleton) BoneName(i int) string {
	return s.names[i]
}

func (s *Skeleton) BoneParent(i int) int {
	return s.parents[i]
}

func (s *Skeleton) BoneLocal(i int) geom.Transform {
	return s.locals[i]
}

func (s *Skeleton) BoneLength(i int) float32 {
	return s.lengths[i]
}

// Parents returns the parent index of every bone. Callers must not modify it.
func (s *Skeleton) Parents() []int {
	return s.parents
}

// UpdateOrder returns a parent-before-child ordering of bone indices.
// Callers must not modify it.
func (s *Skeleton) UpdateOrder() []int {
	return s.updateOrder
}

// BindPose returns a copy of the local bind transforms.
func (s *Skeleton) BindPose() []geom.Transform {
	return append([]geom.Transform(nil), s.locals...)
}

// BindModel returns the model space bind transform of bone i.
func (s *Skeleton) BindModel(i int) geom.Transform {
	return s.bindModel[i]
}

// InvBindPose returns the inverse of the model space bind transform of bone i.
func (s *Skeleton) InvBindPose(i int) geom.Transform {
	return s.invBind[i]
}

// SetBoneLocal replaces the local bind transform. The skeleton must be rebuilt.
func (s *Skeleton) SetBoneLocal(i int, t geom.Transform) {
	s.locals[i] = t
	s.built = false
	s.version++
}

// SetBoneParent re-parents a bone. The skeleton must be rebuilt.
func (s *Skeleton) SetBoneParent(i, parent int) {
	s.parents[i] = parent
	s.built = false
	s.version++
}

func (s *Skeleton) SetBoneName(i int, name string) {
	s.names[i] = name
}

func (s *Skeleton) String() string {
	return fmt.Sprintf("Skeleton(%d bones)", len(s.names))
}
