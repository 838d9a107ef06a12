package mapper

import (
	"fmt"

	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/skeleton"
)

// Unmapped marks a target chain that has no source chain.
const Unmapped = -1

// Mapper describes how the chains of a source skeleton drive the chains of
// a target skeleton. It is an authored asset: it is built once and then read
// by any number of runtimes.
type Mapper struct {
	source *skeleton.Skeleton
	target *skeleton.Skeleton

	sourceChains []BoneChain
	targetChains []BoneChain
	// target chain index -> source chain index or Unmapped
	mapping []int

	version uint64
}

func New() *Mapper {
	return &Mapper{}
}

// SetSkeletons assigns both skeletons and clears all chains.
func (m *Mapper) SetSkeletons(source, target *skeleton.Skeleton) error {
	m.source = source
	m.target = target
	m.clearChains()
	if source == nil || target == nil {
		return ErrNoSkeleton
	}
	return nil
}

func (m *Mapper) clearChains() {
	m.sourceChains = nil
	m.targetChains = nil
	m.mapping = nil
	m.version++
}

// Reset drops every chain and mapping, keeping the skeletons.
func (m *Mapper) Reset() {
	m.clearChains()
}

// fail leaves the mapper empty so that it can't be used half built.
func (m *Mapper) fail(err error) error {
	m.clearChains()
	logging.Debug("mapper build failed", "err", err)
	return err
}

// AddSourceChain adds a chain running from firstBone down to lastBone of the
// source skeleton.
func (m *Mapper) AddSourceChain(name, firstBone, lastBone string) error {
	if m.source == nil || m.target == nil {
		return m.fail(ErrNoSkeleton)
	}
	c, err := newChain(m.source, m.sourceChains, name, firstBone, lastBone)
	if err != nil {
		return m.fail(fmt.Errorf("source chain %q: %w", name, err))
	}
	m.sourceChains = append(m.sourceChains, c)
	m.version++
	return nil
}

// AddTargetChain adds an unmapped chain to the target skeleton.
func (m *Mapper) AddTargetChain(name, firstBone, lastBone string) error {
	if m.source == nil || m.target == nil {
		return m.fail(ErrNoSkeleton)
	}
	c, err := newChain(m.target, m.targetChains, name, firstBone, lastBone)
	if err != nil {
		return m.fail(fmt.Errorf("target chain %q: %w", name, err))
	}
	m.targetChains = append(m.targetChains, c)
	m.mapping = append(m.mapping, Unmapped)
	m.version++
	return nil
}

func newChain(s *skeleton.Skeleton, chains []BoneChain, name, firstBone, lastBone string) (BoneChain, error) {
	if ChainIndex(chains, name) >= 0 {
		return BoneChain{}, ErrDuplicateChain
	}
	first := s.BoneIndex(firstBone)
	if first < 0 {
		return BoneChain{}, fmt.Errorf("%w: %q", ErrBoneNotFound, firstBone)
	}
	last := s.BoneIndex(lastBone)
	if last < 0 {
		return BoneChain{}, fmt.Errorf("%w: %q", ErrBoneNotFound, lastBone)
	}
	c := BoneChain{Name: name, First: first, Last: last}
	parents := s.Parents()
	if !c.Valid(parents) {
		return BoneChain{}, fmt.Errorf("%w: %q -> %q", ErrInvalidChain, firstBone, lastBone)
	}
	for b := range c.Bones(parents) {
		if i := FindChainByBone(chains, parents, b); i >= 0 {
			return BoneChain{}, fmt.Errorf("%w: bone %q is in chain %q", ErrChainOverlap, s.BoneName(b), chains[i].Name)
		}
	}
	return c, nil
}

// MapChain makes the source chain drive the target chain.
func (m *Mapper) MapChain(sourceChain, targetChain string) error {
	si := ChainIndex(m.sourceChains, sourceChain)
	if si < 0 {
		return m.fail(fmt.Errorf("%w: source %q", ErrChainNotFound, sourceChain))
	}
	ti := ChainIndex(m.targetChains, targetChain)
	if ti < 0 {
		return m.fail(fmt.Errorf("%w: target %q", ErrChainNotFound, targetChain))
	}
	m.mapping[ti] = si
	m.version++
	return nil
}

// MapBone maps a single source bone onto a single target bone. Both get a
// one-bone chain named after the bone.
func (m *Mapper) MapBone(sourceBone, targetBone string) error {
	if err := m.AddSourceChain(sourceBone, sourceBone, sourceBone); err != nil {
		return err
	}
	if err := m.AddTargetChain(targetBone, targetBone, targetBone); err != nil {
		return err
	}
	return m.MapChain(sourceBone, targetBone)
}

func (m *Mapper) Source() *skeleton.Skeleton {
	return m.source
}

func (m *Mapper) Target() *skeleton.Skeleton {
	return m.target
}

func (m *Mapper) SourceChainCount() int {
	return len(m.sourceChains)
}

func (m *Mapper) TargetChainCount() int {
	return len(m.targetChains)
}

func (m *Mapper) SourceChain(i int) BoneChain {
	return m.sourceChains[i]
}

func (m *Mapper) TargetChain(i int) BoneChain {
	return m.targetChains[i]
}

// SourceChains returns a copy of the source chain list.
func (m *Mapper) SourceChains() []BoneChain {
	return append([]BoneChain(nil), m.sourceChains...)
}

// TargetChains returns a copy of the target chain list.
func (m *Mapper) TargetChains() []BoneChain {
	return append([]BoneChain(nil), m.targetChains...)
}

// MappingForChain returns the source chain driving target chain i, or Unmapped.
func (m *Mapper) MappingForChain(i int) int {
	return m.mapping[i]
}

// MappedChainCount returns the number of target chains with a source chain.
func (m *Mapper) MappedChainCount() int {
	n := 0
	for _, s := range m.mapping {
		if s != Unmapped {
			n++
		}
	}
	return n
}

// Version changes on every mutation. Runtimes compiled from an older
// version are stale.
func (m *Mapper) Version() uint64 {
	return m.version
}

// Touch marks the mapper as modified, e.g. after one of its skeletons was
// rebuilt in place.
func (m *Mapper) Touch() {
	m.version++
}
