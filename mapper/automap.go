package mapper

import (
	"fmt"

	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/skeleton"
	"gonum.org/v1/gonum/spatial/r3"
)

// AnchorPair is a source bone known to correspond to a target bone.
type AnchorPair struct {
	Source int
	Target int
}

// MatchBoneNames pairs bones with equal names. aliases maps a bone name to a
// canonical name and is applied to both skeletons before comparing; it may
// be nil. Each target bone is used at most once.
func MatchBoneNames(source, target *skeleton.Skeleton, aliases map[string]string) []AnchorPair {
	canonical := func(name string) string {
		if c, ok := aliases[name]; ok {
			return c
		}
		return name
	}
	targets := map[string]int{}
	for i := 0; i < target.BoneCount(); i++ {
		name := canonical(target.BoneName(i))
		if _, ok := targets[name]; !ok {
			targets[name] = i
		}
	}
	var pairs []AnchorPair
	for i := 0; i < source.BoneCount(); i++ {
		name := canonical(source.BoneName(i))
		if t, ok := targets[name]; ok {
			pairs = append(pairs, AnchorPair{Source: i, Target: t})
			delete(targets, name)
		}
	}
	return pairs
}

// MatchBoneDistance pairs each source bone with the nearest unused target
// bone whose bind position lies closer than maxDistance.
func MatchBoneDistance(source, target *skeleton.Skeleton, maxDistance float64) ([]AnchorPair, error) {
	if !source.Built() || !target.Built() {
		return nil, ErrSkeletonNotBuilt
	}
	pos := func(s *skeleton.Skeleton, i int) r3.Vec {
		t := s.BindModel(i).Translation
		return r3.Vec{X: float64(t.X), Y: float64(t.Y), Z: float64(t.Z)}
	}
	used := make([]bool, target.BoneCount())
	var pairs []AnchorPair
	for i := 0; i < source.BoneCount(); i++ {
		sp := pos(source, i)
		best, bestDist := -1, maxDistance*maxDistance
		for j := range used {
			if used[j] {
				continue
			}
			if d := r3.Norm2(r3.Sub(sp, pos(target, j))); d < bestDist {
				best, bestDist = j, d
			}
		}
		if best >= 0 {
			used[best] = true
			pairs = append(pairs, AnchorPair{Source: i, Target: best})
		}
	}
	return pairs, nil
}

// BuildUsingBoneNames builds the mapper automatically from bones sharing a
// name. The same skeleton on both sides yields an identity mapping.
func (m *Mapper) BuildUsingBoneNames(source, target *skeleton.Skeleton, aliases map[string]string) error {
	if source == nil || target == nil {
		return m.fail(ErrNoSkeleton)
	}
	if source == target {
		return m.BuildIdentity(source)
	}
	return m.BuildFromAnchors(source, target, MatchBoneNames(source, target, aliases))
}

// BuildUsingBoneDistance builds the mapper from bones sharing a bind position.
func (m *Mapper) BuildUsingBoneDistance(source, target *skeleton.Skeleton, maxDistance float64) error {
	if source == nil || target == nil {
		return m.fail(ErrNoSkeleton)
	}
	if source == target {
		return m.BuildIdentity(source)
	}
	pairs, err := MatchBoneDistance(source, target, maxDistance)
	if err != nil {
		return m.fail(err)
	}
	return m.BuildFromAnchors(source, target, pairs)
}

// BuildIdentity maps every bone of s onto itself through one-bone chains.
func (m *Mapper) BuildIdentity(s *skeleton.Skeleton) error {
	if s == nil {
		return m.fail(ErrNoSkeleton)
	}
	pairs := make([]AnchorPair, s.BoneCount())
	for i := range pairs {
		pairs[i] = AnchorPair{Source: i, Target: i}
	}
	return m.BuildFromAnchors(s, s, pairs)
}

// BuildFromAnchors partitions both skeletons into chains starting at the
// anchor bones and maps the chains the pairs connect.
func (m *Mapper) BuildFromAnchors(source, target *skeleton.Skeleton, pairs []AnchorPair) error {
	if err := m.SetSkeletons(source, target); err != nil {
		return m.fail(err)
	}
	for _, s := range []*skeleton.Skeleton{source, target} {
		if err := s.Validate(); err != nil {
			return m.fail(err)
		}
	}

	sourceMapped := make([]bool, source.BoneCount())
	targetMapped := make([]bool, target.BoneCount())
	for _, p := range pairs {
		if p.Source < 0 || p.Source >= len(sourceMapped) || p.Target < 0 || p.Target >= len(targetMapped) {
			return m.fail(fmt.Errorf("%w: anchor %d -> %d", ErrBoneNotFound, p.Source, p.Target))
		}
		sourceMapped[p.Source] = true
		targetMapped[p.Target] = true
	}

	sourceChains, err := BuildChains(source, sourceMapped)
	if err != nil {
		return m.fail(fmt.Errorf("source skeleton: %w", err))
	}
	targetChains, err := BuildChains(target, targetMapped)
	if err != nil {
		return m.fail(fmt.Errorf("target skeleton: %w", err))
	}

	mapping := make([]int, len(targetChains))
	for i := range mapping {
		mapping[i] = Unmapped
	}
	sourceByFirst := chainsByFirstBone(sourceChains)
	targetByFirst := chainsByFirstBone(targetChains)
	for _, p := range pairs {
		mapping[targetByFirst[p.Target]] = sourceByFirst[p.Source]
	}

	m.sourceChains = sourceChains
	m.targetChains = targetChains
	m.mapping = mapping
	m.version++
	logging.Debug("mapper built", "anchors", len(pairs),
		"source_chains", len(sourceChains), "target_chains", len(targetChains))
	return nil
}

func chainsByFirstBone(chains []BoneChain) map[int]int {
	r := make(map[int]int, len(chains))
	for i, c := range chains {
		r[c.First] = i
	}
	return r
}
