package mapper

import (
	"fmt"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/skeleton"
)

type RuntimeOptions struct {
	// AnchorToParent keeps a non-root target chain attached at its own bind
	// offset from its parent; only the rotation is retargeted.
	AnchorToParent bool
}

// Runtime is the compiled, per-instance state of a Mapper. It owns scratch
// buffers and must not be shared between goroutines.
type Runtime struct {
	mapper  *Mapper
	opts    RuntimeOptions
	version uint64
	// skeleton versions at compile time
	sourceVersion uint64
	targetVersion uint64

	sourceChainSkeleton *skeleton.Skeleton
	targetChainSkeleton *skeleton.Skeleton

	mapping        []int
	sourceFirst    []int
	targetFirst    []int
	targetBindPose []geom.Transform
	// per target bone: owning chain or -1, and bind offset from the chain's first bone
	targetChain  []int
	targetOffset []geom.Transform

	tmpSourceModel []geom.Transform
	tmpChainPose   []geom.Transform
	tmpTargetModel []geom.Transform
	outTargetPose  []geom.Transform
	compiled       bool
}

func NewRuntime(m *Mapper, opts RuntimeOptions) *Runtime {
	return &Runtime{mapper: m, opts: opts}
}

func (r *Runtime) Mapper() *Mapper {
	return r.mapper
}

func (r *Runtime) Compiled() bool {
	return r.compiled
}

// Stale reports whether the mapper or one of its skeletons changed since
// the last Compile.
func (r *Runtime) Stale() bool {
	m := r.mapper
	if !r.compiled || r.version != m.Version() || m.source == nil || m.target == nil {
		return true
	}
	return r.sourceVersion != m.source.Version() || r.targetVersion != m.target.Version()
}

func (r *Runtime) SourceChainSkeleton() *skeleton.Skeleton {
	return r.sourceChainSkeleton
}

func (r *Runtime) TargetChainSkeleton() *skeleton.Skeleton {
	return r.targetChainSkeleton
}

// Compile builds the chain skeletons and precomputes the target bind poses.
func (r *Runtime) Compile() error {
	r.Destroy()
	m := r.mapper
	if m == nil || m.source == nil || m.target == nil {
		return ErrNoSkeleton
	}
	src, tgt := m.source, m.target
	if !src.Built() || !tgt.Built() {
		return ErrSkeletonNotBuilt
	}
	if src.BoneCount() == 0 || tgt.BoneCount() == 0 {
		return fmt.Errorf("%w: skeleton has no bones", ErrNoSkeleton)
	}

	var err error
	if r.sourceChainSkeleton, err = BuildChainSkeleton(src, m.sourceChains); err != nil {
		return fmt.Errorf("source chain skeleton: %w", err)
	}
	if r.targetChainSkeleton, err = BuildChainSkeleton(tgt, m.targetChains); err != nil {
		return fmt.Errorf("target chain skeleton: %w", err)
	}

	r.mapping = append([]int(nil), m.mapping...)
	r.sourceFirst = make([]int, len(m.sourceChains))
	for i, c := range m.sourceChains {
		r.sourceFirst[i] = c.First
	}
	r.targetFirst = make([]int, len(m.targetChains))
	r.targetBindPose = make([]geom.Transform, len(m.targetChains))
	for i, c := range m.targetChains {
		r.targetFirst[i] = c.First
		r.targetBindPose[i] = r.targetChainSkeleton.BindModel(i)
	}

	parents := tgt.Parents()
	r.targetChain = make([]int, tgt.BoneCount())
	r.targetOffset = make([]geom.Transform, tgt.BoneCount())
	for b := range r.targetChain {
		r.targetChain[b] = -1
		r.targetOffset[b] = geom.IdentityTransform
	}
	for i, c := range m.targetChains {
		first := tgt.InvBindPose(c.First)
		for b := range c.Bones(parents) {
			bm := tgt.BindModel(b)
			r.targetChain[b] = i
			r.targetOffset[b] = *first.Mul(&bm)
		}
	}

	r.tmpSourceModel = make([]geom.Transform, src.BoneCount())
	r.tmpChainPose = make([]geom.Transform, len(m.targetChains))
	r.tmpTargetModel = make([]geom.Transform, tgt.BoneCount())
	r.outTargetPose = make([]geom.Transform, tgt.BoneCount())
	r.version = m.Version()
	r.sourceVersion = src.Version()
	r.targetVersion = tgt.Version()
	r.compiled = true
	logging.Debug("runtime compiled", "source_chains", len(m.sourceChains),
		"target_chains", len(m.targetChains), "mapped", m.MappedChainCount())
	return nil
}

// Destroy releases the compiled state.
func (r *Runtime) Destroy() {
	r.sourceChainSkeleton = nil
	r.targetChainSkeleton = nil
	r.mapping = nil
	r.sourceFirst = nil
	r.targetFirst = nil
	r.targetBindPose = nil
	r.targetChain = nil
	r.targetOffset = nil
	r.tmpSourceModel = nil
	r.tmpChainPose = nil
	r.tmpTargetModel = nil
	r.outTargetPose = nil
	r.compiled = false
}

// CalcPoseLocalSpace converts a local pose of the source skeleton into a
// local pose of the target skeleton. A stale runtime must be compiled again
// first.
func (r *Runtime) CalcPoseLocalSpace(source, out []geom.Transform) error {
	if !r.compiled {
		return ErrNotCompiled
	}
	if r.Stale() {
		return fmt.Errorf("%w: mapper or skeleton changed since compile", ErrNotCompiled)
	}
	if len(source) != len(r.tmpSourceModel) {
		return fmt.Errorf("%w: source got %d, want %d", ErrPoseSize, len(source), len(r.tmpSourceModel))
	}
	if len(out) != len(r.tmpTargetModel) {
		return fmt.Errorf("%w: target got %d, want %d", ErrPoseSize, len(out), len(r.tmpTargetModel))
	}

	m := r.mapper
	if err := m.source.LocalToModel(source, r.tmpSourceModel); err != nil {
		return err
	}

	for t, s := range r.mapping {
		if s == Unmapped {
			continue
		}
		// motion of the source chain relative to its bind pose, in model space
		invBind := r.sourceChainSkeleton.InvBindPose(s)
		dt := r.tmpSourceModel[r.sourceFirst[s]].Mul(&invBind)
		r.tmpChainPose[t] = *dt.Mul(&r.targetBindPose[t])
	}

	r.updatePose()
	return m.target.ModelToLocal(r.tmpTargetModel, out)
}

// updatePose writes the chain poses into the target model pose. Chains move
// rigidly: bones below the first keep their bind offset from it.
func (r *Runtime) updatePose() {
	tgt := r.mapper.target
	parents := tgt.Parents()
	model := r.tmpTargetModel
	for _, b := range tgt.UpdateOrder() {
		c := r.targetChain[b]
		if c < 0 || r.mapping[c] == Unmapped {
			local := tgt.BoneLocal(b)
			if p := parents[b]; p >= 0 {
				model[b] = *model[p].Mul(&local)
			} else {
				model[b] = local
			}
			continue
		}
		first := r.targetFirst[c]
		if b != first {
			model[b] = *model[first].Mul(&r.targetOffset[b])
			continue
		}
		model[b] = r.tmpChainPose[c]
		if p := parents[b]; p >= 0 && r.opts.AnchorToParent {
			local := tgt.BoneLocal(b)
			model[b].Translation = model[p].Mul(&local).Translation
		}
	}
}

// TranslatePose is CalcPoseLocalSpace writing into a buffer owned by the
// runtime. The result is overwritten by the next call.
func (r *Runtime) TranslatePose(source []geom.Transform) ([]geom.Transform, error) {
	if err := r.CalcPoseLocalSpace(source, r.outTargetPose); err != nil {
		return nil, err
	}
	return r.outTargetPose, nil
}
