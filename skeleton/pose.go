package skeleton

import (
	"fmt"

	"github.com/binzume/retarget/geom"
	"gonum.org/v1/gonum/floats/scalar"
)

func (s *Skeleton) checkPose(poses ...[]geom.Transform) error {
	if !s.built {
		return ErrNotBuilt
	}
	for _, p := range poses {
		if len(p) != len(s.names) {
			return fmt.Errorf("%w: got %d, want %d", ErrPoseSize, len(p), len(s.names))
		}
	}
	return nil
}

// CalculateModelPose writes the model space bind pose into out.
func (s *Skeleton) CalculateModelPose(out []geom.Transform) error {
	if err := s.checkPose(out); err != nil {
		return err
	}
	copy(out, s.bindModel)
	return nil
}

// LocalToModel converts a local pose into model space.
// local and out may be the same slice.
func (s *Skeleton) LocalToModel(local, out []geom.Transform) error {
	if err := s.checkPose(local, out); err != nil {
		return err
	}
	s.localToModel(local, out)
	return nil
}

// ModelToLocal converts a model space pose into local space.
// model and out may be the same slice.
func (s *Skeleton) ModelToLocal(model, out []geom.Transform) error {
	if err := s.checkPose(model, out); err != nil {
		return err
	}
	s.modelToLocal(model, out)
	return nil
}

func (s *Skeleton) localToModel(local, out []geom.Transform) {
	for _, i := range s.updateOrder {
		if p := s.parents[i]; p >= 0 {
			out[i] = *out[p].Mul(&local[i])
		} else {
			out[i] = local[i]
		}
	}
}

// children first, so that parents are still in model space when read.
func (s *Skeleton) modelToLocal(model, out []geom.Transform) {
	for k := len(s.updateOrder) - 1; k >= 0; k-- {
		i := s.updateOrder[k]
		if p := s.parents[i]; p >= 0 {
			out[i] = *model[p].InverseMul(&model[i])
		} else {
			out[i] = model[i]
		}
	}
}

// ApproxEqual reports whether two poses match within tol.
func ApproxEqual(a, b []geom.Transform, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !TransformApproxEqual(&a[i], &b[i], tol) {
			return false
		}
	}
	return true
}

// TransformApproxEqual compares two transforms component-wise.
// q and -q are treated as the same rotation.
func TransformApproxEqual(a, b *geom.Transform, tol float64) bool {
	eq := func(x, y float32) bool { return scalar.EqualWithinAbs(float64(x), float64(y), tol) }
	if !eq(a.Translation.X, b.Translation.X) || !eq(a.Translation.Y, b.Translation.Y) || !eq(a.Translation.Z, b.Translation.Z) {
		return false
	}
	q := b.Rotation
	if a.Rotation.Dot(&q) < 0 {
		q = *q.Scale(-1)
	}
	return eq(a.Rotation.X, q.X) && eq(a.Rotation.Y, q.Y) && eq(a.Rotation.Z, q.Z) && eq(a.Rotation.W, q.W)
}
