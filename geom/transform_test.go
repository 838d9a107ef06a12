package geom

import (
	"math"
	"testing"
)

func TestTransformMul(t *testing.T) {
	const eps = 0.00001

	parent := NewAxisAngleTransform(NewVector3(1, 0, 0), math.Pi/2, NewVector3(0, 1, 0))
	local := NewTranslationTransform(0, 1, 0)

	// the child's offset is rotated by the parent before being added
	model := parent.Mul(local)
	if model.Translation.Sub(NewVector3(0, 1, 1)).Len() > eps {
		t.Error("translation: ", model.Translation)
	}
	if model.Rotation.Sub(&parent.Rotation).Len() > eps {
		t.Error("rotation: ", model.Rotation)
	}

	p := NewVector3(0, 0, 1)
	if model.ApplyTo(p).Sub(parent.ApplyTo(local.ApplyTo(p))).Len() > eps {
		t.Error("Mul should apply the right operand first")
	}
}

func TestTransformInverse(t *testing.T) {
	const eps = 0.00001

	tr := NewAxisAngleTransform(NewVector3(1, 2, 3), 1.2, NewVector3(4, -5, 6))

	if id := tr.Mul(tr.Inverse()); !id.ApproxEqual(&IdentityTransform, eps) {
		t.Error("t * inv(t) != identity: ", id)
	}
	if id := tr.Inverse().Mul(tr); !id.ApproxEqual(&IdentityTransform, eps) {
		t.Error("inv(t) * t != identity: ", id)
	}

	other := NewAxisAngleTransform(NewVector3(0, 1, 0), -0.4, NewVector3(1, 1, 1))
	if !tr.MulInverse(other).ApproxEqual(tr.Mul(other.Inverse()), eps) {
		t.Error("MulInverse")
	}
	if !tr.InverseMul(other).ApproxEqual(tr.Inverse().Mul(other), eps) {
		t.Error("InverseMul")
	}
}

func TestTransformMatrix(t *testing.T) {
	const eps = 0.0001

	tr := NewAxisAngleTransform(NewVector3(0, 0, 1), 0.7, NewVector3(1, 2, 3))
	back := NewTransformFromMatrix4(tr.ToMatrix4())
	if !back.ApproxEqual(tr, eps) {
		t.Error("matrix round trip: ", tr, back)
	}

	p := NewVector3(3, -1, 2)
	if tr.ToMatrix4().ApplyTo(p).Sub(tr.ApplyTo(p)).Len() > eps {
		t.Error("matrix and transform disagree")
	}
}

func TestTransformInterpolate(t *testing.T) {
	const eps = 0.00001

	a := NewTranslationTransform(0, 0, 0)
	b := NewAxisAngleTransform(NewVector3(0, 1, 0), math.Pi/2, NewVector3(2, 0, 0))

	mid := a.Interpolate(b, 0.5)
	if mid.Translation.Sub(NewVector3(1, 0, 0)).Len() > eps {
		t.Error("translation: ", mid.Translation)
	}
	if ang := a.Rotation.AngleTo(&mid.Rotation); Abs(ang-math.Pi/4) > eps {
		t.Error("rotation angle: ", ang)
	}
}

func TestTransformApproxEqualSign(t *testing.T) {
	tr := NewAxisAngleTransform(NewVector3(1, 0, 0), 0.3, NewVector3(0, 0, 0))
	neg := *tr
	neg.Rotation = *tr.Rotation.Scale(-1)
	if !tr.ApproxEqual(&neg, 0.00001) {
		t.Error("q and -q should compare equal")
	}
}
