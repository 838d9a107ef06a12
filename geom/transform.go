package geom

// Transform is a rigid transformation: a rotation followed by a translation.
//
// Composition follows the column vector convention used by Matrix4:
// a.Mul(b) applies b first, then a. A bone's model transform is therefore
// parentModel.Mul(local).
type Transform struct {
	Rotation    Quaternion
	Translation Vector3
}

// IdentityTransform leaves every point in place.
var IdentityTransform = Transform{Rotation: Quaternion{W: 1}}

func NewTransform(rot *Quaternion, pos *Vector3) *Transform {
	return &Transform{Rotation: *rot, Translation: *pos}
}

func NewTranslationTransform(x, y, z Element) *Transform {
	return &Transform{Rotation: Quaternion{W: 1}, Translation: Vector3{X: x, Y: y, Z: z}}
}

func NewAxisAngleTransform(axis *Vector3, angle Element, pos *Vector3) *Transform {
	return &Transform{Rotation: *NewQuaternionFromAxisAngle(axis, angle), Translation: *pos}
}

// NewTransformFromMatrix4 drops any scale contained in m.
func NewTransformFromMatrix4(m *Matrix4) *Transform {
	pos, rot, _ := m.Decompose()
	return &Transform{Rotation: *rot.Normalize(), Translation: *pos}
}

// Mul returns t * t2.
func (t *Transform) Mul(t2 *Transform) *Transform {
	return &Transform{
		Rotation:    *t.Rotation.Mul(&t2.Rotation),
		Translation: *t.Rotation.ApplyTo(&t2.Translation).Add(&t.Translation),
	}
}

func (t *Transform) Inverse() *Transform {
	inv := t.Rotation.Inverse()
	return &Transform{
		Rotation:    *inv,
		Translation: *inv.ApplyTo(&t.Translation).Neg(),
	}
}

// MulInverse returns t * inverse(t2).
func (t *Transform) MulInverse(t2 *Transform) *Transform {
	return t.Mul(t2.Inverse())
}

// InverseMul returns inverse(t) * t2.
func (t *Transform) InverseMul(t2 *Transform) *Transform {
	return t.Inverse().Mul(t2)
}

func (t *Transform) ApplyTo(v *Vector3) *Vector3 {
	return t.Rotation.ApplyTo(v).Add(&t.Translation)
}

// Interpolate blends rotation with slerp and translation linearly.
func (t *Transform) Interpolate(t2 *Transform, f Element) *Transform {
	return &Transform{
		Rotation:    *t.Rotation.Slerp(&t2.Rotation, f),
		Translation: *t.Translation.Lerp(&t2.Translation, f),
	}
}

func (t *Transform) ToMatrix4() *Matrix4 {
	return NewTranslateMatrix4(t.Translation.X, t.Translation.Y, t.Translation.Z).
		Mul(NewRotationMatrix4FromQuaternion(&t.Rotation))
}

// ApproxEqual compares translation and rotation component-wise against eps.
// q and -q describe the same rotation.
func (t *Transform) ApproxEqual(t2 *Transform, eps Element) bool {
	d := t.Translation.Sub(&t2.Translation)
	if Abs(d.X) > eps || Abs(d.Y) > eps || Abs(d.Z) > eps {
		return false
	}
	q := t2.Rotation
	if t.Rotation.Dot(&q) < 0 {
		q = *q.Scale(-1)
	}
	r := t.Rotation.Sub(&q)
	return Abs(r.X) <= eps && Abs(r.Y) <= eps && Abs(r.Z) <= eps && Abs(r.W) <= eps
}
