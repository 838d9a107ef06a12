package geom

import "math"

type Vector4 struct {
	X Element
	Y Element
	Z Element
	W Element
}

type Quaternion = Vector4

func NewVector4(x, y, z, w float32) *Vector4 {
	return &Vector4{X: x, Y: y, Z: z, W: w}
}

func NewQuaternion(x, y, z, w float32) *Quaternion {
	return &Quaternion{X: x, Y: y, Z: z, W: w}
}

func NewQuaternionFromArray(arr [4]Element) *Quaternion {
	return &Quaternion{X: arr[0], Y: arr[1], Z: arr[2], W: arr[3]}
}

// NewIdentityQuaternion returns the rotation that leaves every vector unchanged.
func NewIdentityQuaternion() *Quaternion {
	return &Quaternion{W: 1}
}

// NewQuaternionFromAxisAngle returns a rotation of angle radians about axis.
// The axis does not need to be normalized.
func NewQuaternionFromAxisAngle(axis *Vector3, angle Element) *Quaternion {
	a := *axis
	a.Normalize()
	s := Element(math.Sin(float64(angle / 2)))
	return &Quaternion{X: a.X * s, Y: a.Y * s, Z: a.Z * s, W: Element(math.Cos(float64(angle / 2)))}
}

func (v *Vector4) Add(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X + v2.X, Y: v.Y + v2.Y, Z: v.Z + v2.Z, W: v.W + v2.W}
}

func (v *Vector4) Sub(v2 *Vector4) *Vector4 {
	return &Vector4{X: v.X - v2.X, Y: v.Y - v2.Y, Z: v.Z - v2.Z, W: v.W - v2.W}
}

func (v *Vector4) Scale(s Element) *Vector4 {
	return &Vector4{X: v.X * s, Y: v.Y * s, Z: v.Z * s, W: v.W * s}
}

func (v *Vector4) Dot(v2 *Vector4) Element {
	return v.X*v2.X + v.Y*v2.Y + v.Z*v2.Z + v.W*v2.W
}

func (v *Vector4) Len() Element {
	return Element(math.Sqrt(float64(v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W)))
}

func (v *Vector4) LenSqr() Element {
	return v.X*v.X + v.Y*v.Y + v.Z*v.Z + v.W*v.W
}

func (v *Vector4) Normalize() *Vector4 {
	l := v.Len()
	if l > 0 {
		v.X /= l
		v.Y /= l
		v.Z /= l
		v.W /= l
	} else {
		v.W = 1
	}
	return v
}

// Inverse returns the conjugate. Valid for unit quaternions only.
func (v *Vector4) Inverse() *Vector4 {
	return &Vector4{X: -v.X, Y: -v.Y, Z: -v.Z, W: v.W}
}

// Returns Hamilton product
func (a *Vector4) Mul(b *Vector4) *Vector4 {
	return &Vector4{
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z, // 1
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y, // i
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X, // j
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W, // k
	}
}

// ApplyTo rotates v by the quaternion.
func (q *Quaternion) ApplyTo(v *Vector3) *Vector3 {
	// t = 2 * cross(q.xyz, v); v' = v + w * t + cross(q.xyz, t)
	u := Vector3{X: q.X, Y: q.Y, Z: q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Slerp interpolates between two rotations along the shortest arc.
func (a *Quaternion) Slerp(b *Quaternion, t Element) *Quaternion {
	bb := *b
	cos := float64(a.Dot(b))
	if cos < 0 {
		bb = *bb.Scale(-1)
		cos = -cos
	}
	k0, k1 := 1-float64(t), float64(t)
	if cos < 0.9995 {
		theta := math.Acos(cos)
		sin := math.Sin(theta)
		k0 = math.Sin((1-float64(t))*theta) / sin
		k1 = math.Sin(float64(t)*theta) / sin
	}
	r := a.Scale(Element(k0)).Add(bb.Scale(Element(k1)))
	return r.Normalize()
}

// AngleTo returns the rotation angle in radians between two rotations.
func (a *Quaternion) AngleTo(b *Quaternion) Element {
	r := a.Inverse().Mul(b)
	xyz := math.Sqrt(float64(r.X*r.X + r.Y*r.Y + r.Z*r.Z))
	return Element(2 * math.Atan2(xyz, math.Abs(float64(r.W))))
}
