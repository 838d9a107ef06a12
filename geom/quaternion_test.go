package geom

import (
	"math"
	"testing"
)

func TestQuaternion(t *testing.T) {
	const eps = 0.00001

	{
		q := NewEuler(0, 0, 0, RotationOrderXYZ).ToQuaternion()
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}

	{
		q := NewEuler(2*math.Pi, 0, 0, RotationOrderXYZ).ToQuaternion()
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}

	{
		q := NewEuler(math.Pi, 0, 0, RotationOrderXYZ).ToQuaternion()
		q = q.Mul(q)
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}

	{
		q := NewEuler(1, 2, 3, RotationOrderXYZ).ToQuaternion()
		q = q.Mul(q.Inverse())
		v1 := NewVector3(1, 2, 3)
		v2 := q.ApplyTo(v1)
		if v2.Sub(v1).Len() > eps {
			t.Error("v1 != v2: ", v1, v2)
		}
	}
}

func TestQuaternionAxisAngle(t *testing.T) {
	const eps = 0.00001

	q := NewQuaternionFromAxisAngle(NewVector3(1, 0, 0), math.Pi/2)
	v := q.ApplyTo(NewVector3(0, 1, 0))
	if v.Sub(NewVector3(0, 0, 1)).Len() > eps {
		t.Error("rotate Y about X by 90deg: ", v)
	}

	if a := NewIdentityQuaternion().AngleTo(q); Abs(a-math.Pi/2) > eps {
		t.Error("AngleTo: ", a)
	}
	if a := q.AngleTo(q.Scale(-1)); a > eps {
		t.Error("q and -q should be the same rotation: ", a)
	}
}

func TestQuaternionSlerp(t *testing.T) {
	const eps = 0.00001

	a := NewIdentityQuaternion()
	b := NewQuaternionFromAxisAngle(NewVector3(0, 1, 0), math.Pi/2)

	if q := a.Slerp(b, 0); q.Sub(a).Len() > eps {
		t.Error("slerp(0) != a: ", q)
	}
	if q := a.Slerp(b, 1); q.Sub(b).Len() > eps {
		t.Error("slerp(1) != b: ", q)
	}
	mid := a.Slerp(b, 0.5)
	if ang := a.AngleTo(mid); Abs(ang-math.Pi/4) > eps {
		t.Error("slerp(0.5) angle: ", ang)
	}
	if Abs(mid.Len()-1) > eps {
		t.Error("slerp result is not normalized: ", mid.Len())
	}
}
