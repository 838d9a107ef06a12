package geom

import (
	"math"
	"testing"
)

func TestEuler(t *testing.T) {
	const eps = 0.000001

	for i, c := range []struct {
		order   RotationOrder
		x, y, z float32
	}{
		{RotationOrderXYZ, 10, 20, 30},
		{RotationOrderXYZ, 10, 90, 0},
		{RotationOrderYXZ, 10, 20, 30},
		{RotationOrderYXZ, 90, 10, 0},
		{RotationOrderZXY, 10, 20, 30},
		{RotationOrderZXY, 90, 0, 10},
		{RotationOrderZYX, 10, 20, 30},
		{RotationOrderZYX, 0, 90, 10},
	} {
		e1 := NewEulerDegrees(c.x, c.y, c.z, c.order)
		q := e1.ToQuaternion()
		e2 := NewEulerFromQuaternion(q, c.order)

		if e1.Vector3.Sub(&e2.Vector3).Len() > eps {
			t.Error("euler: ", i, e1, e2)
		}
		if Abs(q.Len()-1) > eps {
			t.Error("Quaternion.Len() != 1", e1)
		}
		if d := e2.Degrees(); d.Sub(NewVector3(c.x, c.y, c.z)).Len() > 0.0001 {
			t.Error("degrees: ", i, d)
		}
	}
}

func TestRotationOrder(t *testing.T) {
	for _, o := range []RotationOrder{RotationOrderXYZ, RotationOrderYXZ, RotationOrderZXY, RotationOrderZYX} {
		if p, ok := ParseRotationOrder(o.String()); !ok || p != o {
			t.Error("order: ", o)
		}
	}
	if _, ok := ParseRotationOrder("XZY"); ok {
		t.Error("XZY is not supported")
	}
	if o, ok := ParseRotationOrder(""); !ok || o != RotationOrderXYZ {
		t.Error("default order: ", o)
	}
	q := NewEulerDegrees(90, 0, 0, RotationOrderXYZ).ToQuaternion()
	if q.AngleTo(NewQuaternionFromAxisAngle(NewVector3(1, 0, 0), math.Pi/2)) > 0.0001 {
		t.Error("90 degrees about X: ", q)
	}
}
