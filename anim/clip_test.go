package anim

import (
	"math"
	"testing"

	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/skeleton"
)

const tol = 0.0001

var axisX = geom.NewVector3(1, 0, 0)

func TestTrackSample(t *testing.T) {
	c := NewClip("walk", 30)
	c.AddKey("arm", 10, *geom.NewAxisAngleTransform(axisX, math.Pi/2, geom.NewVector3(2, 0, 0)))
	c.AddKey("arm", 0, geom.IdentityTransform)
	c.Sort()

	tr := c.Track("arm")
	if tr == nil || tr.Keys[0].Frame != 0 {
		t.Fatal("keys not sorted: ", tr)
	}
	if c.Duration() != 10 || c.KeyCount() != 2 {
		t.Error("duration: ", c.Duration(), c.KeyCount())
	}

	tests := []struct {
		frame float32
		angle float32
		x     float32
	}{
		{-5, 0, 0},
		{0, 0, 0},
		{5, math.Pi / 4, 1},
		{10, math.Pi / 2, 2},
		{20, math.Pi / 2, 2},
	}
	for _, tt := range tests {
		got := tr.Sample(tt.frame)
		want := geom.NewAxisAngleTransform(axisX, tt.angle, geom.NewVector3(tt.x, 0, 0))
		if !skeleton.TransformApproxEqual(&got, want, tol) {
			t.Error("sample at ", tt.frame, got, *want)
		}
	}

	var empty Track
	if s := empty.Sample(3); s != geom.IdentityTransform {
		t.Error("empty track: ", s)
	}
	if c.Track("leg") != nil {
		t.Error("unknown track")
	}
}

func TestApplyKey(t *testing.T) {
	bind := geom.NewAxisAngleTransform(geom.NewVector3(0, 1, 0), 0.7, geom.NewVector3(1, 2, 3))
	key := geom.NewAxisAngleTransform(axisX, 0.3, geom.NewVector3(0, 0.5, 0))

	local := ApplyKey(bind, key)
	if local.Translation.Sub(geom.NewVector3(1, 2.5, 3)).Len() > tol {
		t.Error("translation: ", local.Translation)
	}
	back := KeyFromLocal(bind, &local)
	if !skeleton.TransformApproxEqual(&back, key, tol) {
		t.Error("KeyFromLocal: ", back, *key)
	}
}
