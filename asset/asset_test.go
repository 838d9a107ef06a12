package asset

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/binzume/retarget/anim"
	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/mapper"
	"github.com/binzume/retarget/skeleton"
)

const tol = 0.0001

func newSkeleton(t *testing.T, step float32, names ...string) *skeleton.Skeleton {
	t.Helper()
	s := skeleton.New()
	for i, name := range names {
		local := *geom.NewAxisAngleTransform(geom.NewVector3(0, 0, 1), 0.1, geom.NewVector3(0, step, 0))
		s.AddBone(name, local, i-1, step)
	}
	if err := s.Build(); err != nil {
		t.Fatal(err)
	}
	return s
}

func writeSkeleton(t *testing.T, path string, s *skeleton.Skeleton) {
	t.Helper()
	if err := SaveSkeleton(path, s); err != nil {
		t.Fatal(err)
	}
}

func TestSkeletonRecord(t *testing.T) {
	s := newSkeleton(t, 1.5, "hip", "spine", "head")

	var buf bytes.Buffer
	if err := WriteRecord(&buf, NewSkeletonRecord("test", s)); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "kind: skeleton") {
		t.Error("kind missing: ", buf.String())
	}
	rec, err := ReadSkeletonRecord(&buf)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := rec.Skeleton()
	if err != nil {
		t.Fatal(err)
	}
	if s2.BoneCount() != 3 || s2.BoneName(2) != "head" || s2.BoneParent(2) != 1 {
		t.Fatal("bones: ", rec.Bones)
	}
	for i := 0; i < 3; i++ {
		a, b := s.BindModel(i), s2.BindModel(i)
		if !skeleton.TransformApproxEqual(&a, &b, tol) {
			t.Error("bind pose: ", i, a, b)
		}
	}

	rec.Kind = KindMapper
	if _, err := rec.Skeleton(); !errors.Is(err, ErrKind) {
		t.Error("expected ErrKind: ", err)
	}
}

func TestMapperRecord(t *testing.T) {
	src := newSkeleton(t, 1, "hip", "spine", "chest")
	tgt := newSkeleton(t, 2, "hip", "spine")
	m := mapper.New()
	if err := m.BuildUsingBoneNames(src, tgt, nil); err != nil {
		t.Fatal(err)
	}

	rec := NewMapperRecord(m, "src.yaml", "tgt.yaml")
	if len(rec.SourceChains) != 2 || rec.SourceChains[1] != (ChainRecord{"spine", "spine", "chest"}) {
		t.Error("source chains: ", rec.SourceChains)
	}
	if len(rec.Mapping) != 2 {
		t.Error("mapping: ", rec.Mapping)
	}

	m2 := mapper.New()
	if err := rec.Apply(m2, src, tgt); err != nil {
		t.Fatal(err)
	}
	if m2.SourceChainCount() != m.SourceChainCount() || m2.MappingForChain(1) != m.MappingForChain(1) {
		t.Error("applied mapper differs")
	}

	rec.Mapping = append(rec.Mapping, MappingRecord{Source: "nope", Target: "hip"})
	if err := rec.Apply(m2, src, tgt); !errors.Is(err, mapper.ErrChainNotFound) {
		t.Error("expected ErrChainNotFound: ", err)
	}
	if m2.SourceChainCount() != 0 {
		t.Error("failed apply should leave the mapper empty")
	}
}

func TestDatabase(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.yaml")
	tgtPath := filepath.Join(dir, "models", "tgt.yaml")
	if err := os.Mkdir(filepath.Join(dir, "models"), 0755); err != nil {
		t.Fatal(err)
	}
	writeSkeleton(t, srcPath, newSkeleton(t, 1, "hip", "spine", "head"))
	writeSkeleton(t, tgtPath, newSkeleton(t, 2, "hip", "spine", "head"))

	db := NewDatabase()
	var loaded []string
	db.OnLoaded = func(r *Resource) error {
		loaded = append(loaded, filepath.Base(r.Path))
		return nil
	}

	src, err := db.LoadSkeleton(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := db.LoadSkeleton(srcPath)
	if again != src {
		t.Error("second load should hit the cache")
	}
	tgt, err := db.LoadSkeleton(tgtPath)
	if err != nil {
		t.Fatal(err)
	}

	m := mapper.New()
	if err := m.BuildUsingBoneNames(src.Skeleton, tgt.Skeleton, nil); err != nil {
		t.Fatal(err)
	}
	mapperPath := filepath.Join(dir, "mapper.yaml")
	if err := db.SaveMapper(mapperPath, m); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(mapperPath)
	if !strings.Contains(string(data), "target: models/tgt.yaml") {
		t.Error("skeleton paths should be relative: ", string(data))
	}

	mr, err := db.LoadMapper(mapperPath)
	if err != nil {
		t.Fatal(err)
	}
	if mr.Mapper.Source() != src.Skeleton || mr.Mapper.MappedChainCount() != 3 {
		t.Error("mapper should reuse loaded skeletons")
	}
	if strings.Join(loaded, ",") != "src.yaml,tgt.yaml,mapper.yaml" {
		t.Error("OnLoaded calls: ", loaded)
	}

	snap, err := db.Record(src.Handle)
	if err != nil {
		t.Fatal(err)
	}
	rec := snap.(*SkeletonRecord)
	rec.Bones[0].Name = "changed"
	snap2, _ := db.Record(src.Handle)
	if snap2.(*SkeletonRecord).Bones[0].Name != "hip" {
		t.Error("Record should return a copy")
	}

	if _, err := db.LoadSkeleton(filepath.Join(dir, "model.fbx")); !errors.Is(err, ErrNoLoader) {
		t.Error("expected ErrNoLoader: ", err)
	}
	if err := db.Reload(filepath.Join(dir, "unknown.yaml")); !errors.Is(err, ErrNotFound) {
		t.Error("expected ErrNotFound: ", err)
	}
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.yaml")
	tgtPath := filepath.Join(dir, "tgt.yaml")
	writeSkeleton(t, srcPath, newSkeleton(t, 1, "hip", "spine"))
	writeSkeleton(t, tgtPath, newSkeleton(t, 1, "hip", "spine"))

	db := NewDatabase()
	src, _ := db.LoadSkeleton(srcPath)
	tgt, _ := db.LoadSkeleton(tgtPath)
	m := mapper.New()
	build := func(m *mapper.Mapper) error {
		return m.BuildUsingBoneNames(src.Skeleton, tgt.Skeleton, nil)
	}
	if err := build(m); err != nil {
		t.Fatal(err)
	}
	mr, err := db.AddMapper(m, build)
	if err != nil {
		t.Fatal(err)
	}
	rt := mapper.NewRuntime(m, mapper.RuntimeOptions{})
	if err := rt.Compile(); err != nil {
		t.Fatal(err)
	}

	notified := 0
	cancel := db.Subscribe(mr.Handle, func(r *Resource) { notified++ })
	defer cancel()

	writeSkeleton(t, tgtPath, newSkeleton(t, 2, "hip", "spine", "head"))
	if err := db.Reload(tgtPath); err != nil {
		t.Fatal(err)
	}
	if tgt.Skeleton.BoneCount() != 3 {
		t.Error("skeleton should be replaced in place: ", tgt.Skeleton.BoneCount())
	}
	if notified != 1 {
		t.Error("mapper subscribers: ", notified)
	}
	if !rt.Stale() {
		t.Error("runtime should be stale after a skeleton reload")
	}
	if err := rt.Compile(); err != nil {
		t.Fatal(err)
	}
	if m.TargetChainCount() != 2 || m.TargetChain(1).Last != 2 {
		t.Error("mapper should be rebuilt: ", m.TargetChains())
	}
}

func TestReloadWhileRetargeting(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.yaml")
	tgtPath := filepath.Join(dir, "tgt.yaml")
	writeSkeleton(t, srcPath, newSkeleton(t, 1, "hip", "spine", "head"))
	writeSkeleton(t, tgtPath, newSkeleton(t, 2, "hip", "spine", "head"))

	// source file contents alternating between two bone counts
	var variants [2][]byte
	for i, names := range [][]string{{"hip", "spine"}, {"hip", "spine", "head"}} {
		var buf bytes.Buffer
		if err := WriteRecord(&buf, NewSkeletonRecord("src", newSkeleton(t, 1, names...))); err != nil {
			t.Fatal(err)
		}
		variants[i] = buf.Bytes()
	}

	db := NewDatabase()
	src, _ := db.LoadSkeleton(srcPath)
	tgt, _ := db.LoadSkeleton(tgtPath)
	m := mapper.New()
	build := func(m *mapper.Mapper) error {
		return m.BuildUsingBoneNames(src.Skeleton, tgt.Skeleton, nil)
	}
	if err := build(m); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddMapper(m, build); err != nil {
		t.Fatal(err)
	}

	clip := anim.NewClip("bend", 30)
	clip.AddKey("spine", 0, geom.IdentityTransform)
	clip.AddKey("spine", 30, *geom.NewAxisAngleTransform(geom.NewVector3(1, 0, 0), 1, &geom.Vector3{}))

	const reloads = 20
	done := make(chan error, 1)
	go func() {
		for i := 0; i < reloads; i++ {
			if err := os.WriteFile(srcPath, variants[i%2], 0644); err != nil {
				done <- err
				return
			}
			if err := db.Reload(srcPath); err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for i := 0; i < reloads; i++ {
		release := db.Acquire()
		out, err := anim.RetargetClip(context.Background(), m, clip, anim.RetargetOptions{Workers: 4})
		release()
		if err != nil {
			t.Fatal(err)
		}
		if out.Track("spine") == nil {
			t.Fatal("spine should be retargeted: ", out.Tracks)
		}
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if src.Skeleton.BoneCount() != 3 {
		t.Error("last reload should win: ", src.Skeleton.BoneCount())
	}
}

func TestReloadRollback(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.yaml")
	tgtPath := filepath.Join(dir, "tgt.yaml")
	writeSkeleton(t, srcPath, newSkeleton(t, 1, "hip", "spine"))
	writeSkeleton(t, tgtPath, newSkeleton(t, 1, "hip", "spine"))

	db := NewDatabase()
	src, _ := db.LoadSkeleton(srcPath)
	tgt, _ := db.LoadSkeleton(tgtPath)
	m := mapper.New()
	build := func(m *mapper.Mapper) error {
		return m.BuildUsingBoneNames(src.Skeleton, tgt.Skeleton, nil)
	}
	if err := build(m); err != nil {
		t.Fatal(err)
	}
	mr, err := db.AddMapper(m, build)
	if err != nil {
		t.Fatal(err)
	}
	notified := 0
	cancel := db.Subscribe(mr.Handle, func(r *Resource) { notified++ })
	defer cancel()

	// duplicate names make the name based rebuild fail
	writeSkeleton(t, tgtPath, newSkeleton(t, 1, "hip", "hip", "spine"))
	if err := db.Reload(tgtPath); !errors.Is(err, skeleton.ErrDuplicateName) {
		t.Error("expected ErrDuplicateName: ", err)
	}
	if tgt.Skeleton.BoneCount() != 2 || !tgt.Skeleton.Built() {
		t.Error("skeleton should be restored: ", tgt.Skeleton.BoneCount())
	}
	if m.MappedChainCount() != 2 {
		t.Error("mapper should be rebuilt on the restored skeleton: ", m.MappedChainCount())
	}
	if notified != 0 {
		t.Error("failed reload should not notify: ", notified)
	}
	rec, err := db.Record(tgt.Handle)
	if err != nil {
		t.Fatal(err)
	}
	if n := len(rec.(*SkeletonRecord).Bones); n != 2 {
		t.Error("record should be restored: ", n)
	}

	writeSkeleton(t, tgtPath, newSkeleton(t, 1, "hip", "spine", "head"))
	if err := db.Reload(tgtPath); err != nil {
		t.Fatal(err)
	}
	if tgt.Skeleton.BoneCount() != 3 || notified != 1 {
		t.Error("reload after a failure: ", tgt.Skeleton.BoneCount(), notified)
	}
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "src.yaml")
	writeSkeleton(t, path, newSkeleton(t, 1, "hip"))

	db := NewDatabase()
	r, err := db.LoadSkeleton(path)
	if err != nil {
		t.Fatal(err)
	}
	w, err := NewWatcher(db)
	if err != nil {
		t.Fatal(err)
	}
	w.Delay = 10 * time.Millisecond
	if err := w.AddAll(); err != nil {
		t.Fatal(err)
	}
	reloaded := make(chan int, 8)
	db.Subscribe(r.Handle, func(r *Resource) { reloaded <- r.Skeleton.BoneCount() })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	writeSkeleton(t, path, newSkeleton(t, 1, "hip", "spine"))
	timeout := time.After(5 * time.Second)
wait:
	for {
		select {
		case n := <-reloaded:
			if n == 2 {
				break wait
			}
		case <-timeout:
			t.Fatal("no reload after the file changed")
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Error("Run: ", err)
	}
}

func TestSkeletonRecordEuler(t *testing.T) {
	rec, err := ReadSkeletonRecord(strings.NewReader(`
kind: skeleton
bones:
- {name: hip, parent: -1, position: [0, 1, 0]}
- {name: spine, parent: 0, position: [0, 1, 0], euler: [90, 0, 0]}
`))
	if err != nil {
		t.Fatal(err)
	}
	s, err := rec.Skeleton()
	if err != nil {
		t.Fatal(err)
	}
	local := s.BoneLocal(1)
	want := geom.NewQuaternionFromAxisAngle(geom.NewVector3(1, 0, 0), math.Pi/2)
	if local.Rotation.AngleTo(want) > tol {
		t.Error("euler rotation: ", local.Rotation)
	}
	if hip := s.BoneLocal(0); hip.Rotation != (geom.Quaternion{W: 1}) {
		t.Error("missing rotation should be identity: ", hip.Rotation)
	}

	rec.Bones[1].EulerOrder = "XZY"
	if err := rec.apply(s); err == nil {
		t.Error("unsupported order should fail")
	}
	if s.BoneCount() != 2 || !s.Built() {
		t.Error("failed apply should leave the skeleton untouched")
	}
}
