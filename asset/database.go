package asset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/mapper"
	"github.com/binzume/retarget/skeleton"
	"github.com/google/uuid"
	"github.com/tiendc/go-deepcopy"
)

var (
	ErrNoLoader = errors.New("no loader for file type")
	ErrNotFound = errors.New("resource not found")
)

type Handle = uuid.UUID

// SkeletonLoader reads a skeleton from a model file.
type SkeletonLoader interface {
	LoadSkeleton(path string) (*skeleton.Skeleton, error)
}

type LoaderFunc func(path string) (*skeleton.Skeleton, error)

func (f LoaderFunc) LoadSkeleton(path string) (*skeleton.Skeleton, error) {
	return f(path)
}

// Resource is a loaded skeleton or mapper. The Skeleton and Mapper pointers
// stay the same across reloads; their contents are replaced in place, so
// readers on other goroutines hold Database.Acquire.
type Resource struct {
	Handle   Handle
	Path     string
	Skeleton *skeleton.Skeleton
	Mapper   *mapper.Mapper
	LoadedAt time.Time

	record  interface{}
	rebuild func(*mapper.Mapper) error
}

// Database owns loaded skeletons and mappers, keyed by handle and by path.
type Database struct {
	// OnLoaded runs after every load or reload, once the skeleton is built
	// and the mapper has compiled.
	OnLoaded func(*Resource) error

	mu          sync.RWMutex
	loaders     map[string]SkeletonLoader
	byPath      map[string]Handle
	resources   map[Handle]*Resource
	subscribers map[Handle]map[int]func(*Resource)
	nextSub     int

	// held for writing while loaded assets are replaced in place
	assets sync.RWMutex
}

// NewDatabase returns a database that reads YAML skeleton records.
// Loaders for other formats are added with RegisterLoader.
func NewDatabase() *Database {
	db := &Database{
		loaders:     map[string]SkeletonLoader{},
		byPath:      map[string]Handle{},
		resources:   map[Handle]*Resource{},
		subscribers: map[Handle]map[int]func(*Resource){},
	}
	yamlLoader := LoaderFunc(func(path string) (*skeleton.Skeleton, error) {
		rec, err := readFile(path, ReadSkeletonRecord)
		if err != nil {
			return nil, err
		}
		return rec.Skeleton()
	})
	db.RegisterLoader(".yaml", yamlLoader)
	db.RegisterLoader(".yml", yamlLoader)
	return db
}

// RegisterLoader sets the loader for a file extension such as ".pmx".
func (db *Database) RegisterLoader(ext string, l SkeletonLoader) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.loaders[strings.ToLower(ext)] = l
}

func normalize(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

func (db *Database) Get(h Handle) (*Resource, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.resources[h]
	return r, ok
}

func (db *Database) Lookup(path string) (*Resource, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	h, ok := db.byPath[normalize(path)]
	if !ok {
		return nil, false
	}
	return db.resources[h], true
}

// Paths returns the paths of every file-backed resource.
func (db *Database) Paths() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	paths := make([]string, 0, len(db.byPath))
	for p := range db.byPath {
		paths = append(paths, p)
	}
	return paths
}

func (db *Database) loader(path string) (SkeletonLoader, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ext := strings.ToLower(filepath.Ext(path))
	l, ok := db.loaders[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoLoader, ext)
	}
	return l, nil
}

// LoadSkeleton loads a skeleton, returning the cached resource when the path
// was loaded before.
func (db *Database) LoadSkeleton(path string) (*Resource, error) {
	path = normalize(path)
	if r, ok := db.Lookup(path); ok && r.Skeleton != nil {
		return r, nil
	}
	s, err := db.readSkeleton(path)
	if err != nil {
		return nil, err
	}
	r := &Resource{Handle: uuid.New(), Path: path, Skeleton: s, LoadedAt: time.Now()}
	r.record = NewSkeletonRecord(filepath.Base(path), s)
	if err := db.loaded(r); err != nil {
		return nil, err
	}
	db.add(r)
	logging.Info("skeleton loaded", "path", path, "bones", s.BoneCount(), "handle", r.Handle)
	return r, nil
}

func (db *Database) readSkeleton(path string) (*skeleton.Skeleton, error) {
	l, err := db.loader(path)
	if err != nil {
		return nil, err
	}
	s, err := l.LoadSkeleton(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return s, nil
}

// LoadMapper loads a mapper record and the skeletons it refers to. Relative
// skeleton paths are resolved against the mapper file's directory.
func (db *Database) LoadMapper(path string) (*Resource, error) {
	path = normalize(path)
	if r, ok := db.Lookup(path); ok && r.Mapper != nil {
		return r, nil
	}
	m := mapper.New()
	rec, err := db.readMapper(path, m)
	if err != nil {
		return nil, err
	}
	r := &Resource{Handle: uuid.New(), Path: path, Mapper: m, LoadedAt: time.Now(), record: rec}
	if err := db.loaded(r); err != nil {
		return nil, err
	}
	db.add(r)
	logging.Info("mapper loaded", "path", path, "chains", m.TargetChainCount(), "mapped", m.MappedChainCount())
	return r, nil
}

func (db *Database) readMapper(path string, m *mapper.Mapper) (*MapperRecord, error) {
	rec, err := readFile(path, ReadMapperRecord)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	resolve := func(ref string) string {
		if filepath.IsAbs(ref) {
			return ref
		}
		return filepath.Join(dir, ref)
	}
	src, err := db.LoadSkeleton(resolve(rec.Source))
	if err != nil {
		return nil, err
	}
	tgt, err := db.LoadSkeleton(resolve(rec.Target))
	if err != nil {
		return nil, err
	}
	if err := rec.Apply(m, src.Skeleton, tgt.Skeleton); err != nil {
		return nil, fmt.Errorf("mapper %s: %w", path, err)
	}
	return rec, nil
}

// AddMapper registers a mapper built in memory. rebuild, if not nil, is run
// whenever one of the mapper's skeletons is reloaded.
func (db *Database) AddMapper(m *mapper.Mapper, rebuild func(*mapper.Mapper) error) (*Resource, error) {
	r := &Resource{Handle: uuid.New(), Mapper: m, LoadedAt: time.Now(), rebuild: rebuild}
	if err := db.loaded(r); err != nil {
		return nil, err
	}
	db.add(r)
	return r, nil
}

// SaveMapper writes m as a record next to its skeletons. Both skeletons must
// be file-backed resources of this database.
func (db *Database) SaveMapper(path string, m *mapper.Mapper) error {
	path = normalize(path)
	src, tgt := db.pathOf(m.Source()), db.pathOf(m.Target())
	if src == "" || tgt == "" {
		return fmt.Errorf("%w: mapper skeletons are not file resources", ErrNotFound)
	}
	rel := func(p string) string {
		if r, err := filepath.Rel(filepath.Dir(path), p); err == nil {
			return filepath.ToSlash(r)
		}
		return p
	}
	return writeFile(path, NewMapperRecord(m, rel(src), rel(tgt)))
}

// SaveSkeleton writes s as a YAML skeleton record.
func SaveSkeleton(path string, s *skeleton.Skeleton) error {
	return writeFile(path, NewSkeletonRecord(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), s))
}

func (db *Database) pathOf(s *skeleton.Skeleton) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, r := range db.resources {
		if r.Skeleton == s && r.Path != "" {
			return r.Path
		}
	}
	return ""
}

func (db *Database) add(r *Resource) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.resources[r.Handle] = r
	if r.Path != "" {
		db.byPath[r.Path] = r.Handle
	}
}

// loaded builds the skeleton and checks that the mapper compiles before the
// resource is handed out.
func (db *Database) loaded(r *Resource) error {
	if r.Skeleton != nil && !r.Skeleton.Built() {
		if err := r.Skeleton.Build(); err != nil {
			return err
		}
	}
	if r.Mapper != nil && r.Mapper.Source() != nil {
		rt := mapper.NewRuntime(r.Mapper, mapper.RuntimeOptions{})
		if err := rt.Compile(); err != nil {
			return err
		}
		rt.Destroy()
	}
	if db.OnLoaded != nil {
		return db.OnLoaded(r)
	}
	return nil
}

// Record returns a deep copy of the record the resource was loaded from:
// *SkeletonRecord or *MapperRecord.
func (db *Database) Record(h Handle) (interface{}, error) {
	r, ok := db.Get(h)
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := db.snapshot(r)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: resource %s has no record", ErrNotFound, h)
	}
	return rec, nil
}

// snapshot deep copies the current record of r. Resources built in memory
// have none.
func (db *Database) snapshot(r *Resource) (interface{}, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	switch rec := r.record.(type) {
	case *SkeletonRecord:
		dst := &SkeletonRecord{}
		if err := deepcopy.Copy(dst, rec); err != nil {
			return nil, err
		}
		return dst, nil
	case *MapperRecord:
		dst := &MapperRecord{}
		if err := deepcopy.Copy(dst, rec); err != nil {
			return nil, err
		}
		return dst, nil
	}
	return nil, nil
}

// Acquire holds off reloads until release is called. Goroutines reading
// loaded skeletons or mappers while a Watcher runs hold it for the whole
// read.
func (db *Database) Acquire() (release func()) {
	db.assets.RLock()
	return db.assets.RUnlock
}

// Subscribe registers fn to run after the resource is reloaded. The returned
// function removes the subscription.
func (db *Database) Subscribe(h Handle, fn func(*Resource)) func() {
	db.mu.Lock()
	defer db.mu.Unlock()
	id := db.nextSub
	db.nextSub++
	if db.subscribers[h] == nil {
		db.subscribers[h] = map[int]func(*Resource){}
	}
	db.subscribers[h][id] = fn
	return func() {
		db.mu.Lock()
		defer db.mu.Unlock()
		delete(db.subscribers[h], id)
	}
}

func (db *Database) notify(r *Resource) {
	db.mu.RLock()
	subs := make([]func(*Resource), 0, len(db.subscribers[r.Handle]))
	for _, fn := range db.subscribers[r.Handle] {
		subs = append(subs, fn)
	}
	db.mu.RUnlock()
	for _, fn := range subs {
		fn(r)
	}
}

// Reload re-reads a file-backed resource in place. Mappers using a reloaded
// skeleton are rebuilt and marked modified, so runtimes compiled from them
// recompile on their next update.
//
// Reload waits for every Acquire holder to release. When the new contents
// fail to load, build or compile, the previous contents are restored and
// the error is returned.
func (db *Database) Reload(path string) error {
	r, ok := db.Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	db.assets.Lock()
	changed, err := db.reload(r)
	db.assets.Unlock()
	if err != nil {
		return err
	}
	logging.Info("reloaded", "path", r.Path, "handle", r.Handle)
	for _, c := range changed {
		db.notify(c)
	}
	return nil
}

func (db *Database) reload(r *Resource) ([]*Resource, error) {
	prev, err := db.snapshot(r)
	if err != nil {
		return nil, err
	}
	var changed []*Resource
	switch {
	case r.Skeleton != nil:
		if changed, err = db.reloadSkeleton(r, prev); err == nil {
			if err = db.loaded(r); err != nil {
				db.rollbackSkeleton(r, prev)
			}
		}
	case r.Mapper != nil:
		source, target := r.Mapper.Source(), r.Mapper.Target()
		if err = db.reloadMapper(r); err == nil {
			err = db.loaded(r)
		}
		if err != nil {
			db.rollbackMapper(r, prev, source, target)
		}
	}
	if err != nil {
		return nil, err
	}
	r.LoadedAt = time.Now()
	return append(changed, r), nil
}

func (db *Database) reloadMapper(r *Resource) error {
	rec, err := db.readMapper(r.Path, r.Mapper)
	if err != nil {
		return err
	}
	db.mu.Lock()
	r.record = rec
	db.mu.Unlock()
	return nil
}

func (db *Database) rollbackMapper(r *Resource, prev interface{}, source, target *skeleton.Skeleton) {
	rec, ok := prev.(*MapperRecord)
	if !ok {
		return
	}
	if err := rec.Apply(r.Mapper, source, target); err != nil {
		logging.Error("mapper rollback failed", "path", r.Path, "err", err)
	}
	db.mu.Lock()
	r.record = rec
	db.mu.Unlock()
}

// reloadSkeleton replaces the bones of r and rebuilds the mappers using it.
// It returns the rebuilt mapper resources. prev restores r on failure.
func (db *Database) reloadSkeleton(r *Resource, prev interface{}) ([]*Resource, error) {
	s, err := db.readSkeleton(r.Path)
	if err != nil {
		return nil, err
	}
	rec := NewSkeletonRecord(filepath.Base(r.Path), s)
	if err := rec.apply(r.Skeleton); err != nil {
		db.rollbackSkeleton(r, prev)
		return nil, err
	}
	db.mu.Lock()
	r.record = rec
	db.mu.Unlock()

	dependents, err := db.rebuildDependents(r.Skeleton)
	if err != nil {
		db.rollbackSkeleton(r, prev)
		return nil, err
	}
	return dependents, nil
}

func (db *Database) rollbackSkeleton(r *Resource, prev interface{}) {
	rec, ok := prev.(*SkeletonRecord)
	if !ok {
		return
	}
	if err := rec.apply(r.Skeleton); err != nil {
		logging.Error("skeleton rollback failed", "path", r.Path, "err", err)
		return
	}
	db.mu.Lock()
	r.record = rec
	db.mu.Unlock()
	if _, err := db.rebuildDependents(r.Skeleton); err != nil {
		logging.Error("mapper rollback failed", "skeleton", r.Path, "err", err)
	}
}

func (db *Database) rebuildDependents(s *skeleton.Skeleton) ([]*Resource, error) {
	db.mu.RLock()
	var dependents []*Resource
	for _, other := range db.resources {
		if other.Mapper != nil && (other.Mapper.Source() == s || other.Mapper.Target() == s) {
			dependents = append(dependents, other)
		}
	}
	db.mu.RUnlock()

	var errs []error
	for _, d := range dependents {
		db.mu.RLock()
		rec, ok := d.record.(*MapperRecord)
		db.mu.RUnlock()
		var err error
		switch {
		case d.rebuild != nil:
			err = d.rebuild(d.Mapper)
		case ok:
			err = rec.Apply(d.Mapper, d.Mapper.Source(), d.Mapper.Target())
		default:
			d.Mapper.Touch()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("rebuild mapper %s: %w", d.Handle, err))
		}
	}
	return dependents, errors.Join(errs...)
}
