package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/retarget/anim"
	"github.com/binzume/retarget/asset"
	"github.com/binzume/retarget/config"
	"github.com/binzume/retarget/gltfutil"
	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/mapper"
	"github.com/binzume/retarget/mmd"
	"github.com/binzume/retarget/skeleton"
)

func mmdOptions(cfg *config.Config) mmd.Options {
	return mmd.Options{Scale: cfg.Scale, FlipZ: cfg.FlipZ}
}

// newDatabase returns a database that also reads skeletons from MMD models
// and glTF skins.
func newDatabase(cfg *config.Config) *asset.Database {
	db := asset.NewDatabase()
	mmdLoader := asset.LoaderFunc(func(path string) (*skeleton.Skeleton, error) {
		r, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		model, err := mmd.Parse(r)
		if err != nil {
			return nil, err
		}
		logging.Debug("model", "name", model.Name, "bones", len(model.Bones))
		return model.Skeleton(mmdOptions(cfg))
	})
	gltfLoader := asset.LoaderFunc(func(path string) (*skeleton.Skeleton, error) {
		doc, err := gltfutil.Load(path)
		if err != nil {
			return nil, err
		}
		skin, err := gltfutil.LoadSkin(doc, cfg.Skin)
		if err != nil {
			return nil, err
		}
		// Humanoid bone names let two VRM models match by name. Reloads run
		// this with the database's assets locked, as the mapper rebuild that
		// reads the aliases does.
		for name, bone := range gltfutil.HumanoidAliases(doc, skin) {
			if cfg.Aliases == nil {
				cfg.Aliases = map[string]string{}
			}
			if _, ok := cfg.Aliases[name]; !ok {
				cfg.Aliases[name] = bone
			}
		}
		return skin.Skeleton, nil
	})
	db.RegisterLoader(".pmx", mmdLoader)
	db.RegisterLoader(".pmd", mmdLoader)
	db.RegisterLoader(".glb", gltfLoader)
	db.RegisterLoader(".gltf", gltfLoader)
	db.RegisterLoader(".vrm", gltfLoader)
	return db
}

func loadMotion(path string, cfg *config.Config) (*anim.Clip, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".vmd" {
		return nil, fmt.Errorf("unsupported motion type: %v", ext)
	}
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	a, err := mmd.ParseVMD(r)
	if err != nil {
		return nil, err
	}
	clip := a.Clip(mmdOptions(cfg))
	if clip.Name == "" {
		clip.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	logging.Info("motion loaded", "path", path, "bones", len(clip.Tracks), "keys", clip.KeyCount(), "frames", clip.Duration())
	return clip, nil
}

// buildMapper returns a mapper resource, loaded from mapperPath or built
// from the skeletons. Built mappers are rebuilt when a skeleton reloads.
func buildMapper(db *asset.Database, cfg *config.Config, src, tgt *asset.Resource, mapperPath string) (*asset.Resource, error) {
	if mapperPath != "" {
		return db.LoadMapper(mapperPath)
	}
	build := func(m *mapper.Mapper) error {
		if cfg.Lookup == config.LookupDistance {
			return m.BuildUsingBoneDistance(src.Skeleton, tgt.Skeleton, float64(cfg.MaxDistance))
		}
		return m.BuildUsingBoneNames(src.Skeleton, tgt.Skeleton, cfg.Aliases)
	}
	m := mapper.New()
	if err := build(m); err != nil {
		return nil, err
	}
	logging.Info("mapper built", "lookup", cfg.Lookup, "chains", m.TargetChainCount(), "mapped", m.MappedChainCount())
	return db.AddMapper(m, build)
}
