package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/retarget/anim"
	"github.com/binzume/retarget/asset"
	"github.com/binzume/retarget/config"
	"github.com/binzume/retarget/gltfutil"
	"github.com/binzume/retarget/mmd"
	"github.com/binzume/retarget/skeleton"
)

func defaultOutputFile(motion, target string) string {
	base := motion[0 : len(motion)-len(filepath.Ext(motion))]
	name := filepath.Base(target)
	return base + "_" + name[0:len(name)-len(filepath.Ext(name))] + ".vmd"
}

func createFile(path string, write func(w *bufio.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// saveClip writes a VMD motion, or the target glTF model with the clip
// added as an animation.
func saveClip(output string, clip *anim.Clip, target string, cfg *config.Config) error {
	switch ext := strings.ToLower(filepath.Ext(output)); ext {
	case ".vmd":
		a := mmd.NewAnimation(clip.Name, clip, mmdOptions(cfg))
		return createFile(output, func(w *bufio.Writer) error { return mmd.WriteVMD(w, a) })
	case ".glb", ".gltf":
		targetExt := strings.ToLower(filepath.Ext(target))
		if targetExt != ".glb" && targetExt != ".gltf" && targetExt != ".vrm" {
			return fmt.Errorf("%v output needs a glTF target, got %v", ext, targetExt)
		}
		doc, err := gltfutil.Load(target)
		if err != nil {
			return err
		}
		skin, err := gltfutil.LoadSkin(doc, cfg.Skin)
		if err != nil {
			return err
		}
		if _, err := gltfutil.AddAnimation(doc, skin, clip); err != nil {
			return err
		}
		return gltfutil.Save(doc, output, filepath.Dir(target))
	default:
		return fmt.Errorf("unsupported output type: %v", ext)
	}
}

func saveSkeleton(path string, s *skeleton.Skeleton, cfg *config.Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return asset.SaveSkeleton(path, s)
	case ".pmx":
		m := mmd.NewModelFromSkeleton(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), s, mmdOptions(cfg))
		return createFile(path, func(w *bufio.Writer) error { return mmd.WritePMX(w, m) })
	default:
		return fmt.Errorf("unsupported skeleton type: %v", ext)
	}
}
