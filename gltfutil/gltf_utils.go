// Package gltfutil reads skeletons from glTF skins and writes retargeted
// clips back as glTF animations.
package gltfutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/retarget/internal/logging"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

func Load(path string) (*gltf.Document, error) {
	return gltf.Open(path)
}

// Save writes a .glb or a .gltf file depending on the extension. Resources
// referenced by URI are embedded first when writing .glb.
func Save(doc *gltf.Document, path, srcDir string) error {
	if strings.EqualFold(filepath.Ext(path), ".gltf") {
		return gltf.Save(doc, path)
	}
	if err := ToSingleFile(doc, srcDir); err != nil {
		return err
	}
	return gltf.SaveBinary(doc, path)
}

// ToSingleFile moves external images into buffer views so the document can
// be written as a single binary file.
func ToSingleFile(doc *gltf.Document, srcDir string) error {
	for _, b := range doc.Buffers {
		if b.URI != "" && len(b.Data) == 0 {
			return fmt.Errorf("buffer %q is not loaded", b.URI)
		}
		b.URI = ""
	}
	for _, m := range doc.Images {
		if m.BufferView != nil || m.URI == "" || strings.HasPrefix(m.URI, "data:") {
			continue
		}
		buf, err := os.ReadFile(filepath.Join(srcDir, filepath.FromSlash(m.URI)))
		if err != nil {
			logging.Warn("image not embedded", "uri", m.URI, "err", err)
			continue
		}
		if m.MimeType == "" {
			if strings.HasSuffix(strings.ToLower(m.URI), ".png") {
				m.MimeType = "image/png"
			} else {
				m.MimeType = "image/jpeg"
			}
		}
		m.BufferView = gltf.Index(modeler.WriteBufferView(doc, gltf.TargetNone, buf))
		m.URI = ""
	}
	return nil
}
