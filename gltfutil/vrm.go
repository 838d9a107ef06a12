package gltfutil

// https://github.com/vrm-c/vrm-specification/blob/master/specification/0.0/README.ja.md

import (
	"encoding/json"

	"github.com/qmuntal/gltf"
)

const VRMExtensionName = "VRM"

func init() {
	gltf.RegisterExtension(VRMExtensionName, unmarshalVRM)
}

type HumanBone struct {
	Bone string `json:"bone"`
	Node int    `json:"node"`
}

// VRM is the humanoid part of the VRM 0.x extension.
type VRM struct {
	Humanoid struct {
		Bones []*HumanBone `json:"humanBones"`
	} `json:"humanoid"`
}

func unmarshalVRM(data []byte) (interface{}, error) {
	var ext VRM
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, err
	}
	return &ext, nil
}

// HumanoidAliases maps the bone names of a VRM skin to humanoid bone names
// such as "hips" or "leftUpperArm". Documents without the extension give
// nil.
func HumanoidAliases(doc *gltf.Document, skin *Skin) map[string]string {
	ext, ok := doc.Extensions[VRMExtensionName].(*VRM)
	if !ok {
		return nil
	}
	nodeBone := map[int]int{}
	for b, n := range skin.Nodes {
		nodeBone[int(n)] = b
	}
	aliases := map[string]string{}
	for _, hb := range ext.Humanoid.Bones {
		if b, ok := nodeBone[hb.Node]; ok && hb.Bone != "" {
			aliases[skin.Skeleton.BoneName(b)] = hb.Bone
		}
	}
	return aliases
}
