// Package component ties a mapper runtime to the lifetime of an animated
// instance: attach compiles it, detach releases it, and a changed mapper is
// recompiled before the next update.
package component

import (
	"github.com/binzume/retarget/geom"
	"github.com/binzume/retarget/internal/logging"
	"github.com/binzume/retarget/mapper"
)

// PoseSource produces the local source pose for the current frame.
type PoseSource interface {
	Pose(out []geom.Transform) error
}

type MapperComponent struct {
	Name string

	mapper  *mapper.Mapper
	opts    mapper.RuntimeOptions
	runtime *mapper.Runtime
	source  PoseSource

	sourcePose []geom.Transform
	targetPose []geom.Transform
	attached   bool
}

func New(name string, m *mapper.Mapper, source PoseSource, opts mapper.RuntimeOptions) *MapperComponent {
	return &MapperComponent{Name: name, mapper: m, source: source, opts: opts}
}

func (c *MapperComponent) Attached() bool {
	return c.attached
}

func (c *MapperComponent) Mapper() *mapper.Mapper {
	return c.mapper
}

// Attach compiles the runtime. A component without a mapper attaches but
// stays idle.
func (c *MapperComponent) Attach() error {
	c.attached = true
	return c.compile()
}

// Detach releases the runtime and its scratch buffers.
func (c *MapperComponent) Detach() {
	c.attached = false
	c.destroy()
}

// SetMapper switches the mapper, recompiling when attached.
func (c *MapperComponent) SetMapper(m *mapper.Mapper) error {
	c.mapper = m
	c.destroy()
	if c.attached {
		return c.compile()
	}
	return nil
}

func (c *MapperComponent) SetSource(source PoseSource) {
	c.source = source
}

func (c *MapperComponent) compile() error {
	if c.mapper == nil {
		return nil
	}
	rt := mapper.NewRuntime(c.mapper, c.opts)
	if err := rt.Compile(); err != nil {
		return err
	}
	c.runtime = rt
	c.sourcePose = make([]geom.Transform, c.mapper.Source().BoneCount())
	c.targetPose = make([]geom.Transform, c.mapper.Target().BoneCount())
	logging.Debug("component compiled", "name", c.Name, "version", c.mapper.Version())
	return nil
}

func (c *MapperComponent) destroy() {
	if c.runtime != nil {
		c.runtime.Destroy()
	}
	c.runtime = nil
	c.sourcePose = nil
	c.targetPose = nil
}

// Update pulls the source pose and retargets it. The returned slice is owned
// by the component and valid until the next Update. An idle component
// returns nil.
func (c *MapperComponent) Update() ([]geom.Transform, error) {
	if !c.attached || c.mapper == nil || c.source == nil {
		return nil, nil
	}
	if c.runtime == nil || c.runtime.Stale() {
		c.destroy()
		if err := c.compile(); err != nil {
			return nil, err
		}
	}
	if err := c.source.Pose(c.sourcePose); err != nil {
		return nil, err
	}
	if err := c.runtime.CalcPoseLocalSpace(c.sourcePose, c.targetPose); err != nil {
		return nil, err
	}
	return c.targetPose, nil
}

// Pose returns the result of the last Update.
func (c *MapperComponent) Pose() []geom.Transform {
	return c.targetPose
}
