package gpu

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
)

var shaderIDs atomic.Uint64

// Shader is a compiled WGSL program together with the binding layouts it declares.
//
// The mesh formats describe @group(1): the per-draw uniforms and textures a MeshInstance binds.
// A shader that failed to compile stays Failed and is skipped at draw time.
type Shader struct {
	id     uint64
	name   string
	source string
	impl   ShaderImpl

	vertexEntry   string
	fragmentEntry string
	groups        map[int]*BindGroupFormat

	meshUniformBufferFormat *UniformBufferFormat
	meshBindGroupFormat     *BindGroupFormat

	ready  bool
	failed bool
	err    error
}

// ShaderBuilderOption is a functional option for NewShader.
type ShaderBuilderOption func(*Shader)

// WithShaderName sets the debug name.
func WithShaderName(name string) ShaderBuilderOption {
	return func(s *Shader) { s.name = name }
}

// WithShaderSource sets the WGSL source.
func WithShaderSource(source string) ShaderBuilderOption {
	return func(s *Shader) { s.source = source }
}

// WithEntryPoints sets the vertex and fragment entry points.
func WithEntryPoints(vertex, fragment string) ShaderBuilderOption {
	return func(s *Shader) {
		s.vertexEntry = vertex
		s.fragmentEntry = fragment
	}
}

// WithMeshFormats sets the per-draw uniform buffer and bind group formats explicitly.
func WithMeshFormats(ub *UniformBufferFormat, bg *BindGroupFormat) ShaderBuilderOption {
	return func(s *Shader) {
		s.meshUniformBufferFormat = ub
		s.meshBindGroupFormat = bg
	}
}

// WithBindGroupFormat sets the format of one bind group index.
func WithBindGroupFormat(group int, format *BindGroupFormat) ShaderBuilderOption {
	return func(s *Shader) { s.groups[group] = format }
}

// NewShader creates a shader and compiles it on the device.
//
// Parameters:
//   - device: the owning device
//   - options: functional options
//
// Returns:
//   - *Shader: the shader, Ready or Failed
func NewShader(device Device, options ...ShaderBuilderOption) *Shader {
	s := &Shader{
		id:     shaderIDs.Add(1),
		name:   "Shader",
		groups: make(map[int]*BindGroupFormat),
	}
	for _, opt := range options {
		opt(s)
	}
	if s.meshBindGroupFormat != nil {
		s.groups[BindGroupMesh] = s.meshBindGroupFormat
	}
	s.impl = device.CreateShaderImpl(s)
	return s
}

// NewShaderFromWGSL creates a shader whose entry points and bind group formats are read from the
// WGSL declarations. The first uniform buffer of @group(1) becomes the mesh uniform buffer format.
// Declarations that cannot be mapped produce a Failed shader.
//
// Parameters:
//   - device: the owning device
//   - name: the debug name
//   - source: the WGSL source
//
// Returns:
//   - *Shader: the shader, Ready or Failed
func NewShaderFromWGSL(device Device, name, source string) *Shader {
	m := scanWGSL(source)
	options := []ShaderBuilderOption{
		WithShaderName(name),
		WithShaderSource(source),
		WithEntryPoints(m.vertexEntry, m.fragmentEntry),
	}
	var scanErr error
	for _, g := range m.groupsDeclared {
		ub, bg, err := m.groupFormats(device, g)
		if err != nil {
			scanErr = err
			break
		}
		if g == BindGroupMesh {
			options = append(options, WithMeshFormats(ub, bg))
		} else {
			options = append(options, WithBindGroupFormat(g, bg))
		}
	}
	if scanErr != nil {
		s := &Shader{id: shaderIDs.Add(1), name: name, source: source, groups: make(map[int]*BindGroupFormat)}
		s.Fail(scanErr)
		return s
	}
	return NewShader(device, options...)
}

func (s *Shader) ID() uint64                                    { return s.id }
func (s *Shader) Name() string                                  { return s.name }
func (s *Shader) Source() string                                { return s.source }
func (s *Shader) VertexEntry() string                           { return s.vertexEntry }
func (s *Shader) FragmentEntry() string                         { return s.fragmentEntry }
func (s *Shader) Impl() ShaderImpl                              { return s.impl }
func (s *Shader) MeshUniformBufferFormat() *UniformBufferFormat { return s.meshUniformBufferFormat }
func (s *Shader) MeshBindGroupFormat() *BindGroupFormat         { return s.meshBindGroupFormat }
func (s *Shader) Ready() bool                                   { return s.ready && !s.failed }
func (s *Shader) Failed() bool                                  { return s.failed }
func (s *Shader) Err() error                                    { return s.err }

// BindGroupFormat returns the format declared for group, or nil.
func (s *Shader) BindGroupFormat(group int) *BindGroupFormat { return s.groups[group] }

// BindGroupFormats returns every declared group format keyed by index.
func (s *Shader) BindGroupFormats() map[int]*BindGroupFormat { return s.groups }

// MarkReady flags a successful compile. Backends call it from CreateShaderImpl.
func (s *Shader) MarkReady() { s.ready = true }

// Fail flags the shader as unusable and logs the reason.
func (s *Shader) Fail(err error) {
	s.failed = true
	s.err = err
	logger.Logger().Warn("shader failed", "shader", s.name, "error", err)
}

// Destroy releases the backend program.
func (s *Shader) Destroy() {
	if s.impl != nil {
		s.impl.Destroy()
		s.impl = nil
	}
}
