package light

import (
	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/gpu"
	"github.com/go-gl/mathgl/mgl32"
)

// Caster is a drawable collected into a shadow pass.
type Caster interface {
	CastShadow() bool
}

// LightRenderData is the shadow state of one (camera, face) pair of a light. Local lights use a
// nil camera; directional lights keep one entry per viewing camera and cascade.
type LightRenderData struct {
	Camera camera.Camera
	Face   int

	// ShadowCamera renders the shadow; its render target is the face's shadow map target.
	ShadowCamera camera.Camera

	// ShadowMatrix maps world positions to shadow map texture coordinates and depth.
	ShadowMatrix mgl32.Mat4

	// ShadowViewport and ShadowScissor are in pixels of the shadow map target.
	ShadowViewport mgl32.Vec4
	ShadowScissor  mgl32.Vec4

	// DepthRangeCompensation rescales VSM depth when the cascade depth range changes.
	DepthRangeCompensation float32

	VisibleCasters []Caster
	ViewBindGroups []*gpu.BindGroup
}

func (rd *LightRenderData) destroy() {
	for _, bg := range rd.ViewBindGroups {
		if ub := bg.DefaultUniformBuffer(); ub != nil {
			ub.Destroy()
		}
		bg.Destroy()
	}
	rd.ViewBindGroups = nil
	rd.VisibleCasters = nil
}

// GetRenderData returns the render data of (cam, face), creating it with a shadow camera on first
// use. At most one entry exists per pair.
//
// Parameters:
//   - cam: the viewing camera for directional lights, nil for local lights
//   - face: the cascade or cube face index
//
// Returns:
//   - *LightRenderData: the render data
func (l *Light) GetRenderData(cam camera.Camera, face int) *LightRenderData {
	for _, rd := range l.renderData {
		if rd.Camera == cam && rd.Face == face {
			return rd
		}
	}
	rd := &LightRenderData{
		Camera:                 cam,
		Face:                   face,
		ShadowCamera:           l.newShadowCamera(),
		ShadowMatrix:           mgl32.Ident4(),
		DepthRangeCompensation: 1,
	}
	l.renderData = append(l.renderData, rd)
	return rd
}

// RemoveRenderData drops every entry belonging to cam, used when a camera is removed.
func (l *Light) RemoveRenderData(cam camera.Camera) {
	kept := l.renderData[:0]
	for _, rd := range l.renderData {
		if rd.Camera == cam {
			rd.destroy()
			continue
		}
		kept = append(kept, rd)
	}
	clear(l.renderData[len(kept):])
	l.renderData = kept
}

func (l *Light) newShadowCamera() camera.Camera {
	opts := []camera.CameraBuilderOption{
		camera.WithClearColor(mgl32.Vec4{1, 1, 1, 1}),
		camera.WithClearFlags(true, true, false),
		camera.WithAspect(1),
	}
	switch l.lightType {
	case LightTypeDirectional:
		opts = append(opts, camera.WithProjection(camera.ProjectionOrthographic))
	case LightTypeOmni:
		opts = append(opts, camera.WithFov(90))
	case LightTypeSpot:
		opts = append(opts, camera.WithFov(l.outerConeAngle*2))
	}
	return camera.NewCamera(opts...)
}
