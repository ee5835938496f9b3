package mesh_instance

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/model"
)

// MeshInstanceBuilderOption is a function that configures a mesh instance during construction.
type MeshInstanceBuilderOption func(*MeshInstance)

// WithName is an option builder that sets the debug name of the mesh instance.
func WithName(name string) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.name = name
	}
}

// WithCastShadow is an option builder that sets whether the instance renders into shadow maps.
//
// Parameters:
//   - cast: true to cast shadows
//
// Returns:
//   - MeshInstanceBuilderOption: a function that applies the option to a mesh instance
func WithCastShadow(cast bool) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.castShadow = cast
	}
}

// WithReceiveShadow is an option builder that sets whether the instance samples shadow maps.
func WithReceiveShadow(receive bool) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.receiveShadow = receive
	}
}

// WithCull is an option builder that sets whether the instance is frustum culled.
func WithCull(cull bool) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.cull = cull
	}
}

// WithDrawOrder is an option builder that sets the explicit draw order used by manual sorting.
func WithDrawOrder(order int) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.drawOrder = order
	}
}

// WithMask is an option builder that sets the light mask bits.
func WithMask(mask uint32) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.mask = mask
	}
}

// WithRenderStyle is an option builder that selects solid, wireframe or point topology.
func WithRenderStyle(style model.RenderStyle) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.renderStyle = style
	}
}

// WithCustomAabb is an option builder that overrides the mesh bounds with a box in local space.
//
// Parameters:
//   - aabb: the local bounds
//
// Returns:
//   - MeshInstanceBuilderOption: a function that applies the option to a mesh instance
func WithCustomAabb(aabb common.BoundingBox) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.customAabb = &aabb
	}
}

// WithSkinInstance is an option builder that attaches skinning state.
func WithSkinInstance(si *model.SkinInstance) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.skinInstance = si
	}
}

// WithMorphInstance is an option builder that attaches morph weights.
func WithMorphInstance(morph *model.MorphInstance) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.morphInstance = morph
	}
}

// WithStatic is an option builder that marks the instance as never moving.
func WithStatic(static bool) MeshInstanceBuilderOption {
	return func(mi *MeshInstance) {
		mi.isStatic = static
	}
}
