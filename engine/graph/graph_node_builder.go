package graph

import (
	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/go-gl/mathgl/mgl32"
)

// GraphNodeBuilderOption is a functional option for configuring a GraphNode at construction.
type GraphNodeBuilderOption func(*graphNode)

// WithName sets the node name.
func WithName(name string) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.name = name
	}
}

// WithLocalPosition sets the initial local position.
func WithLocalPosition(p mgl32.Vec3) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.SetLocalPosition(p)
	}
}

// WithLocalRotation sets the initial local rotation.
func WithLocalRotation(q mgl32.Quat) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.SetLocalRotation(q)
	}
}

// WithLocalEulerAngles sets the initial local rotation from Euler angles in degrees.
func WithLocalEulerAngles(x, y, z float32) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.SetLocalEulerAngles(x, y, z)
	}
}

// WithLocalScale sets the initial local scale.
func WithLocalScale(s mgl32.Vec3) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.SetLocalScale(s)
	}
}

// WithUniformScale sets the same local scale on all three axes.
func WithUniformScale(s float32) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.SetLocalScale(common.Vec3One.Mul(s))
	}
}

// WithScaleCompensation turns on scale compensation.
func WithScaleCompensation() GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.SetScaleCompensation(true)
	}
}

// WithEnabled sets the initial enabled state.
func WithEnabled(enabled bool) GraphNodeBuilderOption {
	return func(n *graphNode) {
		n.enabled = enabled
		n.enabledInHierarchy = enabled
	}
}

// WithTags attaches tags to the node.
func WithTags(tags ...string) GraphNodeBuilderOption {
	return func(n *graphNode) {
		for _, t := range tags {
			n.AddTag(t)
		}
	}
}

// WithParent attaches the node to parent as its last child.
// It should be the last option so the node is complete when inserted.
func WithParent(parent GraphNode) GraphNodeBuilderOption {
	return func(n *graphNode) {
		if parent != nil {
			parent.AddChild(n)
		}
	}
}
