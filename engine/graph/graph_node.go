package graph

import (
	"slices"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/go-gl/mathgl/mgl32"
)

// GraphNode is a node in the scene hierarchy holding a local transform and a lazily computed
// world transform.
//
// Local setters only mark the node dirty; the world matrix is rebuilt on demand by WorldTransform
// or in bulk by SyncHierarchy. Dirtiness propagates to every descendant and unfreezes every
// ancestor, so a subtree whose root is frozen is known to be clean and can be skipped.
//
// GraphNode is not safe for concurrent use; the hierarchy is owned by the frame-driving goroutine.
type GraphNode interface {
	// Name returns the node name.
	//
	// Returns:
	//   - string: the name
	Name() string

	// SetName renames the node.
	//
	// Parameters:
	//   - name: the new name
	SetName(name string)

	// Parent returns the parent node, or nil for a root.
	//
	// Returns:
	//   - GraphNode: the parent or nil
	Parent() GraphNode

	// Children returns a copy of the child list in order.
	//
	// Returns:
	//   - []GraphNode: the children
	Children() []GraphNode

	// Root walks up to the topmost ancestor (the node itself when it has no parent).
	//
	// Returns:
	//   - GraphNode: the root node
	Root() GraphNode

	// GraphDepth returns the number of ancestors above this node.
	//
	// Returns:
	//   - int: 0 for a root
	GraphDepth() int

	// IsDescendantOf reports whether node is a strict ancestor of this node.
	//
	// Parameters:
	//   - node: the candidate ancestor
	//
	// Returns:
	//   - bool: true if node is above this node in the hierarchy
	IsDescendantOf(node GraphNode) bool

	// FindByName searches this node and its descendants depth-first for a node with the given name.
	//
	// Parameters:
	//   - name: the name to search for
	//
	// Returns:
	//   - GraphNode: the first match, or nil
	FindByName(name string) GraphNode

	// Find returns every node in this subtree (including this node) accepted by pred.
	//
	// Parameters:
	//   - pred: the filter
	//
	// Returns:
	//   - []GraphNode: matching nodes in depth-first order
	Find(pred func(GraphNode) bool) []GraphNode

	// ForEach calls fn for this node and every descendant, depth-first.
	//
	// Parameters:
	//   - fn: the visitor
	ForEach(fn func(GraphNode))

	// AddTag attaches a tag to the node.
	//
	// Parameters:
	//   - tag: the tag to add
	AddTag(tag string)

	// HasTag reports whether the node carries tag.
	//
	// Parameters:
	//   - tag: the tag to test
	//
	// Returns:
	//   - bool: true if present
	HasTag(tag string) bool

	// AddChild appends child to this node, detaching it from its previous parent first.
	// Adding the node to itself or to one of its descendants is rejected and logged.
	//
	// Parameters:
	//   - child: the node to attach
	AddChild(child GraphNode)

	// InsertChild inserts child at index (clamped to the child count), detaching it first.
	//
	// Parameters:
	//   - child: the node to attach
	//   - index: the position in the child list
	InsertChild(child GraphNode, index int)

	// RemoveChild detaches child from this node. The child keeps its local transform and becomes a root.
	//
	// Parameters:
	//   - child: the node to detach
	RemoveChild(child GraphNode)

	// Reparent moves this node under parent at index. A nil parent only detaches the node.
	//
	// Parameters:
	//   - parent: the new parent or nil
	//   - index: the position in the new parent's child list
	Reparent(parent GraphNode, index int)

	// Destroy detaches and destroys every descendant, then removes this node from its parent.
	// Destroying a node twice is logged and ignored.
	Destroy()

	// Destroyed reports whether Destroy has been called.
	//
	// Returns:
	//   - bool: true after Destroy
	Destroyed() bool

	// Enabled returns the node's own enabled flag.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled toggles the node and propagates the effective state to its descendants.
	//
	// Parameters:
	//   - enabled: the new state
	SetEnabled(enabled bool)

	// EnabledInHierarchy reports whether this node and all of its ancestors are enabled.
	//
	// Returns:
	//   - bool: the effective enabled state
	EnabledInHierarchy() bool

	// ScaleCompensation reports whether the node ignores the scale of its parent.
	//
	// Returns:
	//   - bool: true if scale compensation is on
	ScaleCompensation() bool

	// SetScaleCompensation enables or disables scale compensation. When enabled, the node's world
	// scale skips the parent's accumulated scale while still inheriting its position and rotation.
	//
	// Parameters:
	//   - enabled: the new state
	SetScaleCompensation(enabled bool)

	// LocalPosition returns the translation relative to the parent.
	//
	// Returns:
	//   - mgl32.Vec3: the local position
	LocalPosition() mgl32.Vec3

	// SetLocalPosition sets the translation relative to the parent and marks the node dirty.
	//
	// Parameters:
	//   - p: the new local position
	SetLocalPosition(p mgl32.Vec3)

	// LocalRotation returns the rotation relative to the parent.
	//
	// Returns:
	//   - mgl32.Quat: the local rotation
	LocalRotation() mgl32.Quat

	// SetLocalRotation sets the rotation relative to the parent and marks the node dirty.
	//
	// Parameters:
	//   - q: the new local rotation
	SetLocalRotation(q mgl32.Quat)

	// LocalEulerAngles returns the local rotation as Euler angles in degrees.
	//
	// Returns:
	//   - mgl32.Vec3: rotation about x, y and z
	LocalEulerAngles() mgl32.Vec3

	// SetLocalEulerAngles sets the local rotation from Euler angles in degrees.
	//
	// Parameters:
	//   - x, y, z: rotation about each axis
	SetLocalEulerAngles(x, y, z float32)

	// LocalScale returns the scale relative to the parent.
	//
	// Returns:
	//   - mgl32.Vec3: the local scale
	LocalScale() mgl32.Vec3

	// SetLocalScale sets the scale relative to the parent and marks the node dirty.
	//
	// Parameters:
	//   - s: the new local scale
	SetLocalScale(s mgl32.Vec3)

	// LocalTransform returns the local matrix, rebuilding it from TRS when dirty.
	//
	// Returns:
	//   - mgl32.Mat4: the local transform
	LocalTransform() mgl32.Mat4

	// WorldTransform returns the world matrix, resolving ancestors first. The result is cached
	// until the node or an ancestor is next dirtied.
	//
	// Returns:
	//   - mgl32.Mat4: the world transform
	WorldTransform() mgl32.Mat4

	// Position returns the world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the world position
	Position() mgl32.Vec3

	// SetPosition moves the node so that its world-space position equals p.
	//
	// Parameters:
	//   - p: the world position
	SetPosition(p mgl32.Vec3)

	// Rotation returns the world-space rotation.
	//
	// Returns:
	//   - mgl32.Quat: the world rotation
	Rotation() mgl32.Quat

	// SetRotation rotates the node so that its world-space rotation equals q.
	//
	// Parameters:
	//   - q: the world rotation
	SetRotation(q mgl32.Quat)

	// EulerAngles returns the world rotation as Euler angles in degrees.
	//
	// Returns:
	//   - mgl32.Vec3: rotation about x, y and z
	EulerAngles() mgl32.Vec3

	// SetEulerAngles sets the world rotation from Euler angles in degrees.
	//
	// Parameters:
	//   - x, y, z: rotation about each axis
	SetEulerAngles(x, y, z float32)

	// WorldScale returns the world-space scale (always non-negative; see WorldScaleSign).
	//
	// Returns:
	//   - mgl32.Vec3: the world scale
	WorldScale() mgl32.Vec3

	// WorldScaleSign returns -1 when the world transform mirrors geometry, 1 otherwise.
	//
	// Returns:
	//   - float32: the sign of the world scale
	WorldScaleSign() float32

	// NormalMatrix returns the inverse-transpose of the world rotation-scale.
	//
	// Returns:
	//   - mgl32.Mat3: the normal matrix
	NormalMatrix() mgl32.Mat3

	// Forward returns the world-space -Z axis of the node, normalized.
	//
	// Returns:
	//   - mgl32.Vec3: the forward direction
	Forward() mgl32.Vec3

	// Up returns the world-space +Y axis of the node, normalized.
	//
	// Returns:
	//   - mgl32.Vec3: the up direction
	Up() mgl32.Vec3

	// Right returns the world-space +X axis of the node, normalized.
	//
	// Returns:
	//   - mgl32.Vec3: the right direction
	Right() mgl32.Vec3

	// Translate moves the node in world space.
	//
	// Parameters:
	//   - v: the world-space offset
	Translate(v mgl32.Vec3)

	// TranslateLocal moves the node along its own local axes.
	//
	// Parameters:
	//   - v: the offset in the node's rotated frame
	TranslateLocal(v mgl32.Vec3)

	// Rotate applies a world-space rotation given as Euler angles in degrees.
	//
	// Parameters:
	//   - x, y, z: rotation about each world axis
	Rotate(x, y, z float32)

	// RotateLocal applies a rotation in the node's local frame given as Euler angles in degrees.
	//
	// Parameters:
	//   - x, y, z: rotation about each local axis
	RotateLocal(x, y, z float32)

	// LookAt rotates the node so its forward axis points at target.
	//
	// Parameters:
	//   - target: the world-space point to face
	//   - up: the world-space up hint
	LookAt(target, up mgl32.Vec3)

	// SyncHierarchy recomputes world transforms for this subtree in one top-down pass.
	// Disabled nodes and frozen (already clean) subtrees are skipped.
	SyncHierarchy()

	// AabbVer returns a counter bumped every time the node's world transform is invalidated.
	// Consumers cache derived world-space data against it.
	//
	// Returns:
	//   - uint64: the current version
	AabbVer() uint64

	// WorldRecomputes returns how many times the world matrix has been rebuilt.
	//
	// Returns:
	//   - uint64: the recompute count
	WorldRecomputes() uint64

	// Dirty reports whether the local or world transform is pending a rebuild.
	//
	// Returns:
	//   - bool: true if dirty
	Dirty() bool

	// Frozen reports whether the node and its subtree were clean at the last SyncHierarchy.
	//
	// Returns:
	//   - bool: true if frozen
	Frozen() bool
}

// graphNode is the implementation of the GraphNode interface.
type graphNode struct {
	name string
	tags map[string]struct{}

	parent   *graphNode
	children []*graphNode

	localPosition mgl32.Vec3
	localRotation mgl32.Quat
	localScale    mgl32.Vec3

	localTransform mgl32.Mat4
	worldTransform mgl32.Mat4
	normalMatrix   mgl32.Mat3

	dirtyLocal  bool
	dirtyWorld  bool
	dirtyNormal bool
	frozen      bool

	enabled            bool
	enabledInHierarchy bool
	scaleCompensation  bool
	destroyed          bool

	graphDepth     int
	worldScaleSign float32
	aabbVer        uint64
	recomputes     uint64
}

var _ GraphNode = &graphNode{}

// NewGraphNode creates a detached, enabled node at the origin with identity rotation and unit scale.
//
// Parameters:
//   - options: functional options applied after the defaults
//
// Returns:
//   - GraphNode: the new node
func NewGraphNode(options ...GraphNodeBuilderOption) GraphNode {
	n := &graphNode{
		name:               "Untitled",
		localRotation:      mgl32.QuatIdent(),
		localScale:         common.Vec3One,
		localTransform:     mgl32.Ident4(),
		worldTransform:     mgl32.Ident4(),
		normalMatrix:       mgl32.Ident3(),
		enabled:            true,
		enabledInHierarchy: true,
	}
	for _, opt := range options {
		opt(n)
	}
	return n
}

// asNode unwraps a GraphNode created by this package. Foreign implementations are rejected.
func asNode(node GraphNode) *graphNode {
	if node == nil {
		return nil
	}
	n, ok := node.(*graphNode)
	if !logger.Assert(ok, "graph node of unknown implementation") {
		return nil
	}
	return n
}

func (n *graphNode) Name() string        { return n.name }
func (n *graphNode) SetName(name string) { n.name = name }
func (n *graphNode) GraphDepth() int     { return n.graphDepth }
func (n *graphNode) Destroyed() bool     { return n.destroyed }

func (n *graphNode) Parent() GraphNode {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *graphNode) Children() []GraphNode {
	out := make([]GraphNode, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *graphNode) Root() GraphNode {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (n *graphNode) IsDescendantOf(node GraphNode) bool {
	target := asNode(node)
	if target == nil {
		return false
	}
	for p := n.parent; p != nil; p = p.parent {
		if p == target {
			return true
		}
	}
	return false
}

func (n *graphNode) FindByName(name string) GraphNode {
	if n.name == name {
		return n
	}
	for _, c := range n.children {
		if found := c.FindByName(name); found != nil {
			return found
		}
	}
	return nil
}

func (n *graphNode) Find(pred func(GraphNode) bool) []GraphNode {
	var out []GraphNode
	n.ForEach(func(node GraphNode) {
		if pred(node) {
			out = append(out, node)
		}
	})
	return out
}

func (n *graphNode) ForEach(fn func(GraphNode)) {
	fn(n)
	for _, c := range n.children {
		c.ForEach(fn)
	}
}

func (n *graphNode) AddTag(tag string) {
	if n.tags == nil {
		n.tags = make(map[string]struct{})
	}
	n.tags[tag] = struct{}{}
}

func (n *graphNode) HasTag(tag string) bool {
	_, ok := n.tags[tag]
	return ok
}

func (n *graphNode) AddChild(child GraphNode) {
	n.InsertChild(child, len(n.children))
}

func (n *graphNode) InsertChild(child GraphNode, index int) {
	c := asNode(child)
	if c == nil || !n.prepareInsertChild(c) {
		return
	}
	index = common.Clamp(index, 0, len(n.children))
	n.children = slices.Insert(n.children, index, c)
	n.onInsertChild(c)
}

// prepareInsertChild validates the insertion and detaches c from its current parent.
func (n *graphNode) prepareInsertChild(c *graphNode) bool {
	if !logger.Assert(c != n, "graph node cannot be its own child", "node", n.name) {
		return false
	}
	if !logger.Assert(!n.isAncestorOrSelf(c), "graph node cannot be added under its own descendant",
		"node", c.name, "parent", n.name) {
		return false
	}
	if !logger.Assert(!c.destroyed && !n.destroyed, "graph node used after destroy", "node", c.name) {
		return false
	}
	if c.parent != nil {
		c.parent.detachChild(c)
	}
	return true
}

// isAncestorOrSelf reports whether c is n or one of n's ancestors.
func (n *graphNode) isAncestorOrSelf(c *graphNode) bool {
	for p := n; p != nil; p = p.parent {
		if p == c {
			return true
		}
	}
	return false
}

func (n *graphNode) onInsertChild(c *graphNode) {
	c.parent = n

	enabledInHierarchy := c.enabled && n.enabledInHierarchy
	if c.enabledInHierarchy != enabledInHierarchy {
		c.notifyHierarchyStateChanged(enabledInHierarchy)
	}
	c.updateGraphDepth()
	c.dirtifyWorld()

	// c may already have been dirty, in which case dirtifyWorld left the new ancestors frozen.
	if n.frozen {
		c.unfreezeParentToRoot()
	}
}

func (n *graphNode) RemoveChild(child GraphNode) {
	c := asNode(child)
	if c == nil || c.parent != n {
		return
	}
	n.detachChild(c)
}

// detachChild removes c from n's child list and turns it into a root.
func (n *graphNode) detachChild(c *graphNode) {
	idx := slices.Index(n.children, c)
	if idx < 0 {
		return
	}
	n.children = slices.Delete(n.children, idx, idx+1)
	c.parent = nil

	if c.enabledInHierarchy != c.enabled {
		c.notifyHierarchyStateChanged(c.enabled)
	}
	c.updateGraphDepth()
	c.dirtifyWorld()
}

func (n *graphNode) Reparent(parent GraphNode, index int) {
	if parent == nil {
		if n.parent != nil {
			n.parent.detachChild(n)
		}
		return
	}
	if p := asNode(parent); p != nil {
		p.InsertChild(n, index)
	}
}

func (n *graphNode) Destroy() {
	if !logger.Assert(!n.destroyed, "graph node destroyed twice", "node", n.name) {
		return
	}

	children := n.children
	n.children = nil
	for _, c := range children {
		c.parent = nil
		c.Destroy()
	}

	if n.parent != nil {
		n.parent.detachChild(n)
	}
	n.tags = nil
	n.destroyed = true
}

func (n *graphNode) updateGraphDepth() {
	if n.parent != nil {
		n.graphDepth = n.parent.graphDepth + 1
	} else {
		n.graphDepth = 0
	}
	for _, c := range n.children {
		c.updateGraphDepth()
	}
}

func (n *graphNode) Enabled() bool            { return n.enabled }
func (n *graphNode) EnabledInHierarchy() bool { return n.enabledInHierarchy }

func (n *graphNode) SetEnabled(enabled bool) {
	if n.enabled == enabled {
		return
	}
	n.enabled = enabled
	if !enabled || n.parent == nil || n.parent.enabledInHierarchy {
		n.notifyHierarchyStateChanged(enabled)
	}
}

// notifyHierarchyStateChanged sets the effective state on n and every enabled descendant.
func (n *graphNode) notifyHierarchyStateChanged(enabled bool) {
	n.enabledInHierarchy = enabled
	if enabled && !n.frozen {
		// The subtree may have been skipped by syncs while disabled.
		n.unfreezeParentToRoot()
	}
	for _, c := range n.children {
		if c.enabled {
			c.notifyHierarchyStateChanged(enabled)
		}
	}
}

func (n *graphNode) ScaleCompensation() bool { return n.scaleCompensation }

func (n *graphNode) SetScaleCompensation(enabled bool) {
	if n.scaleCompensation == enabled {
		return
	}
	n.scaleCompensation = enabled
	n.dirtifyWorld()
}

func (n *graphNode) LocalPosition() mgl32.Vec3 { return n.localPosition }
func (n *graphNode) LocalRotation() mgl32.Quat { return n.localRotation }
func (n *graphNode) LocalScale() mgl32.Vec3    { return n.localScale }

func (n *graphNode) LocalEulerAngles() mgl32.Vec3 {
	return common.QuatToEuler(n.localRotation)
}

// Local setters intentionally skip value-equality checks.

func (n *graphNode) SetLocalPosition(p mgl32.Vec3) {
	n.localPosition = p
	n.dirtifyLocal()
}

func (n *graphNode) SetLocalRotation(q mgl32.Quat) {
	n.localRotation = q.Normalize()
	n.dirtifyLocal()
}

func (n *graphNode) SetLocalEulerAngles(x, y, z float32) {
	n.localRotation = common.EulerToQuat(x, y, z)
	n.dirtifyLocal()
}

func (n *graphNode) SetLocalScale(s mgl32.Vec3) {
	n.localScale = s
	n.dirtifyLocal()
}

func (n *graphNode) LocalTransform() mgl32.Mat4 {
	if n.dirtyLocal {
		n.localTransform = common.ComposeTRS(n.localPosition, n.localRotation, n.localScale)
		n.dirtyLocal = false
	}
	return n.localTransform
}

func (n *graphNode) WorldTransform() mgl32.Mat4 {
	if !n.dirtyLocal && !n.dirtyWorld {
		return n.worldTransform
	}
	if n.parent != nil {
		n.parent.WorldTransform()
	}
	n.sync()
	return n.worldTransform
}

func (n *graphNode) Position() mgl32.Vec3 {
	return common.TranslationOf(n.WorldTransform())
}

func (n *graphNode) SetPosition(p mgl32.Vec3) {
	if n.parent == nil {
		n.localPosition = p
	} else {
		inv := n.parent.WorldTransform().Inv()
		n.localPosition = common.TransformPoint(inv, p)
	}
	n.dirtifyLocal()
}

func (n *graphNode) Rotation() mgl32.Quat {
	return common.RotationOf(n.WorldTransform())
}

func (n *graphNode) SetRotation(q mgl32.Quat) {
	if n.parent == nil {
		n.localRotation = q.Normalize()
	} else {
		parentRot := n.parent.Rotation()
		n.localRotation = parentRot.Inverse().Mul(q).Normalize()
	}
	n.dirtifyLocal()
}

func (n *graphNode) EulerAngles() mgl32.Vec3 {
	return common.EulerFromMat4(n.WorldTransform())
}

func (n *graphNode) SetEulerAngles(x, y, z float32) {
	n.SetRotation(common.EulerToQuat(x, y, z))
}

func (n *graphNode) WorldScale() mgl32.Vec3 {
	return common.ScaleOf(n.WorldTransform())
}

func (n *graphNode) WorldScaleSign() float32 {
	if n.worldScaleSign == 0 {
		n.worldScaleSign = common.ScaleSign(n.WorldTransform())
	}
	return n.worldScaleSign
}

func (n *graphNode) NormalMatrix() mgl32.Mat3 {
	world := n.WorldTransform()
	if n.dirtyNormal {
		n.normalMatrix = common.NormalMatrix(world)
		n.dirtyNormal = false
	}
	return n.normalMatrix
}

func (n *graphNode) Forward() mgl32.Vec3 {
	return n.WorldTransform().Col(2).Vec3().Mul(-1).Normalize()
}

func (n *graphNode) Up() mgl32.Vec3 {
	return n.WorldTransform().Col(1).Vec3().Normalize()
}

func (n *graphNode) Right() mgl32.Vec3 {
	return n.WorldTransform().Col(0).Vec3().Normalize()
}

func (n *graphNode) Translate(v mgl32.Vec3) {
	n.SetPosition(n.Position().Add(v))
}

func (n *graphNode) TranslateLocal(v mgl32.Vec3) {
	n.localPosition = n.localPosition.Add(n.localRotation.Rotate(v))
	n.dirtifyLocal()
}

func (n *graphNode) Rotate(x, y, z float32) {
	n.SetRotation(common.EulerToQuat(x, y, z).Mul(n.Rotation()))
}

func (n *graphNode) RotateLocal(x, y, z float32) {
	n.localRotation = n.localRotation.Mul(common.EulerToQuat(x, y, z)).Normalize()
	n.dirtifyLocal()
}

func (n *graphNode) LookAt(target, up mgl32.Vec3) {
	n.SetRotation(common.LookRotation(target.Sub(n.Position()), up))
}

func (n *graphNode) SyncHierarchy() {
	if n.parent != nil && (n.parent.dirtyLocal || n.parent.dirtyWorld) {
		n.parent.WorldTransform()
	}
	n.syncHierarchy()
}

func (n *graphNode) syncHierarchy() {
	if !n.enabled || n.frozen {
		return
	}
	n.frozen = true

	if n.dirtyLocal || n.dirtyWorld {
		n.sync()
	}
	for _, c := range n.children {
		c.syncHierarchy()
	}
}

func (n *graphNode) AabbVer() uint64         { return n.aabbVer }
func (n *graphNode) WorldRecomputes() uint64 { return n.recomputes }
func (n *graphNode) Dirty() bool             { return n.dirtyLocal || n.dirtyWorld }
func (n *graphNode) Frozen() bool            { return n.frozen }

func (n *graphNode) dirtifyLocal() {
	if !n.dirtyLocal {
		n.dirtyLocal = true
		if !n.dirtyWorld {
			n.dirtifyWorld()
		}
	}
}

func (n *graphNode) dirtifyWorld() {
	if !n.dirtyWorld {
		n.unfreezeParentToRoot()
	}
	n.dirtifyWorldInternal()
}

// dirtifyWorldInternal marks n and its clean descendants world-dirty. A dirty node's descendants
// are always dirty already, so the walk stops there.
func (n *graphNode) dirtifyWorldInternal() {
	if !n.dirtyWorld {
		n.frozen = false
		n.dirtyWorld = true
		for _, c := range n.children {
			if !c.dirtyWorld {
				c.dirtifyWorldInternal()
			}
		}
	}
	n.dirtyNormal = true
	n.worldScaleSign = 0
	n.aabbVer++
}

func (n *graphNode) unfreezeParentToRoot() {
	for p := n.parent; p != nil; p = p.parent {
		p.frozen = false
	}
}

// sync rebuilds the local and world matrices. Ancestors must already be clean.
func (n *graphNode) sync() {
	n.LocalTransform()

	if !n.dirtyWorld {
		return
	}
	switch {
	case n.parent == nil:
		n.worldTransform = n.localTransform
	case n.scaleCompensation:
		n.worldTransform = n.scaleCompensatedWorld()
	default:
		n.worldTransform = n.parent.worldTransform.Mul4(n.localTransform)
	}
	n.dirtyWorld = false
	n.recomputes++
}

// scaleCompensatedWorld composes the world matrix from the parent's position and rotation while
// taking scale from the parent of the nearest non-compensated ancestor.
func (n *graphNode) scaleCompensatedWorld() mgl32.Mat4 {
	parent := n.parent
	scale := n.localScale

	var ancestorScale mgl32.Vec3
	hasAncestorScale := false

	p := parent
	for p != nil && p.scaleCompensation {
		p = p.parent
	}
	if p != nil && p.parent != nil {
		ancestorScale = common.ScaleOf(p.parent.worldTransform)
		hasAncestorScale = true
		scale = mulVec3(ancestorScale, n.localScale)
	}

	parentRot := common.RotationOf(parent.worldTransform)
	rot := parentRot.Mul(n.localRotation).Normalize()

	posTransform := parent.worldTransform
	if parent.scaleCompensation {
		parentScale := parent.localScale
		if hasAncestorScale {
			parentScale = mulVec3(ancestorScale, parent.localScale)
		}
		posTransform = common.ComposeTRS(common.TranslationOf(parent.worldTransform), parentRot, parentScale)
	}
	pos := common.TransformPoint(posTransform, n.localPosition)

	return common.ComposeTRS(pos, rot, scale)
}

func mulVec3(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}
