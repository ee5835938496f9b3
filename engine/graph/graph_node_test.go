package graph

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-4

func assertVecNear(t *testing.T, want, got mgl32.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], eps, "component %d of %v vs %v", i, want, got)
	}
}

func TestWorldTransformComposesParent(t *testing.T) {
	root := NewGraphNode(WithName("root"), WithLocalPosition(mgl32.Vec3{1, 0, 0}), WithUniformScale(2))
	child := NewGraphNode(WithName("child"), WithLocalPosition(mgl32.Vec3{0, 3, 0}), WithParent(root))

	want := root.WorldTransform().Mul4(child.LocalTransform())
	got := child.WorldTransform()
	assert.True(t, want.ApproxEqualThreshold(got, eps))
	assertVecNear(t, mgl32.Vec3{1, 6, 0}, child.Position())
	assert.Equal(t, 1, child.GraphDepth())
}

func TestWorldTransformIsCached(t *testing.T) {
	node := NewGraphNode(WithLocalPosition(mgl32.Vec3{1, 2, 3}))

	node.WorldTransform()
	n := node.WorldRecomputes()
	node.WorldTransform()
	assert.Equal(t, n, node.WorldRecomputes())

	node.SetLocalPosition(mgl32.Vec3{4, 5, 6})
	assert.True(t, node.Dirty())
	node.WorldTransform()
	assert.Equal(t, n+1, node.WorldRecomputes())
}

func TestParentMovePropagatesToDescendants(t *testing.T) {
	root := NewGraphNode()
	mid := NewGraphNode(WithLocalPosition(mgl32.Vec3{0, 1, 0}), WithParent(root))
	leaf := NewGraphNode(WithLocalPosition(mgl32.Vec3{0, 0, 1}), WithParent(mid))
	root.SyncHierarchy()

	ver := leaf.AabbVer()
	root.SetLocalPosition(mgl32.Vec3{10, 0, 0})

	assert.True(t, leaf.Dirty())
	assert.Greater(t, leaf.AabbVer(), ver)
	assertVecNear(t, mgl32.Vec3{10, 1, 1}, leaf.Position())
}

func TestSyncHierarchySkipsFrozenSubtrees(t *testing.T) {
	root := NewGraphNode(WithName("root"))
	a := NewGraphNode(WithName("a"), WithParent(root))
	b := NewGraphNode(WithName("b"), WithParent(root))
	leaf := NewGraphNode(WithName("leaf"), WithParent(a))

	root.SyncHierarchy()
	for _, n := range []GraphNode{root, a, b, leaf} {
		assert.True(t, n.Frozen(), n.Name())
		assert.False(t, n.Dirty(), n.Name())
	}

	before := map[string]uint64{}
	root.ForEach(func(n GraphNode) { before[n.Name()] = n.WorldRecomputes() })

	root.SyncHierarchy()
	root.ForEach(func(n GraphNode) { assert.Equal(t, before[n.Name()], n.WorldRecomputes(), n.Name()) })

	leaf.SetLocalPosition(mgl32.Vec3{0, 0, 5})
	assert.False(t, root.Frozen())
	assert.False(t, a.Frozen())
	assert.True(t, b.Frozen())

	root.SyncHierarchy()
	assert.Equal(t, before["leaf"]+1, leaf.WorldRecomputes())
	assert.Equal(t, before["a"], a.WorldRecomputes())
	assert.Equal(t, before["b"], b.WorldRecomputes())
	assertVecNear(t, mgl32.Vec3{0, 0, 5}, leaf.Position())
}

func TestSyncHierarchySkipsDisabledNodes(t *testing.T) {
	root := NewGraphNode()
	child := NewGraphNode(WithEnabled(false), WithLocalPosition(mgl32.Vec3{1, 0, 0}), WithParent(root))

	root.SyncHierarchy()
	assert.True(t, child.Dirty())
	assert.False(t, child.EnabledInHierarchy())

	child.SetEnabled(true)
	assert.False(t, root.Frozen())
	root.SyncHierarchy()
	assert.False(t, child.Dirty())
}

func TestEnabledInHierarchyFollowsAncestors(t *testing.T) {
	root := NewGraphNode()
	mid := NewGraphNode(WithParent(root))
	leaf := NewGraphNode(WithParent(mid))

	root.SetEnabled(false)
	assert.False(t, mid.EnabledInHierarchy())
	assert.False(t, leaf.EnabledInHierarchy())
	assert.True(t, leaf.Enabled())

	mid.SetEnabled(false)
	root.SetEnabled(true)
	assert.False(t, leaf.EnabledInHierarchy())

	mid.SetEnabled(true)
	assert.True(t, leaf.EnabledInHierarchy())
}

func TestScaleCompensationChain(t *testing.T) {
	root := NewGraphNode(WithName("R"))
	g := NewGraphNode(WithName("G"), WithUniformScale(2), WithParent(root))
	p := NewGraphNode(WithName("P"), WithScaleCompensation(), WithLocalPosition(mgl32.Vec3{2.5, 0, 0}),
		WithUniformScale(3), WithParent(g))
	c := NewGraphNode(WithName("C"), WithScaleCompensation(), WithLocalPosition(mgl32.Vec3{1, 0, 0}), WithParent(p))

	root.SyncHierarchy()

	assertVecNear(t, mgl32.Vec3{5, 0, 0}, p.Position())
	assertVecNear(t, mgl32.Vec3{3, 3, 3}, p.WorldScale())
	assertVecNear(t, mgl32.Vec3{8, 0, 0}, c.Position())
	assertVecNear(t, mgl32.Vec3{1, 1, 1}, c.WorldScale())
}

func TestReparentSyncedNodeUnderScaleCompensatedParent(t *testing.T) {
	root := NewGraphNode(WithName("R"))
	g := NewGraphNode(WithName("G"), WithUniformScale(2), WithParent(root))
	p := NewGraphNode(WithName("P"), WithScaleCompensation(), WithLocalPosition(mgl32.Vec3{1, 0, 0}),
		WithLocalEulerAngles(0, 90, 0), WithUniformScale(3), WithParent(g))
	n := NewGraphNode(WithName("N"), WithScaleCompensation(), WithLocalPosition(mgl32.Vec3{0, 0, -1}), WithParent(root))

	root.SyncHierarchy()
	assertVecNear(t, mgl32.Vec3{0, 0, -1}, n.Position())
	assertVecNear(t, mgl32.Vec3{1, 1, 1}, n.WorldScale())

	n.Reparent(p, 0)
	root.SyncHierarchy()

	// G's scale is excluded, P's own position, rotation and scale still place the node
	assertVecNear(t, mgl32.Vec3{2, 0, 0}, p.Position())
	assertVecNear(t, mgl32.Vec3{1, 1, 1}, n.WorldScale())
	assertVecNear(t, mgl32.Vec3{-1, 0, 0}, n.Position())
	assert.InDelta(t, 1, mgl32.Abs(n.Rotation().Dot(p.Rotation())), eps)
}

func TestScaleCompensationKeepsParentRotation(t *testing.T) {
	parent := NewGraphNode(WithLocalEulerAngles(0, 90, 0), WithUniformScale(4))
	child := NewGraphNode(WithScaleCompensation(), WithLocalPosition(mgl32.Vec3{1, 0, 0}), WithParent(parent))

	assertVecNear(t, mgl32.Vec3{1, 1, 1}, child.WorldScale())
	assertVecNear(t, mgl32.Vec3{0, 0, -4}, child.Position())
	assert.InDelta(t, 1, child.Rotation().Dot(parent.Rotation())*child.Rotation().Dot(parent.Rotation()), eps)
}

func TestWorldSettersRoundTrip(t *testing.T) {
	parent := NewGraphNode(WithLocalPosition(mgl32.Vec3{3, 0, 0}), WithLocalEulerAngles(0, 45, 0), WithUniformScale(2))
	child := NewGraphNode(WithParent(parent))

	child.SetPosition(mgl32.Vec3{1, 2, 3})
	assertVecNear(t, mgl32.Vec3{1, 2, 3}, child.Position())

	q := mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{1, 0, 0})
	child.SetRotation(q)
	got := child.Rotation()
	assert.InDelta(t, 1, mgl32.Abs(got.Dot(q)), eps)
}

func TestWorldScaleSign(t *testing.T) {
	node := NewGraphNode(WithLocalScale(mgl32.Vec3{-1, 1, 1}))
	assert.Equal(t, float32(-1), node.WorldScaleSign())

	node.SetLocalScale(mgl32.Vec3{-1, -1, 1})
	assert.Equal(t, float32(1), node.WorldScaleSign())
}

func TestForwardFollowsRotation(t *testing.T) {
	node := NewGraphNode()
	assertVecNear(t, mgl32.Vec3{0, 0, -1}, node.Forward())

	node.LookAt(mgl32.Vec3{5, 0, 0}, mgl32.Vec3{0, 1, 0})
	assertVecNear(t, mgl32.Vec3{1, 0, 0}, node.Forward())
	assertVecNear(t, mgl32.Vec3{0, 1, 0}, node.Up())
}

func TestTranslateLocalUsesLocalAxes(t *testing.T) {
	node := NewGraphNode(WithLocalEulerAngles(0, 90, 0))
	node.TranslateLocal(mgl32.Vec3{0, 0, -1})
	assertVecNear(t, mgl32.Vec3{-1, 0, 0}, node.LocalPosition())
}

func TestReparentRejectsCycles(t *testing.T) {
	root := NewGraphNode(WithName("root"))
	child := NewGraphNode(WithName("child"), WithParent(root))
	grandchild := NewGraphNode(WithName("grandchild"), WithParent(child))

	root.Reparent(grandchild, 0)
	assert.Nil(t, root.Parent())
	assert.Len(t, grandchild.Children(), 0)

	child.AddChild(child)
	assert.Equal(t, root, child.Parent())
}

func TestReparentMovesChild(t *testing.T) {
	a := NewGraphNode(WithName("a"), WithLocalPosition(mgl32.Vec3{1, 0, 0}))
	b := NewGraphNode(WithName("b"), WithLocalPosition(mgl32.Vec3{0, 1, 0}))
	first := NewGraphNode(WithName("first"), WithParent(b))
	child := NewGraphNode(WithName("child"), WithParent(a))

	child.Reparent(b, 0)
	assert.Empty(t, a.Children())
	require.Len(t, b.Children(), 2)
	assert.Equal(t, child, b.Children()[0])
	assert.Equal(t, first, b.Children()[1])
	assertVecNear(t, mgl32.Vec3{0, 1, 0}, child.Position())

	child.Reparent(nil, 0)
	assert.Nil(t, child.Parent())
	assert.Equal(t, 0, child.GraphDepth())
	assertVecNear(t, mgl32.Vec3{0, 0, 0}, child.Position())
}

func TestInsertIntoFrozenParentStillSyncs(t *testing.T) {
	root := NewGraphNode()
	root.SyncHierarchy()
	require.True(t, root.Frozen())

	child := NewGraphNode(WithLocalPosition(mgl32.Vec3{0, 2, 0}))
	child.WorldTransform()
	child.SetLocalPosition(mgl32.Vec3{0, 3, 0})
	root.AddChild(child)

	root.SyncHierarchy()
	assert.False(t, child.Dirty())
	assertVecNear(t, mgl32.Vec3{0, 3, 0}, child.Position())
}

func TestDestroyDetachesDescendants(t *testing.T) {
	root := NewGraphNode(WithName("root"))
	mid := NewGraphNode(WithName("mid"), WithParent(root))
	leaf := NewGraphNode(WithName("leaf"), WithParent(mid))

	mid.Destroy()
	assert.True(t, mid.Destroyed())
	assert.True(t, leaf.Destroyed())
	assert.Nil(t, leaf.Parent())
	assert.Empty(t, root.Children())

	assert.NotPanics(t, mid.Destroy)
	root.AddChild(mid)
	assert.Empty(t, root.Children())
}

func TestFindAndTags(t *testing.T) {
	root := NewGraphNode(WithName("root"))
	NewGraphNode(WithName("a"), WithTags("enemy"), WithParent(root))
	b := NewGraphNode(WithName("b"), WithParent(root))
	c := NewGraphNode(WithName("c"), WithTags("enemy"), WithParent(b))

	assert.Equal(t, c, root.FindByName("c"))
	assert.Nil(t, root.FindByName("missing"))
	enemies := root.Find(func(n GraphNode) bool { return n.HasTag("enemy") })
	assert.Len(t, enemies, 2)
	assert.True(t, c.IsDescendantOf(root))
	assert.False(t, root.IsDescendantOf(c))
	assert.Equal(t, root, c.Root())
}
