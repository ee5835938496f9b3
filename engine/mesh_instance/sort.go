package mesh_instance

import "cmp"

// Compare orders two draws for submission.
//
// An explicit draw order on both sides wins outright, so equal draw orders compare as unordered
// and keep their submission order under a stable sort. Otherwise both sides carrying a back-to-front
// distance sort far to near, and both sides carrying a front-to-back distance sort near to far. The
// remaining draws fall back to the packed sort key, highest first, so opaque draws precede
// transparent ones of the same layer and draws sharing a material land next to each other.
//
// Parameters:
//   - a: the first draw
//   - b: the second draw
//
// Returns:
//   - int: negative when a draws first, positive when b draws first, zero when unordered
func Compare(a, b *MeshInstance) int {
	if a.drawOrder != 0 && b.drawOrder != 0 {
		return cmp.Compare(a.drawOrder, b.drawOrder)
	}
	if a.zdist != 0 && b.zdist != 0 {
		return cmp.Compare(b.zdist, a.zdist)
	}
	if a.zdist2 != 0 && b.zdist2 != 0 {
		return cmp.Compare(a.zdist2, b.zdist2)
	}
	return cmp.Compare(b.key, a.key)
}
