package common

import (
	"unsafe"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Matrices are column-major mgl32.Mat4 values throughout the engine (OpenGL/WebGPU convention).
// Projection matrices are produced for a [-1, 1] clip depth range; backends that expect [0, 1]
// apply ProjRangeFixMatrix when uniforms are dispatched.

var (
	// Vec3One is the unit scale vector.
	Vec3One = mgl32.Vec3{1, 1, 1}

	// FlipYMatrix mirrors clip-space Y, used when rendering into targets with a flipped origin.
	FlipYMatrix = mgl32.Scale3D(1, -1, 1)

	// ProjRangeFixMatrix remaps clip-space depth from [-1, 1] to [0, 1].
	ProjRangeFixMatrix = mgl32.Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), int(size)*len(data))
}

// ComposeTRS builds a column-major transform from a translation, a rotation quaternion and a scale.
// The result is equivalent to T * R * S.
//
// Parameters:
//   - pos: translation
//   - rot: rotation (expected to be normalized)
//   - scale: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed matrix
func ComposeTRS(pos mgl32.Vec3, rot mgl32.Quat, scale mgl32.Vec3) mgl32.Mat4 {
	x, y, z, w := rot.V[0], rot.V[1], rot.V[2], rot.W
	x2, y2, z2 := x+x, y+y, z+z
	xx, xy, xz := x*x2, x*y2, x*z2
	yy, yz, zz := y*y2, y*z2, z*z2
	wx, wy, wz := w*x2, w*y2, w*z2
	sx, sy, sz := scale[0], scale[1], scale[2]

	return mgl32.Mat4{
		(1 - (yy + zz)) * sx, (xy + wz) * sx, (xz - wy) * sx, 0,
		(xy - wz) * sy, (1 - (xx + zz)) * sy, (yz + wx) * sy, 0,
		(xz + wy) * sz, (yz - wx) * sz, (1 - (xx + yy)) * sz, 0,
		pos[0], pos[1], pos[2], 1,
	}
}

// TranslationOf returns the translation column of m.
func TranslationOf(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}

// ScaleOf returns the length of each basis column of m.
func ScaleOf(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{
		m.Col(0).Vec3().Len(),
		m.Col(1).Vec3().Len(),
		m.Col(2).Vec3().Len(),
	}
}

// RotationOf extracts the scale-free rotation of m as a quaternion.
// Degenerate (zero-scale) axes produce the identity rotation.
func RotationOf(m mgl32.Mat4) mgl32.Quat {
	s := ScaleOf(m)
	if s[0] == 0 || s[1] == 0 || s[2] == 0 {
		return mgl32.QuatIdent()
	}
	r := mgl32.Ident4()
	for c := 0; c < 3; c++ {
		inv := 1 / s[c]
		r[c*4+0] = m[c*4+0] * inv
		r[c*4+1] = m[c*4+1] * inv
		r[c*4+2] = m[c*4+2] * inv
	}
	return mgl32.Mat4ToQuat(r).Normalize()
}

// ScaleSign returns -1 when the basis of m is left-handed (negative determinant of the
// upper 3x3), and 1 otherwise.
func ScaleSign(m mgl32.Mat4) float32 {
	x := m.Col(0).Vec3()
	y := m.Col(1).Vec3()
	z := m.Col(2).Vec3()
	if x.Cross(y).Dot(z) < 0 {
		return -1
	}
	return 1
}

// TransformPoint transforms v by the affine matrix m (w = 1).
func TransformPoint(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(1)).Vec3()
}

// TransformVector transforms v by the affine matrix m ignoring translation (w = 0).
func TransformVector(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(0)).Vec3()
}

// EulerToQuat converts Euler angles in degrees to a quaternion.
// Rotation is applied about X first, then Y, then Z.
//
// Parameters:
//   - x, y, z: rotation angles in degrees
//
// Returns:
//   - mgl32.Quat: the combined rotation
func EulerToQuat(x, y, z float32) mgl32.Quat {
	qx := mgl32.QuatRotate(mgl32.DegToRad(x), mgl32.Vec3{1, 0, 0})
	qy := mgl32.QuatRotate(mgl32.DegToRad(y), mgl32.Vec3{0, 1, 0})
	qz := mgl32.QuatRotate(mgl32.DegToRad(z), mgl32.Vec3{0, 0, 1})
	return qz.Mul(qy).Mul(qx).Normalize()
}

// EulerFromMat4 extracts Euler angles in degrees from the rotation part of m, using the same
// X-then-Y-then-Z convention as EulerToQuat.
func EulerFromMat4(m mgl32.Mat4) mgl32.Vec3 {
	s := ScaleOf(m)
	if s[0] == 0 || s[1] == 0 || s[2] == 0 {
		return mgl32.Vec3{}
	}
	const halfPi = math32.Pi * 0.5
	y := math32.Asin(clampUnit(-m[2] / s[0]))
	var x, z float32
	switch {
	case y < halfPi && y > -halfPi:
		x = math32.Atan2(m[6]/s[1], m[10]/s[2])
		z = math32.Atan2(m[1]/s[0], m[0]/s[0])
	case y <= -halfPi:
		x = -math32.Atan2(m[4]/s[1], m[5]/s[1])
	default:
		x = math32.Atan2(m[4]/s[1], m[5]/s[1])
	}
	return mgl32.Vec3{mgl32.RadToDeg(x), mgl32.RadToDeg(y), mgl32.RadToDeg(z)}
}

// QuatToEuler converts q to Euler angles in degrees.
func QuatToEuler(q mgl32.Quat) mgl32.Vec3 {
	return EulerFromMat4(q.Mat4())
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m, used to transform normals.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	m3 := m.Mat3()
	if m3.Det() == 0 {
		return mgl32.Ident3()
	}
	return m3.Inv().Transpose()
}

// ViewportMatrix maps clip-space x/y from [-1, 1] onto the rectangle (x, y, w, h) expressed in
// normalized texture coordinates, and depth from [-1, 1] onto [0, 1].
// Used to turn a shadow camera's view-projection into a shadow-map lookup matrix.
func ViewportMatrix(x, y, w, h float32) mgl32.Mat4 {
	return mgl32.Mat4{
		w * 0.5, 0, 0, 0,
		0, h * 0.5, 0, 0,
		0, 0, 0.5, 0,
		x + w*0.5, y + h*0.5, 0.5, 1,
	}
}

// Perspective builds a perspective projection from a vertical field of view in degrees.
//
// Parameters:
//   - fovY: vertical field of view in degrees
//   - aspect: width / height
//   - near, far: clip plane distances (near must be > 0)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(fovY), aspect, near, far)
}

// Ortho builds an orthographic projection from a half-height and aspect ratio.
func Ortho(halfHeight, aspect, near, far float32) mgl32.Mat4 {
	halfWidth := halfHeight * aspect
	return mgl32.Ortho(-halfWidth, halfWidth, -halfHeight, halfHeight, near, far)
}

// LookRotation returns the rotation that orients -Z toward dir with the given up vector.
// Falls back to an alternative up axis when dir is parallel to up.
func LookRotation(dir, up mgl32.Vec3) mgl32.Quat {
	if dir.Len() == 0 {
		return mgl32.QuatIdent()
	}
	dir = dir.Normalize()
	if math32.Abs(dir.Dot(up.Normalize())) > 0.9999 {
		up = mgl32.Vec3{1, 0, 0}
		if math32.Abs(dir[0]) > 0.9 {
			up = mgl32.Vec3{0, 0, 1}
		}
	}
	// LookAtV produces a view matrix (world -> eye); the node rotation is its inverse.
	view := mgl32.LookAtV(mgl32.Vec3{}, dir, up)
	return RotationOf(view.Transpose())
}

func clampUnit(v float32) float32 {
	return Clamp(v, -1, 1)
}
