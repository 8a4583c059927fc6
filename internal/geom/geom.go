// Package geom holds the builtin geometric value types. Each type has a copy
// constructor so the copy-strategy library can duplicate instances.
package geom

// Vector2f is a 2D float vector.
type Vector2f struct{ X, Y float32 }

// Vector2i is a 2D integer vector.
type Vector2i struct{ X, Y int32 }

// Vector3f is a 3D float vector.
type Vector3f struct{ X, Y, Z float32 }

// Vector3i is a 3D integer vector.
type Vector3i struct{ X, Y, Z int32 }

// Vector4f is a 4D float vector.
type Vector4f struct{ X, Y, Z, W float32 }

// Vector4i is a 4D integer vector.
type Vector4i struct{ X, Y, Z, W int32 }

// Quaternionf is a rotation quaternion.
type Quaternionf struct{ X, Y, Z, W float32 }

// IdentityQuaternion is the rotation that leaves vectors unchanged.
var IdentityQuaternion = Quaternionf{W: 1}

func NewVector2fFrom(v Vector2f) Vector2f { return Vector2f{X: v.X, Y: v.Y} }

func NewVector2iFrom(v Vector2i) Vector2i { return Vector2i{X: v.X, Y: v.Y} }

func NewVector3fFrom(v Vector3f) Vector3f { return Vector3f{X: v.X, Y: v.Y, Z: v.Z} }

func NewVector3iFrom(v Vector3i) Vector3i { return Vector3i{X: v.X, Y: v.Y, Z: v.Z} }

func NewVector4fFrom(v Vector4f) Vector4f { return Vector4f{X: v.X, Y: v.Y, Z: v.Z, W: v.W} }

func NewVector4iFrom(v Vector4i) Vector4i { return Vector4i{X: v.X, Y: v.Y, Z: v.Z, W: v.W} }

func NewQuaternionfFrom(q Quaternionf) Quaternionf {
	return Quaternionf{X: q.X, Y: q.Y, Z: q.Z, W: q.W}
}

// Add returns v+o.
func (v Vector3f) Add(o Vector3f) Vector3f {
	return Vector3f{X: v.X + o.X, Y: v.Y + o.Y, Z: v.Z + o.Z}
}

// Scale returns v*s.
func (v Vector3f) Scale(s float32) Vector3f {
	return Vector3f{X: v.X * s, Y: v.Y * s, Z: v.Z * s}
}
