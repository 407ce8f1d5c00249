// Package geom provides the small set of integer and single-precision
// geometric primitives that flow through plugraph plugs: 2D integer vectors and
// boxes for image windows, and 3D vectors, boxes and 4x4 matrices for scene
// bounds and transforms.
//
// All types are plain values. Boxes follow the image convention of an
// exclusive maximum for Box2i (a box is empty when Max <= Min on either axis),
// and an inclusive maximum for Box3f, whose canonical empty value is returned by
// EmptyBox3f.
package geom

import (
	"encoding/gob"
	"fmt"
	"math"
)

func init() {
	gob.Register(V2i{})
	gob.Register(Box2i{})
	gob.Register(V3f{})
	gob.Register(Box3f{})
	gob.Register(M44f{})
}

// V2i is a 2D integer vector.
type V2i struct {
	X, Y int
}

func (v V2i) Add(o V2i) V2i { return V2i{v.X + o.X, v.Y + o.Y} }
func (v V2i) Sub(o V2i) V2i { return V2i{v.X - o.X, v.Y - o.Y} }
func (v V2i) Neg() V2i      { return V2i{-v.X, -v.Y} }

func (v V2i) String() string { return fmt.Sprintf("(%d,%d)", v.X, v.Y) }

// Box2i is an integer rectangle with an exclusive maximum.
type Box2i struct {
	Min, Max V2i
}

// NewBox2i returns the box spanning [min, max).
func NewBox2i(minX, minY, maxX, maxY int) Box2i {
	return Box2i{Min: V2i{minX, minY}, Max: V2i{maxX, maxY}}
}

// IsEmpty reports whether b covers no pixels.
func (b Box2i) IsEmpty() bool {
	return b.Max.X <= b.Min.X || b.Max.Y <= b.Min.Y
}

// Size returns the extent of b; empty boxes have a zero size.
func (b Box2i) Size() V2i {
	if b.IsEmpty() {
		return V2i{}
	}
	return b.Max.Sub(b.Min)
}

// Contains reports whether the pixel p lies inside b.
func (b Box2i) Contains(p V2i) bool {
	return p.X >= b.Min.X && p.X < b.Max.X && p.Y >= b.Min.Y && p.Y < b.Max.Y
}

// Offset returns b translated by d. The empty box stays empty.
func (b Box2i) Offset(d V2i) Box2i {
	if b.IsEmpty() {
		return Box2i{}
	}
	return Box2i{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func (b Box2i) String() string { return fmt.Sprintf("[%v,%v]", b.Min, b.Max) }

// Intersection returns the overlap of a and b. A non-overlapping pair yields the
// zero Box2i, which is empty.
func Intersection(a, b Box2i) Box2i {
	r := Box2i{
		Min: V2i{max(a.Min.X, b.Min.X), max(a.Min.Y, b.Min.Y)},
		Max: V2i{min(a.Max.X, b.Max.X), min(a.Max.Y, b.Max.Y)},
	}
	if r.IsEmpty() {
		return Box2i{}
	}
	return r
}

// V3f is a 3D single-precision vector.
type V3f struct {
	X, Y, Z float32
}

func (v V3f) Add(o V3f) V3f       { return V3f{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v V3f) Sub(o V3f) V3f       { return V3f{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v V3f) Scale(s float32) V3f { return V3f{v.X * s, v.Y * s, v.Z * s} }
func (v V3f) String() string      { return fmt.Sprintf("(%g,%g,%g)", v.X, v.Y, v.Z) }
func (v V3f) min(o V3f) V3f       { return V3f{min(v.X, o.X), min(v.Y, o.Y), min(v.Z, o.Z)} }
func (v V3f) max(o V3f) V3f       { return V3f{max(v.X, o.X), max(v.Y, o.Y), max(v.Z, o.Z)} }
func (v V3f) component(i int) float32 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// Box3f is an axis-aligned bounding box with an inclusive maximum.
//
// The zero Box3f is a degenerate box around the origin, not an empty box. Use
// EmptyBox3f for the value that contains nothing.
type Box3f struct {
	Min, Max V3f
}

// EmptyBox3f returns the canonical empty box: extending it by any box yields
// that box.
func EmptyBox3f() Box3f {
	inf := float32(math.Inf(1))
	return Box3f{Min: V3f{inf, inf, inf}, Max: V3f{-inf, -inf, -inf}}
}

// IsEmpty reports whether b contains no points.
func (b Box3f) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Union returns the smallest box containing both b and o.
func (b Box3f) Union(o Box3f) Box3f {
	switch {
	case o.IsEmpty():
		return b
	case b.IsEmpty():
		return o
	}
	return Box3f{Min: b.Min.min(o.Min), Max: b.Max.max(o.Max)}
}

// ExtendBy returns b grown to include the point p.
func (b Box3f) ExtendBy(p V3f) Box3f {
	if b.IsEmpty() {
		return Box3f{Min: p, Max: p}
	}
	return Box3f{Min: b.Min.min(p), Max: b.Max.max(p)}
}

// Size returns the extent of b; empty boxes have a zero size.
func (b Box3f) Size() V3f {
	if b.IsEmpty() {
		return V3f{}
	}
	return b.Max.Sub(b.Min)
}

func (b Box3f) String() string {
	if b.IsEmpty() {
		return "[empty]"
	}
	return fmt.Sprintf("[%v,%v]", b.Min, b.Max)
}

// M44f is a 4x4 single-precision matrix in row-major order, acting on row
// vectors (p' = p * M), so translation lives in elements 12, 13 and 14.
type M44f [16]float32

// Identity returns the identity matrix.
func Identity() M44f {
	return M44f{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translate returns a matrix translating by t.
func Translate(t V3f) M44f {
	m := Identity()
	m[12], m[13], m[14] = t.X, t.Y, t.Z
	return m
}

// Scale returns a matrix scaling by s.
func Scale(s V3f) M44f {
	m := Identity()
	m[0], m[5], m[10] = s.X, s.Y, s.Z
	return m
}

// IsIdentity reports whether m is exactly the identity.
func (m M44f) IsIdentity() bool {
	return m == Identity()
}

// Mul returns m * o; applying the result to a point applies m first, then o.
func (m M44f) Mul(o M44f) M44f {
	var r M44f
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var s float32
			for k := 0; k < 4; k++ {
				s += m[i*4+k] * o[k*4+j]
			}
			r[i*4+j] = s
		}
	}
	return r
}

// TransformPoint returns p * m, with the homogeneous divide applied.
func (m M44f) TransformPoint(p V3f) V3f {
	x := p.X*m[0] + p.Y*m[4] + p.Z*m[8] + m[12]
	y := p.X*m[1] + p.Y*m[5] + p.Z*m[9] + m[13]
	z := p.X*m[2] + p.Y*m[6] + p.Z*m[10] + m[14]
	w := p.X*m[3] + p.Y*m[7] + p.Z*m[11] + m[15]
	if w != 0 && w != 1 {
		return V3f{x / w, y / w, z / w}
	}
	return V3f{x, y, z}
}

// TransformBox returns the bounding box of b's eight corners transformed by m.
// The empty box stays empty.
func (m M44f) TransformBox(b Box3f) Box3f {
	if b.IsEmpty() {
		return b
	}
	r := EmptyBox3f()
	for i := 0; i < 8; i++ {
		corner := V3f{
			pick(i&1 != 0, b.Max, b.Min).component(0),
			pick(i&2 != 0, b.Max, b.Min).component(1),
			pick(i&4 != 0, b.Max, b.Min).component(2),
		}
		r = r.ExtendBy(m.TransformPoint(corner))
	}
	return r
}

func pick(c bool, a, b V3f) V3f {
	if c {
		return a
	}
	return b
}
