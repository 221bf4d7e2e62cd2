package bearing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/benmeehan/geosense/pkg/platform"
)

// standardGravity in m/s².
const standardGravity = 9.80665

// Axis codes for RemapCoordinateSystem. The high bit negates the axis.
const (
	AxisX      = 1
	AxisY      = 2
	AxisZ      = 3
	axisMinus  = 0x80
	AxisMinusX = AxisX | axisMinus
	AxisMinusY = AxisY | axisMinus
	AxisMinusZ = AxisZ | axisMinus
)

// RotationMatrixFromVector converts a rotation-vector reading (x, y, z and an
// optional scalar w) into a 3×3 rotation matrix.
func RotationMatrixFromVector(v []float64) *mat.Dense {
	var q0, q1, q2, q3 float64
	if len(v) > 0 {
		q1 = v[0]
	}
	if len(v) > 1 {
		q2 = v[1]
	}
	if len(v) > 2 {
		q3 = v[2]
	}
	if len(v) >= 4 {
		q0 = v[3]
	} else {
		q0 = 1 - q1*q1 - q2*q2 - q3*q3
		if q0 > 0 {
			q0 = math.Sqrt(q0)
		} else {
			q0 = 0
		}
	}

	sqQ1 := 2 * q1 * q1
	sqQ2 := 2 * q2 * q2
	sqQ3 := 2 * q3 * q3
	q1q2 := 2 * q1 * q2
	q3q0 := 2 * q3 * q0
	q1q3 := 2 * q1 * q3
	q2q0 := 2 * q2 * q0
	q2q3 := 2 * q2 * q3
	q1q0 := 2 * q1 * q0

	return mat.NewDense(3, 3, []float64{
		1 - sqQ2 - sqQ3, q1q2 - q3q0, q1q3 + q2q0,
		q1q2 + q3q0, 1 - sqQ1 - sqQ3, q2q3 - q1q0,
		q1q3 - q2q0, q2q3 + q1q0, 1 - sqQ1 - sqQ2,
	})
}

// RotationMatrix computes the device-to-world rotation from a gravity and a
// geomagnetic vector. It reports false when the device is in free fall or the
// field is (nearly) parallel to gravity.
func RotationMatrix(gravity, geomagnetic [3]float64) (*mat.Dense, bool) {
	a := r3.Vec{X: gravity[0], Y: gravity[1], Z: gravity[2]}
	e := r3.Vec{X: geomagnetic[0], Y: geomagnetic[1], Z: geomagnetic[2]}

	normA := r3.Norm(a)
	if normA*normA < standardGravity*standardGravity*0.1 {
		return nil, false
	}

	h := r3.Cross(e, a)
	normH := r3.Norm(h)
	if normH < 0.1 {
		return nil, false
	}

	h = r3.Scale(1/normH, h)
	a = r3.Scale(1/normA, a)
	m := r3.Cross(a, h)

	return mat.NewDense(3, 3, []float64{
		h.X, h.Y, h.Z,
		m.X, m.Y, m.Z,
		a.X, a.Y, a.Z,
	}), true
}

// RemapCoordinateSystem rewrites r so that the device axes x and y become the
// world axes named by the axis codes. It reports false for invalid codes.
func RemapCoordinateSystem(r mat.Matrix, x, y int) (*mat.Dense, bool) {
	if x&0x7C != 0 || y&0x7C != 0 {
		return nil, false
	}
	if x&0x3 == 0 || y&0x3 == 0 || x&0x3 == y&0x3 {
		return nil, false
	}

	// z is the remaining axis; its sign follows from the handedness of x and y.
	z := x ^ y
	xi := x&0x3 - 1
	yi := y&0x3 - 1
	zi := z&0x3 - 1
	if (xi^((zi+1)%3))|(yi^((zi+2)%3)) != 0 {
		z ^= axisMinus
	}
	sx := x >= axisMinus
	sy := y >= axisMinus
	sz := z >= axisMinus

	out := mat.NewDense(3, 3, nil)
	for row := 0; row < 3; row++ {
		out.Set(row, xi, signed(r.At(row, 0), sx))
		out.Set(row, yi, signed(r.At(row, 1), sy))
		out.Set(row, zi, signed(r.At(row, 2), sz))
	}
	return out, true
}

func signed(v float64, negate bool) float64 {
	if negate {
		return -v
	}
	return v
}

// RemapForDisplay remaps r for the given display rotation. Unknown rotations
// are treated as Rotation0.
func RemapForDisplay(r mat.Matrix, rotation platform.Rotation) *mat.Dense {
	x, y := AxisX, AxisY
	switch rotation {
	case platform.Rotation90:
		x, y = AxisY, AxisMinusX
	case platform.Rotation180:
		x, y = AxisMinusX, AxisMinusY
	case platform.Rotation270:
		x, y = AxisMinusY, AxisX
	}
	out, _ := RemapCoordinateSystem(r, x, y)
	return out
}

// Orientation returns azimuth, pitch and roll in radians.
func Orientation(r mat.Matrix) [3]float64 {
	return [3]float64{
		math.Atan2(r.At(0, 1), r.At(1, 1)),
		math.Asin(-r.At(2, 1)),
		math.Atan2(-r.At(2, 0), r.At(2, 2)),
	}
}

// Azimuth returns the heading of r in degrees within [0,360).
func Azimuth(r mat.Matrix) float64 {
	return NormalizeDegrees(Orientation(r)[0] * 180 / math.Pi)
}

// NormalizeDegrees maps any angle into [0,360).
func NormalizeDegrees(deg float64) float64 {
	n := math.Mod(deg+360, 360)
	if n < 0 {
		n += 360
	}
	if n >= 360 {
		n = 0
	}
	return n
}
