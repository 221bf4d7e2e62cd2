package bearing_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/benmeehan/geosense/pkg/bearing"
	"github.com/benmeehan/geosense/pkg/platform"
)

const eps = 1e-9

// yawVector is the rotation vector of a device lying flat and turned by deg
// degrees clockwise from magnetic north.
func yawVector(deg float64) []float64 {
	half := -deg * math.Pi / 360
	return []float64{0, 0, math.Sin(half), math.Cos(half)}
}

func TestRotationMatrixFromVector_Identity(t *testing.T) {
	r := bearing.RotationMatrixFromVector([]float64{0, 0, 0})
	assert.True(t, mat.EqualApprox(r, mat.NewDiagDense(3, []float64{1, 1, 1}), eps))

	// explicit scalar component gives the same result
	r = bearing.RotationMatrixFromVector([]float64{0, 0, 0, 1})
	assert.True(t, mat.EqualApprox(r, mat.NewDiagDense(3, []float64{1, 1, 1}), eps))
}

func TestAzimuth_RotationVector(t *testing.T) {
	for _, deg := range []float64{0, 30, 90, 179, 180, 181, 270, 359.5} {
		r := bearing.RotationMatrixFromVector(yawVector(deg))
		assert.InDelta(t, deg, bearing.Azimuth(r), 1e-6, "yaw %v", deg)
	}
}

func TestRemapForDisplay(t *testing.T) {
	north := bearing.RotationMatrixFromVector([]float64{0, 0, 0})

	tests := []struct {
		rotation platform.Rotation
		want     float64
	}{
		{platform.Rotation0, 0},
		{platform.Rotation90, 90},
		{platform.Rotation180, 180},
		{platform.Rotation270, 270},
		{platform.Rotation(7), 0},
	}
	for _, tt := range tests {
		r := bearing.RemapForDisplay(north, tt.rotation)
		require.NotNil(t, r)
		assert.InDelta(t, tt.want, bearing.Azimuth(r), eps, "rotation %d", tt.rotation)
	}
}

func TestRemapCoordinateSystem_InvalidAxes(t *testing.T) {
	r := mat.NewDiagDense(3, []float64{1, 1, 1})

	_, ok := bearing.RemapCoordinateSystem(r, bearing.AxisX, bearing.AxisMinusX)
	assert.False(t, ok)
	_, ok = bearing.RemapCoordinateSystem(r, 0, bearing.AxisY)
	assert.False(t, ok)
	_, ok = bearing.RemapCoordinateSystem(r, 0x10, bearing.AxisY)
	assert.False(t, ok)
}

func TestRemapCoordinateSystem_StaysOrthonormal(t *testing.T) {
	r := bearing.RotationMatrixFromVector(yawVector(42))
	out, ok := bearing.RemapCoordinateSystem(r, bearing.AxisMinusY, bearing.AxisX)
	require.True(t, ok)

	var rrt mat.Dense
	rrt.Mul(out, out.T())
	assert.True(t, mat.EqualApprox(&rrt, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-9))
	assert.InDelta(t, 1, mat.Det(out), 1e-9)
}

func TestRotationMatrix_AccelerometerMagnetometer(t *testing.T) {
	gravity := [3]float64{0, 0, 9.81}

	tests := []struct {
		name        string
		geomagnetic [3]float64
		want        float64
	}{
		{"north", [3]float64{0, 30, -40}, 0},
		{"east", [3]float64{-30, 0, -40}, 90},
		{"south", [3]float64{0, -30, -40}, 180},
		{"west", [3]float64{30, 0, -40}, 270},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := bearing.RotationMatrix(gravity, tt.geomagnetic)
			require.True(t, ok)
			assert.InDelta(t, tt.want, bearing.Azimuth(r), 1e-9)
		})
	}
}

func TestRotationMatrix_Degenerate(t *testing.T) {
	_, ok := bearing.RotationMatrix([3]float64{0, 0, 0.5}, [3]float64{0, 30, -40})
	assert.False(t, ok, "free fall")

	_, ok = bearing.RotationMatrix([3]float64{0, 0, 9.81}, [3]float64{0, 0, -40})
	assert.False(t, ok, "field parallel to gravity")
}

func TestNormalizeDegrees(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{-360, 0},
		{-0.0, 0},
		{-90, 270},
		{-180, 180},
		{180, 180},
		{725, 5},
		{-1e-15, 0},
		{-1000, 80},
	}
	for _, tt := range tests {
		got := bearing.NormalizeDegrees(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "normalize %v", tt.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 360.0)
	}
}

func TestAzimuth_AlwaysInRange(t *testing.T) {
	for deg := -720.0; deg <= 720; deg += 7.5 {
		r := bearing.RotationMatrixFromVector(yawVector(deg))
		for _, rot := range []platform.Rotation{platform.Rotation0, platform.Rotation90, platform.Rotation180, platform.Rotation270} {
			az := bearing.Azimuth(bearing.RemapForDisplay(r, rot))
			assert.GreaterOrEqual(t, az, 0.0)
			assert.Less(t, az, 360.0)
		}
	}
}
