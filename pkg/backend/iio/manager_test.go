package iio_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/geosense/pkg/backend/iio"
	"github.com/benmeehan/geosense/pkg/file"
	"github.com/benmeehan/geosense/pkg/platform"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0700))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
}

// fakeSysfs lays out an accelerometer+magnetometer device and a rotation device.
func fakeSysfs(t *testing.T) string {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "iio:device0"), map[string]string{
		"name":            "lsm9ds1\n",
		"in_accel_x_raw":  "0\n",
		"in_accel_y_raw":  "0\n",
		"in_accel_z_raw":  "1000\n",
		"in_accel_scale":  "0.00981\n",
		"in_magn_x_raw":   "0\n",
		"in_magn_y_raw":   "3000\n",
		"in_magn_z_raw":   "-4000\n",
		"in_magn_x_scale": "0.0001\n",
	})
	writeFiles(t, filepath.Join(root, "iio:device1"), map[string]string{
		"name":                    "dev_rotation",
		"in_rot_quaternion_raw":   "0 0 0 10000\n",
		"in_rot_quaternion_scale": "0.0001\n",
	})
	writeFiles(t, filepath.Join(root, "trigger0"), map[string]string{"name": "trigger"})
	return root
}

type recorder struct {
	events   chan *platform.SensorEvent
	accuracy chan platform.Accuracy
}

func newRecorder() *recorder {
	return &recorder{events: make(chan *platform.SensorEvent, 64), accuracy: make(chan platform.Accuracy, 8)}
}

func (r *recorder) OnSensorChanged(e *platform.SensorEvent) {
	select {
	case r.events <- e:
	default:
	}
}

func (r *recorder) OnAccuracyChanged(_ platform.Sensor, a platform.Accuracy) { r.accuracy <- a }

func TestSensorManager_Discovery(t *testing.T) {
	m, err := iio.NewSensorManager(fakeSysfs(t), file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	for _, st := range []platform.SensorType{platform.SensorAccelerometer, platform.SensorMagneticField, platform.SensorRotationVector} {
		_, ok := m.DefaultSensor(st)
		assert.True(t, ok, st.String())
	}
	s, _ := m.DefaultSensor(platform.SensorAccelerometer)
	assert.Equal(t, "lsm9ds1", s.Name)
}

func TestSensorManager_MissingRoot(t *testing.T) {
	_, err := iio.NewSensorManager(filepath.Join(t.TempDir(), "nope"), file.NewFileService(), zerolog.Nop())
	assert.Error(t, err)
}

func TestSensorManager_PollsScaledValues(t *testing.T) {
	m, err := iio.NewSensorManager(fakeSysfs(t), file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	tests := []struct {
		sensor platform.SensorType
		want   []float64
	}{
		{platform.SensorAccelerometer, []float64{0, 0, 9.81}},
		{platform.SensorMagneticField, []float64{0, 30, -40}},
		{platform.SensorRotationVector, []float64{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.sensor.String(), func(t *testing.T) {
			s, ok := m.DefaultSensor(tt.sensor)
			require.True(t, ok)
			rec := newRecorder()

			require.True(t, m.RegisterListener(rec, s, platform.SamplingFastest))
			assert.False(t, m.RegisterListener(rec, s, platform.SamplingFastest), "duplicate registration")
			defer m.UnregisterListener(rec, s)

			assert.Equal(t, platform.AccuracyHigh, <-rec.accuracy)
			e := <-rec.events
			require.Len(t, e.Values, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], e.Values[i], 1e-9)
			}
			assert.Equal(t, tt.sensor, e.Sensor.Type)
		})
	}
}

func TestSensorManager_ReadFailureIsUnreliable(t *testing.T) {
	root := fakeSysfs(t)
	m, err := iio.NewSensorManager(root, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)
	s, _ := m.DefaultSensor(platform.SensorAccelerometer)
	rec := newRecorder()

	require.True(t, m.RegisterListener(rec, s, platform.SamplingFastest))
	assert.Equal(t, platform.AccuracyHigh, <-rec.accuracy)

	require.NoError(t, os.Remove(filepath.Join(root, "iio:device0", "in_accel_y_raw")))
	select {
	case a := <-rec.accuracy:
		assert.Equal(t, platform.AccuracyUnreliable, a)
	case <-time.After(time.Second):
		t.Fatal("accuracy did not drop")
	}

	m.UnregisterListener(rec, s)
	// draining after unregister must not block or deliver more accuracy changes
	select {
	case a := <-rec.accuracy:
		t.Fatalf("unexpected accuracy %s after unregister", a)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestSensorManager_RegisterUnknownSensor(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "iio:device0"), map[string]string{"in_accel_x_raw": "1"})
	m, err := iio.NewSensorManager(root, file.NewFileService(), zerolog.Nop())
	require.NoError(t, err)

	_, ok := m.DefaultSensor(platform.SensorMagneticField)
	assert.False(t, ok)
	assert.False(t, m.RegisterListener(newRecorder(), platform.Sensor{Type: platform.SensorMagneticField}, platform.SamplingNormal))
	m.UnregisterListener(newRecorder(), platform.Sensor{Type: platform.SensorMagneticField})
}
