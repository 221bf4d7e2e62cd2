// Package iio provides a SensorManager over the Linux Industrial I/O sysfs
// interface (/sys/bus/iio/devices).
package iio

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/pkg/file"
	"github.com/benmeehan/geosense/pkg/platform"
)

// DefaultRoot is where the kernel exposes IIO devices.
const DefaultRoot = "/sys/bus/iio/devices"

// channel describes how one sensor type is laid out in sysfs.
type channel struct {
	sensor platform.SensorType
	prefix string
	axes   []string // empty for a single multi-value file
	factor float64  // converts the scaled value to the platform unit
}

var channels = []channel{
	{sensor: platform.SensorAccelerometer, prefix: "in_accel", axes: []string{"x", "y", "z"}, factor: 1},
	// IIO reports gauss, the platform uses microtesla.
	{sensor: platform.SensorMagneticField, prefix: "in_magn", axes: []string{"x", "y", "z"}, factor: 100},
	{sensor: platform.SensorRotationVector, prefix: "in_rot_quaternion", factor: 1},
}

type device struct {
	sensor platform.Sensor
	dir    string
	ch     channel
	scale  float64
}

func (d *device) probe() string {
	if len(d.ch.axes) == 0 {
		return filepath.Join(d.dir, d.ch.prefix+"_raw")
	}
	return filepath.Join(d.dir, d.ch.prefix+"_"+d.ch.axes[0]+"_raw")
}

func (d *device) read(files file.FileOperations) ([]float64, error) {
	var raw []float64
	if len(d.ch.axes) == 0 {
		s, err := files.ReadFile(filepath.Join(d.dir, d.ch.prefix+"_raw"))
		if err != nil {
			return nil, err
		}
		for _, f := range strings.Fields(s) {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("iio: parse %s: %w", d.ch.prefix, err)
			}
			raw = append(raw, v)
		}
	} else {
		for _, axis := range d.ch.axes {
			v, err := readFloat(files, filepath.Join(d.dir, d.ch.prefix+"_"+axis+"_raw"))
			if err != nil {
				return nil, err
			}
			raw = append(raw, v)
		}
	}

	for i := range raw {
		raw[i] *= d.scale * d.ch.factor
	}
	return raw, nil
}

func readFloat(files file.FileOperations, path string) (float64, error) {
	s, err := files.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("iio: parse %s: %w", path, err)
	}
	return v, nil
}

type listenerKey struct {
	l      platform.SensorEventListener
	sensor platform.SensorType
}

// SensorManager polls IIO channels for each registered listener.
type SensorManager struct {
	files  file.FileOperations
	logger zerolog.Logger

	sensors map[platform.SensorType]*device

	mu      sync.Mutex
	pollers map[listenerKey]*poller
}

// NewSensorManager scans root for IIO devices. The first device exposing a
// channel becomes the default sensor of that type.
func NewSensorManager(root string, files file.FileOperations, logger zerolog.Logger) (*SensorManager, error) {
	names, err := files.ListDir(root)
	if err != nil {
		return nil, fmt.Errorf("iio: list %s: %w", root, err)
	}

	m := &SensorManager{
		files:   files,
		logger:  logger.With().Str("backend", "iio").Logger(),
		sensors: make(map[platform.SensorType]*device),
		pollers: make(map[listenerKey]*poller),
	}

	for _, name := range names {
		if !strings.HasPrefix(name, "iio:device") {
			continue
		}
		dir := filepath.Join(root, name)
		devName := name
		if s, err := files.ReadFile(filepath.Join(dir, "name")); err == nil && strings.TrimSpace(s) != "" {
			devName = strings.TrimSpace(s)
		}

		for _, ch := range channels {
			if _, taken := m.sensors[ch.sensor]; taken {
				continue
			}
			d := &device{sensor: platform.Sensor{Type: ch.sensor, Name: devName}, dir: dir, ch: ch}
			if ok, _ := files.IsFileExists(d.probe()); !ok {
				continue
			}
			d.scale = m.readScale(d)
			m.sensors[ch.sensor] = d
			m.logger.Info().
				Str("sensor", ch.sensor.String()).
				Str("device", devName).
				Float64("scale", d.scale).
				Msg("IIO sensor found")
		}
	}
	return m, nil
}

// readScale looks for a shared scale, then a per-axis one, defaulting to 1.
func (m *SensorManager) readScale(d *device) float64 {
	candidates := []string{d.ch.prefix + "_scale"}
	if len(d.ch.axes) > 0 {
		candidates = append(candidates, d.ch.prefix+"_"+d.ch.axes[0]+"_scale")
	}
	for _, c := range candidates {
		if v, err := readFloat(m.files, filepath.Join(d.dir, c)); err == nil && v != 0 {
			return v
		}
	}
	return 1
}

// DefaultSensor returns the sensor of type t, if present.
func (m *SensorManager) DefaultSensor(t platform.SensorType) (platform.Sensor, bool) {
	d, ok := m.sensors[t]
	if !ok {
		return platform.Sensor{}, false
	}
	return d.sensor, true
}

// RegisterListener starts polling s for l at rate. It refuses unknown sensors
// and duplicate registrations.
func (m *SensorManager) RegisterListener(l platform.SensorEventListener, s platform.Sensor, rate platform.SamplingRate) bool {
	d, ok := m.sensors[s.Type]
	if !ok {
		return false
	}
	key := listenerKey{l: l, sensor: s.Type}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pollers[key]; exists {
		return false
	}
	p := &poller{
		device: d,
		files:  m.files,
		l:      l,
		period: rate.Period(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		logger: m.logger,
	}
	m.pollers[key] = p
	go p.run()
	return true
}

// UnregisterListener stops polling s for l and waits for the poller to exit.
func (m *SensorManager) UnregisterListener(l platform.SensorEventListener, s platform.Sensor) {
	key := listenerKey{l: l, sensor: s.Type}
	m.mu.Lock()
	p, ok := m.pollers[key]
	delete(m.pollers, key)
	m.mu.Unlock()
	if !ok {
		return
	}
	close(p.stop)
	<-p.done
}

type poller struct {
	device *device
	files  file.FileOperations
	l      platform.SensorEventListener
	period time.Duration
	stop   chan struct{}
	done   chan struct{}
	logger zerolog.Logger
}

func (p *poller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	accuracy := platform.AccuracyNoContact
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}

		values, err := p.device.read(p.files)
		if err != nil {
			if accuracy != platform.AccuracyUnreliable {
				p.logger.Warn().Err(err).Str("sensor", p.device.sensor.Type.String()).Msg("IIO read failed")
				accuracy = platform.AccuracyUnreliable
				p.l.OnAccuracyChanged(p.device.sensor, accuracy)
			}
			continue
		}
		if accuracy != platform.AccuracyHigh {
			accuracy = platform.AccuracyHigh
			p.l.OnAccuracyChanged(p.device.sensor, accuracy)
		}
		p.l.OnSensorChanged(&platform.SensorEvent{
			Sensor:    p.device.sensor,
			Values:    values,
			Accuracy:  accuracy,
			Timestamp: time.Now(),
		})
	}
}
