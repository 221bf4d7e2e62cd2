// Package bearing derives compass headings from the rotation-vector sensor or
// from raw accelerometer and magnetometer readings.
package bearing

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/benmeehan/geosense/pkg/stream"
)

// Bearing is a compass heading.
type Bearing struct {
	Azimuth  float64 // degrees from magnetic north, [0,360)
	Accuracy platform.Accuracy
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithSamplingRate sets the rate requested for every registered sensor.
func WithSamplingRate(rate platform.SamplingRate) Option {
	return func(a *Adapter) {
		a.rate = rate
	}
}

// Adapter streams bearings.
type Adapter struct {
	sensors platform.SensorManager
	display platform.Display
	rate    platform.SamplingRate
	logger  zerolog.Logger

	last stream.Latest[Bearing]
	subs *stream.Group
}

// NewAdapter builds an adapter over the context's sensor manager and display.
func NewAdapter(pctx platform.Context, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	sensors := pctx.SensorManager()
	if sensors == nil {
		return nil, ErrServiceUnavailable
	}
	a := &Adapter{
		sensors: sensors,
		display: pctx.Display(),
		rate:    platform.SamplingUI,
		logger:  logger.With().Str("adapter", "bearing").Logger(),
		subs:    stream.NewGroup(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// LastKnown returns the most recent bearing emitted by any subscription, or nil.
func (a *Adapter) LastKnown() *Bearing {
	return a.last.Load()
}

// Subscriptions returns the number of open streams.
func (a *Adapter) Subscriptions() int {
	return a.subs.Len()
}

// Close terminates every open stream of this adapter.
func (a *Adapter) Close() {
	a.subs.CloseAll()
}

// RotationUpdates streams bearings computed from the rotation-vector sensor,
// corrected for the current display rotation.
func (a *Adapter) RotationUpdates(ctx context.Context) *stream.Stream[Bearing] {
	return stream.Open(ctx, func(ctx context.Context, sink stream.Sink[Bearing]) (stream.Teardown, error) {
		sensor, ok := a.sensors.DefaultSensor(platform.SensorRotationVector)
		if !ok {
			return nil, &MissingSensorError{Sensor: platform.SensorRotationVector}
		}

		l := &rotationListener{
			adapter:  a,
			sink:     sink,
			accuracy: platform.AccuracyNoContact,
		}
		if !a.sensors.RegisterListener(l, sensor, a.rate) {
			return nil, ErrListenerRejected
		}
		a.logger.Debug().Str("sensor", sensor.Name).Msg("Registered rotation vector listener")

		return func() {
			a.sensors.UnregisterListener(l, sensor)
		}, nil
	}, stream.WithLogger(a.logger), stream.WithGroup(a.subs))
}

// FusedSensorUpdates streams bearings computed from accelerometer and
// magnetometer readings. Nothing is emitted until both sensors reported once.
func (a *Adapter) FusedSensorUpdates(ctx context.Context) *stream.Stream[Bearing] {
	return stream.Open(ctx, func(ctx context.Context, sink stream.Sink[Bearing]) (stream.Teardown, error) {
		accel, ok := a.sensors.DefaultSensor(platform.SensorAccelerometer)
		if !ok {
			return nil, &MissingSensorError{Sensor: platform.SensorAccelerometer}
		}
		magnet, ok := a.sensors.DefaultSensor(platform.SensorMagneticField)
		if !ok {
			return nil, &MissingSensorError{Sensor: platform.SensorMagneticField}
		}

		f := &fusion{
			adapter:        a,
			sink:           sink,
			accelAccuracy:  platform.AccuracyNoContact,
			magnetAccuracy: platform.AccuracyNoContact,
		}
		accelListener := &fusionListener{fusion: f, sensor: platform.SensorAccelerometer}
		magnetListener := &fusionListener{fusion: f, sensor: platform.SensorMagneticField}

		if !a.sensors.RegisterListener(accelListener, accel, a.rate) {
			return nil, ErrListenerRejected
		}
		if !a.sensors.RegisterListener(magnetListener, magnet, a.rate) {
			a.sensors.UnregisterListener(accelListener, accel)
			return nil, ErrListenerRejected
		}
		a.logger.Debug().
			Str("accelerometer", accel.Name).
			Str("magnetometer", magnet.Name).
			Msg("Registered accelerometer and magnetometer listeners")

		return func() {
			a.sensors.UnregisterListener(accelListener, accel)
			a.sensors.UnregisterListener(magnetListener, magnet)
		}, nil
	}, stream.WithLogger(a.logger), stream.WithGroup(a.subs))
}

func (a *Adapter) publish(sink stream.Sink[Bearing], b Bearing) {
	if !sink.Active() {
		return
	}
	a.last.Store(b)
	sink.Emit(b)
}

// wellFormed reports whether event carries a full x, y, z vector. Short
// events are dropped so that earlier readings are not partly overwritten.
func (a *Adapter) wellFormed(event *platform.SensorEvent) bool {
	if len(event.Values) >= 3 {
		return true
	}
	a.logger.Debug().
		Str("sensor", event.Sensor.Name).
		Int("values", len(event.Values)).
		Msg("Dropping sensor event with a short vector")
	return false
}

type rotationListener struct {
	adapter *Adapter
	sink    stream.Sink[Bearing]

	mu       sync.Mutex
	accuracy platform.Accuracy
}

func (l *rotationListener) OnSensorChanged(event *platform.SensorEvent) {
	if event == nil {
		l.sink.Close(ErrNilEvent)
		return
	}
	if !l.adapter.wellFormed(event) {
		return
	}

	r := RotationMatrixFromVector(event.Values)
	r = RemapForDisplay(r, l.adapter.display.Rotation())

	l.mu.Lock()
	accuracy := l.accuracy
	l.mu.Unlock()

	l.adapter.publish(l.sink, Bearing{Azimuth: Azimuth(r), Accuracy: accuracy})
}

func (l *rotationListener) OnAccuracyChanged(_ platform.Sensor, accuracy platform.Accuracy) {
	l.mu.Lock()
	l.accuracy = accuracy
	l.mu.Unlock()
}

// fusion keeps the latest accelerometer and magnetometer readings of one
// subscription. A reading is reused until its sensor reports again.
type fusion struct {
	adapter *Adapter
	sink    stream.Sink[Bearing]

	mu             sync.Mutex
	gravity        [3]float64
	geomagnetic    [3]float64
	haveGravity    bool
	haveMagnetic   bool
	accelAccuracy  platform.Accuracy
	magnetAccuracy platform.Accuracy
}

func (f *fusion) update(sensor platform.SensorType, values []float64) {
	f.mu.Lock()
	switch sensor {
	case platform.SensorAccelerometer:
		copy(f.gravity[:], values)
		f.haveGravity = true
	case platform.SensorMagneticField:
		copy(f.geomagnetic[:], values)
		f.haveMagnetic = true
	}
	if !f.haveGravity || !f.haveMagnetic {
		f.mu.Unlock()
		return
	}
	r, ok := RotationMatrix(f.gravity, f.geomagnetic)
	accuracy := min(f.accelAccuracy, f.magnetAccuracy)
	f.mu.Unlock()

	if !ok {
		return
	}
	f.adapter.publish(f.sink, Bearing{Azimuth: Azimuth(r), Accuracy: accuracy})
}

func (f *fusion) setAccuracy(sensor platform.SensorType, accuracy platform.Accuracy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sensor == platform.SensorAccelerometer {
		f.accelAccuracy = accuracy
	} else {
		f.magnetAccuracy = accuracy
	}
}

type fusionListener struct {
	fusion *fusion
	sensor platform.SensorType
}

func (l *fusionListener) OnSensorChanged(event *platform.SensorEvent) {
	if event == nil {
		l.fusion.sink.Close(ErrNilEvent)
		return
	}
	if !l.fusion.adapter.wellFormed(event) {
		return
	}
	l.fusion.update(l.sensor, event.Values)
}

func (l *fusionListener) OnAccuracyChanged(_ platform.Sensor, accuracy platform.Accuracy) {
	l.fusion.setAccuracy(l.sensor, accuracy)
}
