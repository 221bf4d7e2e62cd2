package platform

import "time"

// SensorType identifies a hardware or virtual sensor.
type SensorType int

const (
	SensorAccelerometer SensorType = iota + 1
	SensorMagneticField
	SensorRotationVector
)

func (t SensorType) String() string {
	switch t {
	case SensorAccelerometer:
		return "accelerometer"
	case SensorMagneticField:
		return "magnetic_field"
	case SensorRotationVector:
		return "rotation_vector"
	default:
		return "unknown"
	}
}

// Accuracy is the status a sensor reports about its own readings.
type Accuracy int

const (
	AccuracyNoContact  Accuracy = -1
	AccuracyUnreliable Accuracy = 0
	AccuracyLow        Accuracy = 1
	AccuracyMedium     Accuracy = 2
	AccuracyHigh       Accuracy = 3
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyNoContact:
		return "no_contact"
	case AccuracyUnreliable:
		return "unreliable"
	case AccuracyLow:
		return "low"
	case AccuracyMedium:
		return "medium"
	case AccuracyHigh:
		return "high"
	default:
		return "unknown"
	}
}

// SamplingRate is the requested delivery rate of sensor events.
type SamplingRate int

const (
	SamplingNormal SamplingRate = iota
	SamplingUI
	SamplingGame
	SamplingFastest
)

var samplingRateNames = map[SamplingRate]string{
	SamplingNormal:  "normal",
	SamplingUI:      "ui",
	SamplingGame:    "game",
	SamplingFastest: "fastest",
}

func (r SamplingRate) String() string {
	if name, ok := samplingRateNames[r]; ok {
		return name
	}
	return "unknown"
}

// ParseSamplingRate maps a rate name back to its SamplingRate.
func ParseSamplingRate(name string) (SamplingRate, bool) {
	for r, n := range samplingRateNames {
		if n == name {
			return r, true
		}
	}
	return SamplingNormal, false
}

// Period returns the delay between two events at this rate.
func (r SamplingRate) Period() time.Duration {
	switch r {
	case SamplingUI:
		return 66667 * time.Microsecond
	case SamplingGame:
		return 20 * time.Millisecond
	case SamplingFastest:
		return 5 * time.Millisecond
	default:
		return 200 * time.Millisecond
	}
}

// Sensor describes a sensor the SensorManager can deliver.
type Sensor struct {
	Type SensorType
	Name string
}

// SensorEvent is a single sensor reading. Values layout follows the sensor type:
// three axes for motion and magnetic sensors, x y z w for the rotation vector.
type SensorEvent struct {
	Sensor    Sensor
	Values    []float64
	Accuracy  Accuracy
	Timestamp time.Time
}

// SensorEventListener receives events for the sensors it is registered on.
// The manager may pass a nil event.
type SensorEventListener interface {
	OnSensorChanged(event *SensorEvent)
	OnAccuracyChanged(sensor Sensor, accuracy Accuracy)
}

// SensorManager hands out sensors and dispatches their events.
type SensorManager interface {
	DefaultSensor(t SensorType) (Sensor, bool)
	// RegisterListener reports false when the registration was refused.
	RegisterListener(l SensorEventListener, s Sensor, rate SamplingRate) bool
	UnregisterListener(l SensorEventListener, s Sensor)
}
