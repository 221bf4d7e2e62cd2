package bearing

import (
	"errors"
	"fmt"

	"github.com/benmeehan/geosense/pkg/platform"
)

var (
	// ErrNilEvent is returned when the sensor manager delivers an empty event.
	ErrNilEvent = errors.New("bearing: sensor delivered a nil event")
	// ErrListenerRejected is returned when the sensor manager refuses a registration.
	ErrListenerRejected = errors.New("bearing: sensor listener registration rejected")
	// ErrServiceUnavailable is returned when the context has no sensor manager.
	ErrServiceUnavailable = errors.New("bearing: sensor manager unavailable on this host")
)

// MissingSensorError terminates a subscription whose sensor is not present.
type MissingSensorError struct {
	Sensor platform.SensorType
}

func (e *MissingSensorError) Error() string {
	return fmt.Sprintf("bearing: missing %s sensor", e.Sensor)
}
