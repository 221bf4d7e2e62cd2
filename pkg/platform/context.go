// Package platform declares the host capabilities the adapters consume.
// Implementations live in pkg/backend or in the embedding application.
package platform

// Context is the application-level handle adapters are constructed from.
// Accessors return nil when the host does not offer the service.
type Context interface {
	Permissions() PermissionChecker
	FusedLocationClient() FusedLocationClient
	LocationManager() LocationManager
	SensorManager() SensorManager
	Display() Display
}

// Host is a Context assembled from individual services.
type Host struct {
	Grants  PermissionChecker
	Fused   FusedLocationClient
	Manager LocationManager
	Sensors SensorManager
	Screen  Display
}

func (h *Host) Permissions() PermissionChecker {
	if h.Grants == nil {
		return Grants{}
	}
	return h.Grants
}

func (h *Host) FusedLocationClient() FusedLocationClient { return h.Fused }
func (h *Host) LocationManager() LocationManager         { return h.Manager }
func (h *Host) SensorManager() SensorManager             { return h.Sensors }

func (h *Host) Display() Display {
	if h.Screen == nil {
		return FixedDisplay(Rotation0)
	}
	return h.Screen
}
