package platform

import (
	"context"
	"time"

	geo "github.com/kellydunn/golang-geo"
)

// Well-known provider names for the LocationManager.
const (
	GPSProvider     = "gps"
	NetworkProvider = "network"
	PassiveProvider = "passive"
)

// Fix is a single position sample.
type Fix struct {
	Latitude  float64   // degrees
	Longitude float64   // degrees
	Altitude  float64   // metres above the ellipsoid
	Accuracy  float64   // horizontal accuracy in metres
	Speed     float64   // metres per second
	Provider  string    // source that produced the fix
	Time      time.Time // when the fix was taken
}

// Point returns the fix as a golang-geo point.
func (f Fix) Point() *geo.Point {
	return geo.NewPoint(f.Latitude, f.Longitude)
}

// DistanceTo returns the great-circle distance to other in metres.
func (f Fix) DistanceTo(other Fix) float64 {
	return f.Point().GreatCircleDistance(other.Point()) * 1000
}

// Priority is the accuracy/power tradeoff of a fused location request.
type Priority int

const (
	PriorityHighAccuracy Priority = iota
	PriorityBalanced
	PriorityLowPower
)

func (p Priority) String() string {
	switch p {
	case PriorityHighAccuracy:
		return "high_accuracy"
	case PriorityBalanced:
		return "balanced"
	case PriorityLowPower:
		return "low_power"
	default:
		return "unknown"
	}
}

// ParsePriority maps a config name back to a Priority.
func ParsePriority(name string) (Priority, bool) {
	for _, p := range []Priority{PriorityHighAccuracy, PriorityBalanced, PriorityLowPower} {
		if p.String() == name {
			return p, true
		}
	}
	return PriorityBalanced, false
}

// LocationRequest configures continuous fused updates.
type LocationRequest struct {
	Priority Priority
	Interval time.Duration
}

// LocationResult is a batch of fixes delivered by the fused client.
type LocationResult struct {
	Locations []Fix
}

// LocationCallback receives fused location batches.
type LocationCallback interface {
	OnLocationResult(result LocationResult)
}

// FusedLocationClient is the vendor-provided positioning service.
type FusedLocationClient interface {
	// LastLocation returns the cached last fix, or nil if there is none.
	LastLocation(ctx context.Context) (*Fix, error)
	// RequestLocationUpdates delivers results to cb on looper until removed.
	RequestLocationUpdates(req LocationRequest, cb LocationCallback, looper *Looper) error
	RemoveLocationUpdates(cb LocationCallback) error
}

// LocationListener receives updates from the LocationManager.
type LocationListener interface {
	OnLocationChanged(fix Fix)
	OnProviderEnabled(provider string)
	OnProviderDisabled(provider string)
}

// LocationManager is the legacy, provider-addressed positioning service.
type LocationManager interface {
	RequestLocationUpdates(provider string, minTime time.Duration, minDistance float64, l LocationListener, looper *Looper) error
	RemoveUpdates(l LocationListener) error
}
