package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/internal/models"
	"github.com/benmeehan/geosense/pkg/identity"
	"github.com/benmeehan/geosense/pkg/location"
	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/benmeehan/geosense/pkg/stream"
)

// LocationSource opens a location update stream.
type LocationSource func(ctx context.Context) *stream.Stream[platform.Fix]

// LocationService publishes every fix of a location stream to an MQTT topic.
type LocationService struct {
	consumer[platform.Fix]
}

// NewLocationService creates a LocationService. source labels the messages
// ("fused" or "gps") and open subscribes to the adapter.
func NewLocationService(source, topic string, qos int, open LocationSource, deviceInfo identity.DeviceInfoInterface,
	publisher Publisher, backoff Backoff, logger zerolog.Logger) *LocationService {
	return &LocationService{consumer[platform.Fix]{
		name:  source + " location",
		topic: topic,
		qos:   qos,
		open:  open,
		encode: func(fix platform.Fix) any {
			ts := fix.Time
			if ts.IsZero() {
				ts = time.Now()
			}
			return models.Location{
				DeviceID:  deviceInfo.GetDeviceID(),
				Source:    source,
				Provider:  fix.Provider,
				Timestamp: ts,
				Latitude:  fix.Latitude,
				Longitude: fix.Longitude,
				Altitude:  fix.Altitude,
				Accuracy:  fix.Accuracy,
				Speed:     fix.Speed,
			}
		},
		permanent: isPermanentType[*location.MissingPermissionError],
		publisher: publisher,
		backoff:   backoff,
		logger:    logger.With().Str("service", source+"_location").Logger(),
	}}
}
