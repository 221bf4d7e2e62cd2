package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/internal/models"
	"github.com/benmeehan/geosense/pkg/bearing"
	"github.com/benmeehan/geosense/pkg/identity"
	"github.com/benmeehan/geosense/pkg/stream"
)

// BearingSource opens a bearing update stream.
type BearingSource func(ctx context.Context) *stream.Stream[bearing.Bearing]

// BearingService publishes compass bearings to an MQTT topic.
type BearingService struct {
	consumer[bearing.Bearing]
}

// NewBearingService creates a BearingService. source names the sensor path
// ("rotation" or "fused").
func NewBearingService(source, topic string, qos int, open BearingSource, deviceInfo identity.DeviceInfoInterface,
	publisher Publisher, backoff Backoff, logger zerolog.Logger) *BearingService {
	return &BearingService{consumer[bearing.Bearing]{
		name:  "bearing",
		topic: topic,
		qos:   qos,
		open:  open,
		encode: func(b bearing.Bearing) any {
			return models.Bearing{
				DeviceID:  deviceInfo.GetDeviceID(),
				Source:    source,
				Timestamp: time.Now(),
				Azimuth:   b.Azimuth,
				Accuracy:  b.Accuracy.String(),
			}
		},
		permanent: isPermanentType[*bearing.MissingSensorError],
		publisher: publisher,
		backoff:   backoff,
		logger:    logger.With().Str("service", "bearing").Logger(),
	}}
}
