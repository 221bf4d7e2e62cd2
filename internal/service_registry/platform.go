package service_registry

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/internal/utils"
	"github.com/benmeehan/geosense/pkg/backend/geolocation"
	"github.com/benmeehan/geosense/pkg/backend/iio"
	"github.com/benmeehan/geosense/pkg/backend/nmea"
	"github.com/benmeehan/geosense/pkg/file"
	"github.com/benmeehan/geosense/pkg/platform"
)

// BuildHost assembles the platform context from the enabled backends.
// Disabled backends leave their accessor nil so adapters report the service
// as unavailable.
func BuildHost(config *utils.Config, fileClient file.FileOperations, logger zerolog.Logger) (*platform.Host, error) {
	grants, err := platform.ParseGrants(config.Platform.Permissions)
	if err != nil {
		return nil, err
	}
	host := &platform.Host{
		Grants: grants,
		Screen: platform.FixedDisplay(platform.RotationFromDegrees(config.Platform.DisplayRotation)),
	}

	if geo := config.Backends.Geolocation; geo.Enabled {
		client, err := geolocation.NewClient(geo.MapsAPIKey, geolocation.CommandScanner{ModemIndex: geo.ModemIndex}, geo.Timeout, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create geolocation client: %w", err)
		}
		host.Fused = client
	}

	if gps := config.Backends.GPS; gps.Enabled {
		host.Manager = nmea.NewLocationManager(gps.DevicePort, gps.BaudRate, nmea.OpenSerial, logger)
	}

	if sensors := config.Backends.Sensors; sensors.Enabled {
		root := sensors.IIORoot
		if root == "" {
			root = iio.DefaultRoot
		}
		manager, err := iio.NewSensorManager(root, fileClient, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create IIO sensor manager: %w", err)
		}
		host.Sensors = manager
	}

	logger.Info().
		Bool("fused", host.Fused != nil).
		Bool("gps", host.Manager != nil).
		Bool("sensors", host.Sensors != nil).
		Int("display_rotation", config.Platform.DisplayRotation).
		Msg("Platform host assembled")
	return host, nil
}
