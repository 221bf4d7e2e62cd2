package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/benmeehan/geosense/pkg/file"
	"github.com/benmeehan/geosense/pkg/platform"
)

// SupportedConfigVersions is the range of config file versions this build reads.
const SupportedConfigVersions = ">= 1.0.0, < 2.0.0"

// Config represents the structure of the configuration file.
type Config struct {
	Version string `yaml:"version"` // Config schema version (semver)

	Log struct {
		Level string `yaml:"level"` // zerolog level name
	} `yaml:"log"`

	MQTT struct {
		Broker         string        `yaml:"broker"`          // MQTT broker address
		ClientID       string        `yaml:"client_id"`       // MQTT client ID prefix
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate, empty for plain TCP
		ConnectTimeout time.Duration `yaml:"connect_timeout"` // Broker connect timeout
		PublishTimeout time.Duration `yaml:"publish_timeout"` // Per-publish broker ack timeout
	} `yaml:"mqtt"`

	Identity struct {
		DeviceFile string `yaml:"device_file"` // Path to the device identity file
	} `yaml:"identity"`

	Platform struct {
		Permissions     []string `yaml:"permissions"`      // Granted permissions (fine_location, coarse_location, ...)
		DisplayRotation int      `yaml:"display_rotation"` // Screen rotation in degrees
	} `yaml:"platform"`

	Backends struct {
		Geolocation struct {
			Enabled    bool          `yaml:"enabled"`      // Serve the fused location client
			MapsAPIKey string        `yaml:"maps_api_key"` // Google Maps API key
			ModemIndex int           `yaml:"modem_index"`  // ModemManager index used for cell towers
			Timeout    time.Duration `yaml:"timeout"`      // Geolocation request timeout
		} `yaml:"geolocation"`

		GPS struct {
			Enabled    bool   `yaml:"enabled"`     // Serve the NMEA location manager
			DevicePort string `yaml:"device_port"` // Serial port where the GPS receiver is attached
			BaudRate   int    `yaml:"baud_rate"`   // Serial baud rate
		} `yaml:"gps"`

		Sensors struct {
			Enabled bool   `yaml:"enabled"`  // Serve the IIO sensor manager
			IIORoot string `yaml:"iio_root"` // IIO sysfs root
		} `yaml:"sensors"`
	} `yaml:"backends"`

	Retry struct {
		BaseDelay  time.Duration `yaml:"base_delay"`  // First resubscribe delay after a stream error
		MaxBackoff time.Duration `yaml:"max_backoff"` // Upper bound on the resubscribe delay
	} `yaml:"retry"`

	Middlewares struct {
		Throttle struct {
			Enabled     bool          `yaml:"enabled"`      // Enable/disable per-topic publish throttling
			MinInterval time.Duration `yaml:"min_interval"` // Minimum gap between publishes on one topic
		} `yaml:"throttle"`
	} `yaml:"middlewares"`

	Services struct {
		FusedLocation struct {
			Topic    string        `yaml:"topic"`    // MQTT topic for fused location updates
			Enabled  bool          `yaml:"enabled"`  // Enable/disable the service
			QOS      int           `yaml:"qos"`      // MQTT QoS level
			Priority string        `yaml:"priority"` // high_accuracy, balanced or low_power
			Interval time.Duration `yaml:"interval"` // Requested update interval
		} `yaml:"fused_location"`

		GPSLocation struct {
			Topic       string        `yaml:"topic"`        // MQTT topic for location manager updates
			Enabled     bool          `yaml:"enabled"`      // Enable/disable the service
			QOS         int           `yaml:"qos"`          // MQTT QoS level
			Provider    string        `yaml:"provider"`     // Location provider name
			Interval    time.Duration `yaml:"interval"`     // Minimum time between updates
			MinDistance float64       `yaml:"min_distance"` // Minimum distance between updates in metres
		} `yaml:"gps_location"`

		Bearing struct {
			Topic        string `yaml:"topic"`         // MQTT topic for bearing updates
			Enabled      bool   `yaml:"enabled"`       // Enable/disable the service
			QOS          int    `yaml:"qos"`           // MQTT QoS level
			Source       string `yaml:"source"`        // rotation or fused
			SamplingRate string `yaml:"sampling_rate"` // normal, ui, game or fastest
		} `yaml:"bearing"`
	} `yaml:"services"`
}

// Bearing sources.
const (
	BearingSourceRotation = "rotation"
	BearingSourceFused    = "fused"
)

// LoadConfig loads the YAML configuration from the specified file, fills
// defaults and validates it.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.MQTT.ConnectTimeout == 0 {
		c.MQTT.ConnectTimeout = 10 * time.Second
	}
	if c.MQTT.PublishTimeout == 0 {
		c.MQTT.PublishTimeout = 5 * time.Second
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = time.Minute
	}
	if c.Services.FusedLocation.Priority == "" {
		c.Services.FusedLocation.Priority = platform.PriorityHighAccuracy.String()
	}
	if c.Services.GPSLocation.Provider == "" {
		c.Services.GPSLocation.Provider = platform.GPSProvider
	}
	if c.Services.Bearing.Source == "" {
		c.Services.Bearing.Source = BearingSourceRotation
	}
	if c.Services.Bearing.SamplingRate == "" {
		c.Services.Bearing.SamplingRate = platform.SamplingUI.String()
	}
}

// Validate checks the version gate and the enumerated fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("missing version")
	}
	v, err := semver.NewVersion(c.Version)
	if err != nil {
		return fmt.Errorf("version %q: %w", c.Version, err)
	}
	constraint, err := semver.NewConstraint(SupportedConfigVersions)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("version %s is not in %s", v, SupportedConfigVersions)
	}

	if _, err := platform.ParseGrants(c.Platform.Permissions); err != nil {
		return err
	}
	switch c.Platform.DisplayRotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("display_rotation %d is not one of 0, 90, 180, 270", c.Platform.DisplayRotation)
	}
	if _, ok := platform.ParsePriority(c.Services.FusedLocation.Priority); !ok {
		return fmt.Errorf("unknown fused_location priority %q", c.Services.FusedLocation.Priority)
	}
	if _, ok := platform.ParseSamplingRate(c.Services.Bearing.SamplingRate); !ok {
		return fmt.Errorf("unknown bearing sampling_rate %q", c.Services.Bearing.SamplingRate)
	}
	switch c.Services.Bearing.Source {
	case BearingSourceRotation, BearingSourceFused:
	default:
		return fmt.Errorf("unknown bearing source %q", c.Services.Bearing.Source)
	}
	if c.Retry.MaxBackoff < c.Retry.BaseDelay {
		return errors.New("retry max_backoff is shorter than base_delay")
	}
	return nil
}
