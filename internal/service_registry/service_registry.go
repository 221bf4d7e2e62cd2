package service_registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/internal/services"
	"github.com/benmeehan/geosense/internal/utils"
	"github.com/benmeehan/geosense/pkg/bearing"
	"github.com/benmeehan/geosense/pkg/identity"
	"github.com/benmeehan/geosense/pkg/location"
	"github.com/benmeehan/geosense/pkg/mqtt"
	"github.com/benmeehan/geosense/pkg/platform"
	"github.com/benmeehan/geosense/pkg/stream"
)

// Service is the lifecycle every registered service implements. Stop must
// return only after the service released its subscriptions.
type Service interface {
	Start() error
	Stop() error
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	adapters    []func()           // Adapter Close funcs, run after services stop
	mqttClient  mqtt.MQTTClient
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]Service),
		mqttClient: mqttClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Services returns the registered service names in start order.
func (sr *ServiceRegistry) Services() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order, then closes the adapters.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	for _, closeAdapter := range sr.adapters {
		closeAdapter()
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deviceInfo identity.DeviceInfoInterface, host platform.Context) error {
	publisher := sr.InitializeMiddlewares(config)
	backoff := services.Backoff{Base: config.Retry.BaseDelay, Max: config.Retry.MaxBackoff}

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (Service, error)
	}{
		{
			name:    "fused_location",
			enabled: config.Services.FusedLocation.Enabled,
			constructor: func() (Service, error) {
				cfg := config.Services.FusedLocation
				priority, _ := platform.ParsePriority(cfg.Priority)
				adapter, err := location.NewFusedAdapter(host, sr.Logger)
				if err != nil {
					return nil, err
				}
				sr.adapters = append(sr.adapters, adapter.Close)
				req := platform.LocationRequest{Priority: priority, Interval: cfg.Interval}
				open := func(ctx context.Context) *stream.Stream[platform.Fix] {
					return adapter.Updates(ctx, req)
				}
				return services.NewLocationService("fused", cfg.Topic, cfg.QOS, open, deviceInfo, publisher, backoff, sr.Logger), nil
			},
		},
		{
			name:    "gps_location",
			enabled: config.Services.GPSLocation.Enabled,
			constructor: func() (Service, error) {
				cfg := config.Services.GPSLocation
				adapter, err := location.NewManagerAdapter(host, sr.Logger)
				if err != nil {
					return nil, err
				}
				sr.adapters = append(sr.adapters, adapter.Close)
				open := func(ctx context.Context) *stream.Stream[platform.Fix] {
					return adapter.Updates(ctx, cfg.Interval, cfg.MinDistance, cfg.Provider)
				}
				return services.NewLocationService("gps", cfg.Topic, cfg.QOS, open, deviceInfo, publisher, backoff, sr.Logger), nil
			},
		},
		{
			name:    "bearing",
			enabled: config.Services.Bearing.Enabled,
			constructor: func() (Service, error) {
				cfg := config.Services.Bearing
				rate, _ := platform.ParseSamplingRate(cfg.SamplingRate)
				adapter, err := bearing.NewAdapter(host, sr.Logger, bearing.WithSamplingRate(rate))
				if err != nil {
					return nil, err
				}
				sr.adapters = append(sr.adapters, adapter.Close)
				open := adapter.RotationUpdates
				if cfg.Source == utils.BearingSourceFused {
					open = adapter.FusedSensorUpdates
				}
				return services.NewBearingService(cfg.Source, cfg.Topic, cfg.QOS, open, deviceInfo, publisher, backoff, sr.Logger), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return fmt.Errorf("failed to create %s service: %w", svc.name, err)
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
