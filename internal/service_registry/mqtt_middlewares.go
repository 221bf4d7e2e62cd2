package service_registry

import (
	mqtt_middleware "github.com/benmeehan/geosense/internal/middlewares/mqtt"
	"github.com/benmeehan/geosense/internal/utils"
)

// InitializeMiddlewares sets up the publish chain based on configuration.
func (sr *ServiceRegistry) InitializeMiddlewares(config *utils.Config) *mqtt_middleware.ChainedMQTTClient {
	var middlewares []mqtt_middleware.MQTTMiddleware

	// Ordered middleware definitions
	middlewaresInOrder := []struct {
		name        string
		enabled     bool
		constructor func() mqtt_middleware.MQTTMiddleware
	}{
		{
			name:    "throttle",
			enabled: config.Middlewares.Throttle.Enabled,
			constructor: func() mqtt_middleware.MQTTMiddleware {
				return mqtt_middleware.NewThrottleMiddleware(config.Middlewares.Throttle.MinInterval, sr.Logger)
			},
		},
	}

	for _, mw := range middlewaresInOrder {
		if mw.enabled {
			middlewares = append(middlewares, mw.constructor())
			sr.Logger.Info().Str("middleware", mw.name).Msg("Middleware initialized")
		} else {
			sr.Logger.Debug().Str("middleware", mw.name).Msg("Middleware is disabled, skipping")
		}
	}

	chainedClient := mqtt_middleware.NewChainedMQTTClient(sr.mqttClient, config.MQTT.PublishTimeout, middlewares...)
	sr.Logger.Info().Int("middleware_count", len(middlewares)).Msg("Middleware chain initialized")
	return chainedClient
}
