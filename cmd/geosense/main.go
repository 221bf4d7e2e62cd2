package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benmeehan/geosense/internal/service_registry"
	"github.com/benmeehan/geosense/internal/utils"
	"github.com/benmeehan/geosense/pkg/file"
	"github.com/benmeehan/geosense/pkg/identity"
	"github.com/benmeehan/geosense/pkg/mqtt"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	flag.Parse()

	// Set up structured logging with JSON output
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(config.Log.Level); err == nil && config.Log.Level != "" {
		log = log.Level(level)
	}

	deviceInfo := identity.NewDeviceInfo(config.Identity.DeviceFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load device information")
	}
	log = log.With().Str("device_id", deviceInfo.GetDeviceID()).Logger()

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := config.MQTT.ClientID + "-" + uuid.NewString()
	log.Info().Str("client_id", clientID).Msg("Using MQTT client ID")

	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(config.MQTT.Broker, clientID, config.MQTT.CACertificate, config.MQTT.ConnectTimeout); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	host, err := service_registry.BuildHost(config, fileClient, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to assemble platform host")
	}

	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, log)
	if err := serviceRegistry.RegisterServices(config, deviceInfo, host); err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}
	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	mqttClient.Disconnect(250)
}
