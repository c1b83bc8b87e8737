// Package main is the entry point for the charger gateway service.
// It initializes all components and manages the application lifecycle.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/WookyDO/huawei-emma-charger/internal/adapter/config"
	"github.com/WookyDO/huawei-emma-charger/internal/adapter/modbus"
	"github.com/WookyDO/huawei-emma-charger/internal/adapter/mqtt"
	"github.com/WookyDO/huawei-emma-charger/internal/health"
	"github.com/WookyDO/huawei-emma-charger/internal/metrics"
	"github.com/WookyDO/huawei-emma-charger/internal/service"
	"github.com/WookyDO/huawei-emma-charger/pkg/logging"
)

const (
	serviceName    = "charger-gateway"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(serviceName, serviceVersion, logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().Str("env", cfg.Environment).Msg("Starting charger gateway")

	// Load register catalog (built-in unless overridden)
	catalog, err := config.LoadCatalog(cfg.RegistersConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load register catalog")
	}
	logger.Info().Int("registers", len(catalog)).Msg("Register catalog loaded")

	// Initialize metrics
	metricsRegistry := metrics.NewRegistry()

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Modbus gateway client
	gatewayClient, err := modbus.NewClient(modbus.ClientConfig{
		Host:        cfg.Gateway.Host,
		Port:        cfg.Gateway.Port,
		UnitID:      byte(cfg.Gateway.UnitID),
		Timeout:     cfg.Gateway.ConnectTimeout,
		IdleTimeout: cfg.Gateway.IdleTimeout,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create Modbus client")
	}
	defer gatewayClient.Close()

	// Probe the gateway before the poll loop starts. Failure is fatal
	// only when validation is requested; otherwise the loop will keep
	// retrying on its own schedule.
	if cfg.Gateway.ValidateOnStart {
		if err := gatewayClient.Connect(ctx); err != nil {
			logger.Fatal().Err(err).
				Str("host", cfg.Gateway.Host).
				Int("port", cfg.Gateway.Port).
				Msg("Gateway connection validation failed")
		}
		logger.Info().
			Str("host", cfg.Gateway.Host).
			Int("port", cfg.Gateway.Port).
			Int("unit_id", cfg.Gateway.UnitID).
			Msg("Gateway connection validated")
	}

	// Initialize MQTT publisher
	var publisher service.Publisher
	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher, err = mqtt.NewPublisher(mqtt.Config{
			BrokerURL:      cfg.MQTT.BrokerURL,
			ClientID:       cfg.MQTT.ClientID,
			Username:       cfg.MQTT.Username,
			Password:       cfg.MQTT.Password,
			TopicPrefix:    cfg.MQTT.TopicPrefix,
			QoS:            cfg.MQTT.QoS,
			Retain:         cfg.MQTT.Retain,
			KeepAlive:      cfg.MQTT.KeepAlive,
			ConnectTimeout: cfg.MQTT.ConnectTimeout,
			PublishTimeout: cfg.MQTT.PublishTimeout,
			ReconnectDelay: cfg.MQTT.ReconnectDelay,
		}, logger, metricsRegistry)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create MQTT publisher")
		}
		if err := mqttPublisher.Connect(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to MQTT broker")
		}
		defer mqttPublisher.Disconnect()
		publisher = mqttPublisher
	} else {
		logger.Warn().Msg("MQTT publishing disabled, readings will not leave the process")
	}

	// Initialize coordinator and poll runner
	coordinator := service.NewCoordinator(service.CoordinatorConfig{
		ReadTimeout:     cfg.Polling.ReadTimeout,
		RediscoverEvery: cfg.Polling.RediscoverEvery,
		MaxPages:        cfg.Polling.MaxPages,
	}, gatewayClient, catalog, logger, metricsRegistry)

	runner := service.NewRunner(coordinator, publisher, cfg.Polling.Interval, logger)
	if err := runner.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start poll runner")
	}

	// Initialize health checker
	healthChecker := health.NewChecker(health.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
	healthChecker.AddCheck("gateway", gatewayClient)
	healthChecker.AddCheck("polling", coordinator)
	if mqttPublisher != nil {
		healthChecker.AddCheck("mqtt", mqttPublisher)
	}

	// Start HTTP server for health and metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthChecker.HealthHandler)
	mux.HandleFunc("/health/live", healthChecker.LivenessHandler)
	mux.HandleFunc("/health/ready", healthChecker.ReadinessHandler)
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		stats := coordinator.Stats()
		status := map[string]interface{}{
			"service":      serviceName,
			"version":      serviceVersion,
			"last_success": coordinator.LastSuccess(),
			"polling": map[string]uint64{
				"cycles_total":   stats.CyclesTotal,
				"cycles_failed":  stats.CyclesFailed,
				"readings_total": stats.ReadingsTotal,
				"read_errors":    stats.ReadErrors,
			},
			"transport": gatewayClient.Stats(),
		}
		if err := coordinator.LastError(); err != nil {
			status["last_error"] = err.Error()
		}
		if mqttPublisher != nil {
			status["mqtt"] = mqttPublisher.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTP.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	logger.Info().
		Str("gateway", fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)).
		Dur("interval", cfg.Polling.Interval).
		Int("http_port", cfg.HTTP.Port).
		Bool("mqtt", cfg.MQTT.Enabled).
		Msg("Charger gateway started successfully")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Polling.ShutdownTimeout)
	defer shutdownCancel()

	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping poll runner")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error shutting down HTTP server")
	}

	logger.Info().Msg("Charger gateway shutdown complete")
}
