package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"surfsup/internal/config"
	"surfsup/internal/db"
	"surfsup/internal/httpapi"
	"surfsup/internal/modules/climate"
	climateviews "surfsup/internal/modules/climate/views"
	"surfsup/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.Driver,
		"dbPath", cfg.Path,
		"dbReadOnly", cfg.ReadOnly,
		"dbMaxOpenConns", cfg.MaxOpenConns,
		"dbMaxIdleConns", cfg.MaxIdleConns,
		"dbConnMaxLifetime", cfg.ConnMaxLifetime,
		"cacheTTL", cfg.CacheTTL,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTopic", cfg.MQTTTopic,
	)

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()
	logger.Info("database connection successful")

	if err := climateviews.LoadTemplates(); err != nil {
		return err
	}

	mux := httpapi.NewMux(dbConn)

	// The handler must be set before Connect so the on-connect subscription
	// never delivers to an empty handler.
	var subscriber *mqtt.Subscriber
	var events mqtt.EventSubscriber
	if cfg.MQTTBroker != "" {
		subscriber = mqtt.NewSubscriber(mqtt.OptionsFromConfig(cfg), logger)
		events = subscriber
	}
	climate.RegisterFeature(mux, dbConn, cfg.CacheTTL, events, logger)

	if subscriber != nil {
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			// Queries keep working; the cache then only expires by TTL.
			logger.Warn("mqtt connection failed (continuing without dataset events)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if subscriber != nil {
			subscriber.Disconnect()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		logger.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
