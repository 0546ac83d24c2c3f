package service

import (
	"log/slog"

	"surfsup/internal/mqtt"
)

// RegisterRefreshHandler flushes the service's cached results whenever the
// dataset is reported as reloaded.
func RegisterRefreshHandler(subscriber mqtt.EventSubscriber, svc ClimateService, logger *slog.Logger) {
	subscriber.SetMessageHandler(func(ev mqtt.DatasetEvent) error {
		logger.Info("dataset reloaded",
			"source", ev.Source,
			"at", ev.At,
		)
		svc.FlushCache()
		return nil
	})
}
