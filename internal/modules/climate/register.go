package climate

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"surfsup/internal/modules/climate/controller"
	"surfsup/internal/modules/climate/repository"
	"surfsup/internal/modules/climate/service"
	"surfsup/internal/mqtt"
)

// RegisterFeature wires the climate routes onto mux. When subscriber is
// non-nil, dataset reload events flush the response cache.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, cacheTTL time.Duration, subscriber mqtt.EventSubscriber, logger *slog.Logger) {
	climateRepository := repository.NewRepository(db)
	climateService := service.NewService(climateRepository, cacheTTL, logger)
	if subscriber != nil {
		service.RegisterRefreshHandler(subscriber, climateService, logger)
	}
	climateController := controller.NewClimateController(climateService, logger)
	climateController.RegisterRoutes(mux)
}
