package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"

	"surfsup/internal/metrics"
	"surfsup/internal/modules/climate/repository"
	"surfsup/internal/modules/climate/types"
)

// PrecipitationRecord maps one observation date to its precipitation.
// A nil value is a missing reading and encodes as null.
type PrecipitationRecord map[string]*float64

// StationRecord maps a station id to its name.
type StationRecord map[string]string

// TemperatureRecord maps one observation date to its temperature.
type TemperatureRecord map[string]float64

type ClimateService interface {
	Bounds(ctx context.Context) (types.DateBounds, error)
	Precipitation(ctx context.Context) ([]PrecipitationRecord, error)
	Stations(ctx context.Context) ([]StationRecord, error)
	MostActiveTemperatures(ctx context.Context) ([]TemperatureRecord, error)
	TemperatureSummary(ctx context.Context, r types.DateRange) ([]types.TemperatureSummary, error)
	// FlushCache drops every cached result; the next call reads the store.
	FlushCache()
}

type serviceImpl struct {
	repository repository.ClimateRepository
	cache      *cache.Cache
	logger     *slog.Logger
}

// NewService returns a ClimateService. A zero ttl disables result caching.
// Only the fixed-key operations are cached, so the cache holds at most one
// entry per route.
func NewService(repo repository.ClimateRepository, ttl time.Duration, logger *slog.Logger) ClimateService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &serviceImpl{repository: repo, logger: logger}
	if ttl > 0 {
		s.cache = cache.New(ttl, 2*ttl)
	}
	return s
}

func (s *serviceImpl) FlushCache() {
	if s.cache == nil {
		return
	}
	s.cache.Flush()
	metrics.CacheFlushes.Inc()
	s.logger.Info("response cache flushed")
}

// withSession opens a store session, runs fn on it and always releases it.
func (s *serviceImpl) withSession(ctx context.Context, fn func(repository.Session) error) error {
	session, err := s.repository.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Error("close store session", "error", err)
		}
	}()
	return fn(session)
}

func cached[T any](s *serviceImpl, key string, metricKey string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			metrics.CacheHits.WithLabelValues(metricKey).Inc()
			return v.(T), nil
		}
		metrics.CacheMisses.WithLabelValues(metricKey).Inc()
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
	return v, nil
}

func (s *serviceImpl) Bounds(ctx context.Context) (types.DateBounds, error) {
	return cached(s, "bounds", "bounds", func() (types.DateBounds, error) {
		var b types.DateBounds
		err := s.withSession(ctx, func(session repository.Session) error {
			var err error
			b, err = session.DateBounds()
			return err
		})
		return b, err
	})
}

func (s *serviceImpl) Precipitation(ctx context.Context) ([]PrecipitationRecord, error) {
	return cached(s, "precipitation", "precipitation", func() ([]PrecipitationRecord, error) {
		out := make([]PrecipitationRecord, 0)
		err := s.withSession(ctx, func(session repository.Session) error {
			start, ok, err := windowStart(session)
			if err != nil || !ok {
				return err
			}
			rows, err := session.PrecipitationSince(start)
			if err != nil {
				return err
			}
			for _, o := range rows {
				out = append(out, PrecipitationRecord{o.Date: o.Precipitation})
			}
			return nil
		})
		return out, err
	})
}

func (s *serviceImpl) Stations(ctx context.Context) ([]StationRecord, error) {
	return cached(s, "stations", "stations", func() ([]StationRecord, error) {
		out := make([]StationRecord, 0)
		err := s.withSession(ctx, func(session repository.Session) error {
			stations, err := session.Stations()
			if err != nil {
				return err
			}
			for _, st := range stations {
				out = append(out, StationRecord{st.ID: st.Name})
			}
			return nil
		})
		return out, err
	})
}

func (s *serviceImpl) MostActiveTemperatures(ctx context.Context) ([]TemperatureRecord, error) {
	return cached(s, "tobs", "tobs", func() ([]TemperatureRecord, error) {
		out := make([]TemperatureRecord, 0)
		err := s.withSession(ctx, func(session repository.Session) error {
			stationID, ok, err := session.BusiestStation()
			if err != nil || !ok {
				return err
			}
			start, ok, err := windowStart(session)
			if err != nil || !ok {
				return err
			}
			rows, err := session.TemperaturesSince(stationID, start)
			if err != nil {
				return err
			}
			s.logger.Debug("most active station", "station_id", stationID, "window_start", start, "rows", len(rows))
			for _, o := range rows {
				out = append(out, TemperatureRecord{o.Date: o.Temperature})
			}
			return nil
		})
		return out, err
	})
}

// TemperatureSummary always reads the store. Its results are keyed by
// caller-chosen dates, so they stay out of the response cache.
func (s *serviceImpl) TemperatureSummary(ctx context.Context, r types.DateRange) ([]types.TemperatureSummary, error) {
	var out []types.TemperatureSummary
	err := s.withSession(ctx, func(session repository.Session) error {
		var err error
		out, err = session.TemperatureSummary(r)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = make([]types.TemperatureSummary, 0)
	}
	return out, nil
}

// windowStart derives the trailing twelve-month window from the latest
// observed date. ok is false when there are no observations.
func windowStart(session repository.Session) (string, bool, error) {
	b, err := session.DateBounds()
	if err != nil {
		return "", false, err
	}
	if b.Empty() {
		return "", false, nil
	}
	start, err := types.WindowStart(b.Latest)
	if err != nil {
		return "", false, err
	}
	return start, true, nil
}
