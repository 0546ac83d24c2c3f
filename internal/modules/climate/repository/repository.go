package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"

	"surfsup/internal/metrics"
	"surfsup/internal/modules/climate/types"
)

//go:embed sql/get-date-bounds.sql
var getDateBoundsSQL string

//go:embed sql/get-precipitation-since.sql
var getPrecipitationSinceSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

//go:embed sql/get-busiest-station.sql
var getBusiestStationSQL string

//go:embed sql/get-station-temperatures-since.sql
var getStationTemperaturesSinceSQL string

//go:embed sql/get-temperature-summary.sql
var getTemperatureSummarySQL string

// ClimateRepository hands out request-scoped sessions on the observation
// store. Callers must Close every session they open.
type ClimateRepository interface {
	Open(ctx context.Context) (Session, error)
}

// Session is a single store connection held for the duration of one request.
type Session interface {
	DateBounds() (types.DateBounds, error)
	PrecipitationSince(start string) ([]types.Observation, error)
	Stations() ([]types.Station, error)
	// BusiestStation reports false when there are no observations.
	BusiestStation() (string, bool, error)
	TemperaturesSince(stationID string, start string) ([]types.Observation, error)
	TemperatureSummary(r types.DateRange) ([]types.TemperatureSummary, error)
	Close() error
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) ClimateRepository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) Open(ctx context.Context) (Session, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	metrics.DBSessionsOpen.Inc()
	return &sessionImpl{ctx: ctx, conn: conn}, nil
}

type sessionImpl struct {
	ctx    context.Context
	conn   *sql.Conn
	closed bool
}

func (s *sessionImpl) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	metrics.DBSessionsOpen.Dec()
	return s.conn.Close()
}

func (s *sessionImpl) DateBounds() (types.DateBounds, error) {
	var earliest, latest sql.NullString
	if err := s.conn.QueryRowContext(s.ctx, getDateBoundsSQL).Scan(&earliest, &latest); err != nil {
		return types.DateBounds{}, fmt.Errorf("date bounds: %w", err)
	}
	return types.DateBounds{Earliest: earliest.String, Latest: latest.String}, nil
}

func (s *sessionImpl) PrecipitationSince(start string) ([]types.Observation, error) {
	rows, err := s.conn.QueryContext(s.ctx, getPrecipitationSinceSQL, start)
	if err != nil {
		return nil, fmt.Errorf("precipitation since %s: %w", start, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close precipitation rows", "error", err)
		}
	}()
	out := make([]types.Observation, 0)
	for rows.Next() {
		var o types.Observation
		var prcp sql.NullFloat64
		if err := rows.Scan(&o.Date, &prcp); err != nil {
			return nil, err
		}
		if prcp.Valid {
			v := prcp.Float64
			o.Precipitation = &v
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sessionImpl) Stations() ([]types.Station, error) {
	rows, err := s.conn.QueryContext(s.ctx, getStationsSQL)
	if err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close stations rows", "error", err)
		}
	}()
	out := make([]types.Station, 0)
	for rows.Next() {
		var st types.Station
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *sessionImpl) BusiestStation() (string, bool, error) {
	var id string
	err := s.conn.QueryRowContext(s.ctx, getBusiestStationSQL).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("busiest station: %w", err)
	}
	return id, true, nil
}

func (s *sessionImpl) TemperaturesSince(stationID string, start string) ([]types.Observation, error) {
	rows, err := s.conn.QueryContext(s.ctx, getStationTemperaturesSinceSQL, stationID, start)
	if err != nil {
		return nil, fmt.Errorf("temperatures for %s since %s: %w", stationID, start, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close temperature rows", "error", err)
		}
	}()
	out := make([]types.Observation, 0)
	for rows.Next() {
		o := types.Observation{StationID: stationID}
		if err := rows.Scan(&o.Date, &o.Temperature); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *sessionImpl) TemperatureSummary(r types.DateRange) ([]types.TemperatureSummary, error) {
	rows, err := s.conn.QueryContext(s.ctx, getTemperatureSummarySQL, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("temperature summary %s..%s: %w", r.Start, r.End, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close summary rows", "error", err)
		}
	}()
	out := make([]types.TemperatureSummary, 0)
	for rows.Next() {
		var rec types.TemperatureSummary
		if err := rows.Scan(&rec.Date, &rec.Min, &rec.Max, &rec.Mean); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
