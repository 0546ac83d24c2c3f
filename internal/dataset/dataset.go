// Package dataset loads the station and measurement CSV exports into the
// observation store.
package dataset

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"surfsup/internal/modules/climate/types"
)

const (
	insertStationSQL     = `INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`
	insertMeasurementSQL = `INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`
)

// Result counts the rows written by Import.
type Result struct {
	Stations     int
	Measurements int
}

// Sources are the CSV inputs. Either may be nil to skip that table.
type Sources struct {
	Stations     io.Reader
	Measurements io.Reader
}

// Import writes both CSV inputs in a single transaction. With replace set,
// the tables are emptied first, so a failed import leaves the previous
// dataset untouched.
func Import(ctx context.Context, db *sql.DB, src Sources, replace bool) (Result, error) {
	var res Result

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("rollback import", "error", err)
		}
	}()

	if replace {
		var tables []string
		if src.Measurements != nil {
			tables = append(tables, "measurement")
		}
		if src.Stations != nil {
			tables = append(tables, "station")
		}
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return res, fmt.Errorf("clear %s: %w", table, err)
			}
		}
	}

	if src.Stations != nil {
		stations, err := ReadStations(src.Stations)
		if err != nil {
			return res, err
		}
		for _, s := range stations {
			if _, err := tx.ExecContext(ctx, insertStationSQL, s.ID, s.Name, s.Latitude, s.Longitude, s.Elevation); err != nil {
				return res, fmt.Errorf("insert station %s: %w", s.ID, err)
			}
		}
		res.Stations = len(stations)
	}

	if src.Measurements != nil {
		observations, err := ReadMeasurements(src.Measurements)
		if err != nil {
			return res, err
		}
		stmt, err := tx.PrepareContext(ctx, insertMeasurementSQL)
		if err != nil {
			return res, fmt.Errorf("prepare measurement insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()
		for _, o := range observations {
			if _, err := stmt.ExecContext(ctx, o.StationID, o.Date, o.Precipitation, o.Temperature); err != nil {
				return res, fmt.Errorf("insert measurement %s %s: %w", o.StationID, o.Date, err)
			}
		}
		res.Measurements = len(observations)
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// ReadStations parses station,name,latitude,longitude,elevation rows. Only
// station and name are required columns.
func ReadStations(r io.Reader) ([]types.Station, error) {
	rows, cols, err := readCSV(r, "station", "name")
	if err != nil {
		return nil, fmt.Errorf("stations csv: %w", err)
	}
	out := make([]types.Station, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		s := types.Station{
			ID:   field(rec, cols, "station"),
			Name: field(rec, cols, "name"),
		}
		if s.ID == "" {
			return nil, fmt.Errorf("stations csv line %d: empty station", line)
		}
		for col, dst := range map[string]**float64{"latitude": &s.Latitude, "longitude": &s.Longitude, "elevation": &s.Elevation} {
			v, err := optionalFloat(field(rec, cols, col))
			if err != nil {
				return nil, fmt.Errorf("stations csv line %d %s: %w", line, col, err)
			}
			*dst = v
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadMeasurements parses station,date,prcp,tobs rows. An empty prcp is a
// missing reading and stays NULL.
func ReadMeasurements(r io.Reader) ([]types.Observation, error) {
	rows, cols, err := readCSV(r, "station", "date", "prcp", "tobs")
	if err != nil {
		return nil, fmt.Errorf("measurements csv: %w", err)
	}
	out := make([]types.Observation, 0, len(rows))
	for i, rec := range rows {
		line := i + 2
		o := types.Observation{StationID: field(rec, cols, "station")}
		if o.StationID == "" {
			return nil, fmt.Errorf("measurements csv line %d: empty station", line)
		}
		d, err := types.ParseDate(field(rec, cols, "date"))
		if err != nil {
			return nil, fmt.Errorf("measurements csv line %d: %w", line, err)
		}
		o.Date = types.FormatDate(d)
		if o.Precipitation, err = optionalFloat(field(rec, cols, "prcp")); err != nil {
			return nil, fmt.Errorf("measurements csv line %d prcp: %w", line, err)
		}
		tobs, err := strconv.ParseFloat(field(rec, cols, "tobs"), 64)
		if err != nil {
			return nil, fmt.Errorf("measurements csv line %d tobs: %w", line, err)
		}
		o.Temperature = tobs
		out = append(out, o)
	}
	return out, nil
}

func readCSV(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range required {
		if _, ok := cols[c]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", c)
		}
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
