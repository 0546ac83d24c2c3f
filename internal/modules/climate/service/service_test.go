package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"surfsup/internal/modules/climate/repository"
	"surfsup/internal/modules/climate/types"
	"surfsup/internal/mqtt"
)

type mockSession struct {
	repo *mockRepo
}

func (m *mockSession) DateBounds() (types.DateBounds, error) {
	return m.repo.bounds, m.repo.boundsErr
}

func (m *mockSession) PrecipitationSince(start string) ([]types.Observation, error) {
	m.repo.precipStart = start
	return m.repo.precip, m.repo.precipErr
}

func (m *mockSession) Stations() ([]types.Station, error) {
	return m.repo.stations, m.repo.stationsErr
}

func (m *mockSession) BusiestStation() (string, bool, error) {
	return m.repo.busiest, m.repo.busiest != "", m.repo.busiestErr
}

func (m *mockSession) TemperaturesSince(stationID string, start string) ([]types.Observation, error) {
	m.repo.tobsStation = stationID
	m.repo.tobsStart = start
	return m.repo.tobs, nil
}

func (m *mockSession) TemperatureSummary(r types.DateRange) ([]types.TemperatureSummary, error) {
	m.repo.summaryRange = r
	return m.repo.summary, m.repo.summaryErr
}

func (m *mockSession) Close() error {
	m.repo.closed++
	return nil
}

type mockRepo struct {
	openErr error
	opened  int
	closed  int

	bounds      types.DateBounds
	boundsErr   error
	precip      []types.Observation
	precipErr   error
	precipStart string
	stations    []types.Station
	stationsErr error
	busiest     string
	busiestErr  error
	tobs        []types.Observation
	tobsStation string
	tobsStart   string
	summary     []types.TemperatureSummary
	summaryErr  error

	summaryRange types.DateRange
}

func (m *mockRepo) Open(ctx context.Context) (repository.Session, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened++
	return &mockSession{repo: m}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr(v float64) *float64 { return &v }

func assertBalanced(t *testing.T, repo *mockRepo) {
	t.Helper()
	if repo.opened != repo.closed {
		t.Errorf("sessions opened=%d closed=%d; every session must be released", repo.opened, repo.closed)
	}
}

func TestPrecipitation(t *testing.T) {
	repo := &mockRepo{
		bounds: types.DateBounds{Earliest: "2010-01-01", Latest: "2017-08-23"},
		precip: []types.Observation{
			{Date: "2016-08-23", Precipitation: ptr(0.15)},
			{Date: "2016-08-23", Precipitation: nil},
			{Date: "2017-08-23", Precipitation: ptr(0)},
		},
	}
	svc := NewService(repo, 0, quietLogger())

	got, err := svc.Precipitation(context.Background())
	if err != nil {
		t.Fatalf("Precipitation: %v", err)
	}
	if repo.precipStart != "2016-08-23" {
		t.Errorf("window start = %q; want 2016-08-23", repo.precipStart)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records; want 3", len(got))
	}
	if v, ok := got[1]["2016-08-23"]; !ok || v != nil {
		t.Errorf("record[1] = %v; want null precipitation", got[1])
	}
	if v := got[0]["2016-08-23"]; v == nil || *v != 0.15 {
		t.Errorf("record[0] = %v", got[0])
	}
	if opened := repo.opened; opened != 1 {
		t.Errorf("sessions opened = %d; want 1", opened)
	}
	assertBalanced(t, repo)
}

func TestPrecipitation_EmptyStore(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 0, quietLogger())

	got, err := svc.Precipitation(context.Background())
	if err != nil {
		t.Fatalf("Precipitation: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v; want empty non-nil", got)
	}
	assertBalanced(t, repo)
}

func TestStations(t *testing.T) {
	repo := &mockRepo{stations: []types.Station{
		{ID: "USC00519397", Name: "WAIKIKI 717.2, HI US"},
		{ID: "USC00513117", Name: "KANEOHE 838.1, HI US"},
	}}
	svc := NewService(repo, 0, quietLogger())

	got, err := svc.Stations(context.Background())
	if err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d; want 2", len(got))
	}
	if got[0]["USC00519397"] != "WAIKIKI 717.2, HI US" || len(got[0]) != 1 {
		t.Errorf("record[0] = %v", got[0])
	}
	assertBalanced(t, repo)
}

func TestMostActiveTemperatures(t *testing.T) {
	repo := &mockRepo{
		bounds:  types.DateBounds{Earliest: "2010-01-01", Latest: "2016-02-29"},
		busiest: "USC00519281",
		tobs: []types.Observation{
			{StationID: "USC00519281", Date: "2015-03-01", Temperature: 70},
			{StationID: "USC00519281", Date: "2016-02-29", Temperature: 72},
		},
	}
	svc := NewService(repo, 0, quietLogger())

	got, err := svc.MostActiveTemperatures(context.Background())
	if err != nil {
		t.Fatalf("MostActiveTemperatures: %v", err)
	}
	if repo.tobsStation != "USC00519281" {
		t.Errorf("station = %q", repo.tobsStation)
	}
	if repo.tobsStart != "2015-02-28" {
		t.Errorf("window start = %q; want 2015-02-28", repo.tobsStart)
	}
	if len(got) != 2 || got[1]["2016-02-29"] != 72 {
		t.Errorf("got %v", got)
	}
	if repo.opened != 1 {
		t.Errorf("sessions opened = %d; want 1", repo.opened)
	}
	assertBalanced(t, repo)
}

func TestMostActiveTemperatures_NoObservations(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 0, quietLogger())

	got, err := svc.MostActiveTemperatures(context.Background())
	if err != nil {
		t.Fatalf("MostActiveTemperatures: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got %v; want empty", got)
	}
	assertBalanced(t, repo)
}

func TestTemperatureSummary(t *testing.T) {
	repo := &mockRepo{summary: []types.TemperatureSummary{{Date: "2017-01-01", Min: 60, Max: 80, Mean: 70}}}
	svc := NewService(repo, 0, quietLogger())

	r := types.DateRange{Start: "2017-01-01", End: "2017-01-31"}
	got, err := svc.TemperatureSummary(context.Background(), r)
	if err != nil {
		t.Fatalf("TemperatureSummary: %v", err)
	}
	if repo.summaryRange != r {
		t.Errorf("range = %+v; want %+v", repo.summaryRange, r)
	}
	if len(got) != 1 {
		t.Errorf("got %v", got)
	}
	assertBalanced(t, repo)
}

func TestTemperatureSummary_NilBecomesEmpty(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 0, quietLogger())

	got, err := svc.TemperatureSummary(context.Background(), types.DateRange{Start: "2017-01-01"})
	if err != nil {
		t.Fatalf("TemperatureSummary: %v", err)
	}
	if got == nil {
		t.Error("got nil; want empty slice")
	}
}

func TestErrorsReleaseSession(t *testing.T) {
	dbErr := errors.New("disk I/O error")
	tests := []struct {
		name string
		repo *mockRepo
		call func(ClimateService) error
	}{
		{
			name: "bounds",
			repo: &mockRepo{boundsErr: dbErr},
			call: func(s ClimateService) error { _, err := s.Bounds(context.Background()); return err },
		},
		{
			name: "precipitation window",
			repo: &mockRepo{boundsErr: dbErr},
			call: func(s ClimateService) error { _, err := s.Precipitation(context.Background()); return err },
		},
		{
			name: "precipitation rows",
			repo: &mockRepo{bounds: types.DateBounds{Latest: "2017-08-23"}, precipErr: dbErr},
			call: func(s ClimateService) error { _, err := s.Precipitation(context.Background()); return err },
		},
		{
			name: "stations",
			repo: &mockRepo{stationsErr: dbErr},
			call: func(s ClimateService) error { _, err := s.Stations(context.Background()); return err },
		},
		{
			name: "busiest",
			repo: &mockRepo{busiestErr: dbErr},
			call: func(s ClimateService) error { _, err := s.MostActiveTemperatures(context.Background()); return err },
		},
		{
			name: "summary",
			repo: &mockRepo{summaryErr: dbErr},
			call: func(s ClimateService) error {
				_, err := s.TemperatureSummary(context.Background(), types.DateRange{Start: "2017-01-01"})
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.repo, time.Minute, quietLogger())
			if err := tt.call(svc); !errors.Is(err, dbErr) {
				t.Fatalf("error = %v; want %v", err, dbErr)
			}
			if tt.repo.opened != 1 {
				t.Errorf("opened = %d; want 1", tt.repo.opened)
			}
			assertBalanced(t, tt.repo)

			// Errors are not cached.
			_ = tt.call(svc)
			if tt.repo.opened != 2 {
				t.Errorf("opened after retry = %d; want 2", tt.repo.opened)
			}
		})
	}
}

func TestOpenError(t *testing.T) {
	openErr := errors.New("unable to open database file")
	svc := NewService(&mockRepo{openErr: openErr}, 0, quietLogger())

	if _, err := svc.Stations(context.Background()); !errors.Is(err, openErr) {
		t.Fatalf("error = %v; want %v", err, openErr)
	}
}

func TestCache(t *testing.T) {
	repo := &mockRepo{stations: []types.Station{{ID: "A", Name: "Alpha"}}}
	svc := NewService(repo, time.Minute, quietLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Stations(ctx); err != nil {
			t.Fatalf("Stations: %v", err)
		}
	}
	if repo.opened != 1 {
		t.Errorf("opened = %d; want 1 with cache", repo.opened)
	}

	svc.FlushCache()
	if _, err := svc.Stations(ctx); err != nil {
		t.Fatalf("Stations: %v", err)
	}
	if repo.opened != 2 {
		t.Errorf("opened after flush = %d; want 2", repo.opened)
	}
}

func TestCache_SummaryNotCached(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, time.Minute, quietLogger())
	ctx := context.Background()

	_, _ = svc.Stations(ctx)
	_, _ = svc.Precipitation(ctx)
	_, _ = svc.MostActiveTemperatures(ctx)
	before := repo.opened

	day := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	const calls = 500
	for i := 0; i < calls; i++ {
		start := day.AddDate(0, 0, i).Format("2006-01-02")
		_, _ = svc.TemperatureSummary(ctx, types.DateRange{Start: start})
		_, _ = svc.TemperatureSummary(ctx, types.DateRange{Start: start, End: "2017-08-23"})
	}

	if got := repo.opened - before; got != 2*calls {
		t.Errorf("summary opens = %d; want %d", got, 2*calls)
	}
	if n := svc.(*serviceImpl).cache.ItemCount(); n > 4 {
		t.Errorf("cached items = %d; want at most 4 fixed keys", n)
	}
}

func TestCache_Disabled(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, 0, quietLogger())
	ctx := context.Background()

	_, _ = svc.Stations(ctx)
	_, _ = svc.Stations(ctx)
	svc.FlushCache()
	if repo.opened != 2 {
		t.Errorf("opened = %d; want 2 without cache", repo.opened)
	}
}

type fakeSubscriber struct {
	handler func(ev mqtt.DatasetEvent) error
}

func (f *fakeSubscriber) SetMessageHandler(handler func(ev mqtt.DatasetEvent) error) {
	f.handler = handler
}

func TestRegisterRefreshHandler(t *testing.T) {
	repo := &mockRepo{stations: []types.Station{{ID: "A", Name: "Alpha"}}}
	svc := NewService(repo, time.Hour, quietLogger())
	sub := &fakeSubscriber{}
	RegisterRefreshHandler(sub, svc, quietLogger())
	if sub.handler == nil {
		t.Fatal("handler not registered")
	}

	ctx := context.Background()
	_, _ = svc.Stations(ctx)
	_, _ = svc.Stations(ctx)
	if repo.opened != 1 {
		t.Fatalf("opened = %d; want 1", repo.opened)
	}

	if err := sub.handler(mqtt.DatasetEvent{Event: mqtt.EventReloaded, Source: "import", At: time.Now()}); err != nil {
		t.Fatalf("handler: %v", err)
	}
	_, _ = svc.Stations(ctx)
	if repo.opened != 2 {
		t.Errorf("opened after reload = %d; want 2", repo.opened)
	}
}
