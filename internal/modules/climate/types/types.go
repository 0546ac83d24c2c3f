package types

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the on-disk and on-wire date format of the dataset.
const DateLayout = "2006-01-02"

var (
	ErrInvalidDate  = errors.New("invalid date")
	ErrInvalidRange = errors.New("invalid date range")
)

// Observation is one row of the measurement table.
type Observation struct {
	StationID     string   `json:"station"`
	Date          string   `json:"date"`
	Precipitation *float64 `json:"prcp"`
	Temperature   float64  `json:"tobs"`
}

// Station is one row of the station table.
type Station struct {
	ID        string   `json:"station"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Elevation *float64 `json:"elevation,omitempty"`
}

// DateBounds holds the earliest and latest observed dates. Both are empty
// when the store holds no observations.
type DateBounds struct {
	Earliest string
	Latest   string
}

func (b DateBounds) Empty() bool {
	return b.Latest == ""
}

type TemperatureSummary struct {
	Date string  `json:"Date"`
	Min  float64 `json:"Minimum Temp"`
	Max  float64 `json:"Maximum Temp"`
	Mean float64 `json:"Mean Temp"`
}

// DateRange is an inclusive date filter. An empty End leaves the range open.
type DateRange struct {
	Start string
	End   string
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q (expected YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// NewDateRange validates start and optional end and returns them in
// canonical form.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, err
	}
	r := DateRange{Start: FormatDate(s)}
	if end == "" {
		return r, nil
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, err
	}
	if e.Before(s) {
		return DateRange{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start, end)
	}
	r.End = FormatDate(e)
	return r, nil
}

// YearBefore steps back twelve calendar months. The day is clamped to the
// end of the target month, so 2016-02-29 becomes 2015-02-28.
func YearBefore(t time.Time) time.Time {
	y, m, d := t.Date()
	lastDay := time.Date(y-1, m+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y-1, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// WindowStart returns the first date of the trailing twelve-month window
// that ends on latest.
func WindowStart(latest string) (string, error) {
	t, err := ParseDate(latest)
	if err != nil {
		return "", err
	}
	return FormatDate(YearBefore(t)), nil
}
