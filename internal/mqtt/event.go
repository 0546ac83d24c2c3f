package mqtt

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventReloaded announces that the observation store was repopulated.
const EventReloaded = "reloaded"

// DatasetEvent is the payload published on the dataset topic.
type DatasetEvent struct {
	Event  string    `json:"event"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

func decodeEvent(payload []byte) (DatasetEvent, error) {
	var ev DatasetEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return DatasetEvent{}, fmt.Errorf("decode dataset event: %w", err)
	}
	if err := validateEvent(ev); err != nil {
		return DatasetEvent{}, err
	}
	return ev, nil
}

func validateEvent(ev DatasetEvent) error {
	if ev.Event == "" {
		return fmt.Errorf("event is required")
	}
	if ev.Event != EventReloaded {
		return fmt.Errorf("unknown event %q", ev.Event)
	}
	if ev.At.IsZero() {
		return fmt.Errorf("at is required")
	}
	return nil
}
