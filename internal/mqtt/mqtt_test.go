package mqtt

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"surfsup/internal/config"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.Config{
		MQTTBroker:   "mosquitto",
		MQTTPort:     1884,
		MQTTClientID: "surfsup-server",
		MQTTTopic:    "surfsup/dataset",
	})
	if got := opts.brokerURL(); got != "tcp://mosquitto:1884" {
		t.Errorf("brokerURL = %q", got)
	}
	if opts.ClientID != "surfsup-server" || opts.Topic != "surfsup/dataset" {
		t.Errorf("opts = %+v", opts)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "valid", payload: `{"event":"reloaded","source":"import","at":"2024-05-01T10:00:00Z"}`},
		{name: "not json", payload: `reloaded`, wantErr: true},
		{name: "missing event", payload: `{"at":"2024-05-01T10:00:00Z"}`, wantErr: true},
		{name: "unknown event", payload: `{"event":"deleted","at":"2024-05-01T10:00:00Z"}`, wantErr: true},
		{name: "missing at", payload: `{"event":"reloaded"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := decodeEvent([]byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("decodeEvent(%s) = %+v, nil; want error", tt.payload, ev)
				}
				return
			}
			if err != nil {
				t.Fatalf("decodeEvent: %v", err)
			}
			if ev.Event != EventReloaded || ev.Source != "import" {
				t.Errorf("event = %+v", ev)
			}
			if !ev.At.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
				t.Errorf("at = %v", ev.At)
			}
		})
	}
}

func TestSubscriber_HandleMessage(t *testing.T) {
	s := NewSubscriber(Options{Broker: "127.0.0.1", Port: 1883, ClientID: "test", Topic: "surfsup/dataset"}, quietLogger())

	var got []DatasetEvent
	s.SetMessageHandler(func(ev DatasetEvent) error {
		got = append(got, ev)
		return nil
	})

	s.handleMessage("surfsup/dataset", []byte(`{"event":"reloaded","at":"2024-05-01T10:00:00Z"}`))
	s.handleMessage("surfsup/dataset", []byte(`garbage`))
	s.handleMessage("surfsup/dataset", []byte(`{"event":"other","at":"2024-05-01T10:00:00Z"}`))

	if len(got) != 1 {
		t.Fatalf("handler called %d times; want 1", len(got))
	}
	if got[0].Event != EventReloaded {
		t.Errorf("event = %q", got[0].Event)
	}
}

func TestSubscriber_HandlerErrorDoesNotPanic(t *testing.T) {
	s := NewSubscriber(Options{Broker: "127.0.0.1", Port: 1883, ClientID: "test", Topic: "t"}, quietLogger())
	calls := 0
	s.SetMessageHandler(func(ev DatasetEvent) error {
		calls++
		return errors.New("boom")
	})
	s.handleMessage("t", []byte(`{"event":"reloaded","at":"2024-05-01T10:00:00Z"}`))
	if calls != 1 {
		t.Errorf("calls = %d; want 1", calls)
	}
}

func TestSubscriber_NoHandler(t *testing.T) {
	s := NewSubscriber(Options{Broker: "127.0.0.1", Port: 1883, ClientID: "test", Topic: "t"}, quietLogger())
	s.handleMessage("t", []byte(`{"event":"reloaded","at":"2024-05-01T10:00:00Z"}`))
}

func TestSubscriber_DisconnectIdempotent(t *testing.T) {
	s := NewSubscriber(Options{Broker: "127.0.0.1", Port: 1883, ClientID: "test", Topic: "t"}, quietLogger())
	if s.IsConnected() {
		t.Fatal("new subscriber reports connected")
	}
	s.Disconnect()
	s.Disconnect()
	if err := s.Connect(t.Context()); err == nil {
		t.Fatal("Connect after Disconnect = nil; want error")
	}
}
