package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"surfsup/internal/config"
	"surfsup/internal/metrics"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Options addresses the broker and topic used for dataset events.
type Options struct {
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Broker:   cfg.MQTTBroker,
		Port:     cfg.MQTTPort,
		ClientID: cfg.MQTTClientID,
		Topic:    cfg.MQTTTopic,
	}
}

func (o Options) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", o.Broker, o.Port)
}

type Subscriber struct {
	client    mqtt.Client
	opts      Options
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once

	handlerMu      sync.RWMutex
	messageHandler func(ev DatasetEvent) error
}

// EventSubscriber is what feature modules need to attach their handler.
type EventSubscriber interface {
	SetMessageHandler(handler func(ev DatasetEvent) error)
}

func (s *Subscriber) SetMessageHandler(handler func(ev DatasetEvent) error) {
	s.handlerMu.Lock()
	s.messageHandler = handler
	s.handlerMu.Unlock()
}

func NewSubscriber(opts Options, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Subscriber{
		opts:   opts,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	co := mqtt.NewClientOptions()
	co.AddBroker(opts.brokerURL())
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)

	co.SetAutoReconnect(true)
	co.SetConnectRetry(true)
	co.SetConnectRetryInterval(5 * time.Second)
	co.SetMaxReconnectInterval(60 * time.Second)

	co.SetKeepAlive(30 * time.Second)
	co.SetPingTimeout(10 * time.Second)

	// Resubscribe on every (re)connect; clean sessions drop subscriptions.
	co.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", opts.Broker, "port", opts.Port)
		if err := s.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", "topic", opts.Topic, "error", err)
		}
	})

	co.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(co)
	return s
}

// Connect establishes the broker connection. The topic subscription is made
// by the on-connect handler.
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	topic := s.opts.Topic
	qos := byte(1)

	token := c.Subscribe(topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", topic, "qos", qos)
	return nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	ev, err := decodeEvent(payload)
	if err != nil {
		metrics.DatasetEventsTotal.WithLabelValues("invalid").Inc()
		s.logger.Warn("invalid dataset event",
			"topic", topic,
			"error", err,
			"payload", string(payload),
		)
		return
	}

	s.handlerMu.RLock()
	handler := s.messageHandler
	s.handlerMu.RUnlock()
	if handler == nil {
		metrics.DatasetEventsTotal.WithLabelValues("unhandled").Inc()
		return
	}

	if err := handler(ev); err != nil {
		metrics.DatasetEventsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("dataset event handler failed",
			"topic", topic,
			"event", ev.Event,
			"error", err,
		)
		return
	}
	metrics.DatasetEventsTotal.WithLabelValues("handled").Inc()
	s.logger.Debug("processed dataset event", "event", ev.Event, "source", ev.Source, "at", ev.At)
}

func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Safe to call more than once.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.opts.Topic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
