package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher sends dataset events. It is used by the loader tooling, never by
// the query server.
type Publisher struct {
	client mqtt.Client
	opts   Options
}

func NewPublisher(opts Options) *Publisher {
	co := mqtt.NewClientOptions()
	co.AddBroker(opts.brokerURL())
	co.SetClientID(opts.ClientID)
	co.SetCleanSession(true)
	co.SetConnectTimeout(10 * time.Second)
	return &Publisher{client: mqtt.NewClient(co), opts: opts}
}

func (p *Publisher) Connect(ctx context.Context) error {
	return waitToken(ctx, p.client.Connect(), "mqtt connect")
}

// PublishReloaded publishes a non-retained reloaded event at QoS 1.
func (p *Publisher) PublishReloaded(ctx context.Context, source string) error {
	ev := DatasetEvent{Event: EventReloaded, Source: source, At: time.Now().UTC()}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode dataset event: %w", err)
	}
	return waitToken(ctx, p.client.Publish(p.opts.Topic, 1, false, payload), "mqtt publish")
}

func (p *Publisher) Disconnect() {
	p.client.Disconnect(250)
}

func waitToken(ctx context.Context, token mqtt.Token, what string) error {
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", what, ctx.Err())
	}
}
