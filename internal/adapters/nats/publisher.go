package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/digsentry/digsentry/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream. Samples,
// ticks and commands go through JetStream so a monitor restart replays what
// it missed; poses are fire-and-forget on the core connection because a
// stale pose is worthless.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "DIG_SAMPLES",
			Subjects:  []string{"dig.samples.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DIG_TICKS",
			Subjects:  []string{"dig.ticks.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DIG_COMMANDS",
			Subjects:  []string{"dig.cmd.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist — try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) PublishSample(ctx context.Context, ev *domain.SampleEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("dig.samples."+ev.SiteID+"."+ev.DeviceID, data)
	return err
}

func (p *Publisher) PublishPose(ctx context.Context, ev *domain.PoseEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.conn.Publish("dig.pose."+ev.SiteID+"."+ev.DeviceID, data)
}

func (p *Publisher) PublishTick(ctx context.Context, ev *domain.TickEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("dig.ticks."+ev.SiteID+"."+ev.DeviceID, data)
	return err
}

func (p *Publisher) PublishCommand(ctx context.Context, ev *domain.CommandEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("dig.cmd."+ev.SiteID+"."+ev.DeviceID, data)
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
