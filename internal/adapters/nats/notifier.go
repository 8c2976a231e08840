package natsadapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// Notifier implements ports.NotificationService by publishing to the
// per-recipient notify subject. Supervisor tablets hold a WebSocket relay
// subscription on their own subject, so a push is just a broadcast they are
// already listening for.
type Notifier struct {
	conn *nats.Conn
}

// NewNotifier creates a Notifier on an existing connection.
func NewNotifier(conn *nats.Conn) *Notifier {
	return &Notifier{conn: conn}
}

type pushMessage struct {
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}

func (n *Notifier) SendPush(ctx context.Context, recipient, title, body string) error {
	data, err := json.Marshal(pushMessage{
		Recipient: recipient,
		Title:     title,
		Body:      body,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.conn.Publish("dig.notify."+recipient, data)
}
