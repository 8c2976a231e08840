package http

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/digsentry/digsentry/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Site    string `json:"site"`    // site UUID filter (optional, "" = all)
	Device  string `json:"device"`  // device filter (optional, requires site)
	Channel string `json:"channel"` // "ticks" | "poses" | "notify" (default: ticks)
}

// WebSocketHandler returns a handler that upgrades to WebSocket
// and relays real-time NATS events to connected clients.
// Clients send JSON: {"action":"subscribe","site":"<uuid>","channel":"ticks"}
// An empty site means all sites. Default channel is "ticks".
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log.Printf("ws client connected: %s", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Auto-subscribe to all proximity ticks by default
		defaultSubject := "dig.ticks.>"
		sub, err := nc.Subscribe(defaultSubject, func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		})
		if err != nil {
			log.Printf("ws default subscribe error: %v", err)
			return
		}
		subs[defaultSubject] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, errMsg := tickSubject(m)
			if errMsg != "" {
				_ = writeJSON(map[string]string{"error": errMsg})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
					_ = writeJSON(json.RawMessage(msg.Data))
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Printf("ws client disconnected: %s", remoteAddr)
	}
}

// tickSubject maps a client channel request to a NATS subject.
// Returns a non-empty error message for unusable combinations.
func tickSubject(m wsMessage) (string, string) {
	channel := m.Channel
	if channel == "" {
		channel = "ticks"
	}

	switch channel {
	case "ticks":
		switch {
		case m.Site != "" && m.Device != "":
			return "dig.ticks." + m.Site + "." + m.Device, ""
		case m.Site != "":
			return "dig.ticks." + m.Site + ".>", ""
		default:
			return "dig.ticks.>", ""
		}
	case "poses":
		switch {
		case m.Site != "" && m.Device != "":
			return "dig.pose." + m.Site + "." + m.Device, ""
		case m.Site != "":
			return "dig.pose." + m.Site + ".>", ""
		default:
			return "dig.pose.>", ""
		}
	case "notify":
		if m.Site != "" {
			return "dig.notify.supervisor." + m.Site, ""
		}
		return "dig.notify.>", ""
	default:
		return "", "unknown channel: " + channel
	}
}
