// Alert lifecycle events
//
// Subjects: <prefix>.alert.created | <prefix>.alert.resolved | <prefix>.alert.dismissed
// Payload: model.AlertEvent as JSON

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/adwatch/backend/internal/model"
	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes alert events on a NATS connection.
type NATSPublisher struct {
	Conn   *nats.Conn
	Prefix string
}

// NewNATSPublisher connects to url; the connection retries in the background after the first success.
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("adwatch"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return &NATSPublisher{Conn: conn, Prefix: prefix}, nil
}

// closeFlushTimeout bounds how long Close waits for the server to acknowledge buffered events.
const closeFlushTimeout = 5 * time.Second

// Close flushes buffered events before closing. Drain is not used: it returns
// before the drain finishes, and the Close that must follow would cut it short.
func (p *NATSPublisher) Close() {
	if p.Conn == nil {
		return
	}
	_ = p.Conn.FlushTimeout(closeFlushTimeout)
	p.Conn.Close()
}

// Subject - full subject for an event type
func (p *NATSPublisher) Subject(eventType string) string {
	return AlertSubject(p.Prefix, eventType)
}

func AlertSubject(prefix, eventType string) string {
	if prefix == "" {
		return "alert." + eventType
	}
	return prefix + ".alert." + eventType
}

func (p *NATSPublisher) PublishAlertEvent(ctx context.Context, ev model.AlertEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Conn == nil {
		return errors.New("nats publisher has no connection")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.Conn.Publish(p.Subject(ev.Type), data)
}

// NopPublisher drops every event; used when NATS_URL is empty.
type NopPublisher struct{}

func (NopPublisher) PublishAlertEvent(context.Context, model.AlertEvent) error { return nil }

func (NopPublisher) Close() {}
