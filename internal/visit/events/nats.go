package events

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes visit events on a subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to url. Reconnects are handled by the client.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = SubjectVisitRecorded
	}
	conn, err := nats.Connect(url,
		nats.Name("checkin"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: subject}, nil
}

func (p *NATSPublisher) PublishVisitRecorded(ctx context.Context, event VisitRecorded) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := newNATSMsg(p.subject, event)
	if err != nil {
		return err
	}
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish visit event: %w", err)
	}
	return nil
}

// newNATSMsg sets Nats-Msg-Id to the event id so JetStream consumers can
// drop redeliveries.
func newNATSMsg(subject string, event VisitRecorded) (*nats.Msg, error) {
	payload, err := encode(event)
	if err != nil {
		return nil, fmt.Errorf("encode visit event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set("type", event.Type)
	msg.Header.Set(nats.MsgIdHdr, event.EventID)
	return msg, nil
}

func (p *NATSPublisher) Close() error {
	return p.conn.Drain()
}
