// Package events publishes visit.recorded notifications after a visit
// commits. Publishing is best effort and never changes the visit outcome.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"checkin/internal/visit/models"
	id "checkin/pkg/domain"
)

const (
	// SubjectVisitRecorded is the NATS subject and the event type tag.
	SubjectVisitRecorded = "visit.recorded"
	// DefaultTopic is the Kafka topic for visit events.
	DefaultTopic = "checkin.visits"
)

// VisitRecorded is the payload emitted once per committed visit.
type VisitRecorded struct {
	EventID          string            `json:"event_id"`
	Type             string            `json:"type"`
	VisitID          string            `json:"visit_id"`
	Ordinal          int               `json:"ordinal"`
	AttendeeID       id.AttendeeID     `json:"attendee_id"`
	OrganizationID   id.OrganizationID `json:"organization_id"`
	OrganizationName string            `json:"organization_name,omitempty"`
	BoothNumber      string            `json:"booth_number,omitempty"`
	Method           string            `json:"method"`
	VisitedAt        time.Time         `json:"visited_at"`
}

// NewVisitRecorded builds the event for a committed record.
func NewVisitRecorded(rec *models.VisitRecord) VisitRecorded {
	return VisitRecorded{
		EventID:          uuid.NewString(),
		Type:             SubjectVisitRecorded,
		VisitID:          rec.ID,
		Ordinal:          rec.Ordinal(),
		AttendeeID:       rec.AttendeeID,
		OrganizationID:   rec.OrganizationID,
		OrganizationName: rec.OrganizationName,
		BoothNumber:      rec.BoothNumber,
		Method:           rec.Method.String(),
		VisitedAt:        rec.VisitedAt,
	}
}

// Publisher delivers visit events.
type Publisher interface {
	PublishVisitRecorded(ctx context.Context, event VisitRecorded) error
	Close() error
}

// LogPublisher writes events to the structured log. It is the default when
// no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishVisitRecorded(ctx context.Context, event VisitRecorded) error {
	p.logger.DebugContext(ctx, "visit event",
		"type", event.Type,
		"visit_id", event.VisitID,
		"attendee_id", event.AttendeeID,
		"organization_id", event.OrganizationID,
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishVisitRecorded(context.Context, VisitRecorded) error { return nil }
func (NoopPublisher) Close() error                                              { return nil }

func encode(event VisitRecorded) ([]byte, error) {
	return json.Marshal(event)
}
