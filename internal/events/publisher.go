// Package events turns finished runs into outbox events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/life-quote-scraper/internal/database"
)

type EventType string

const (
	EventTypeRunCompleted EventType = "QUOTE_RUN_COMPLETED"

	AggregateRun = "quote_run"
)

// RunCompletedPayload summarises a finished run for downstream consumers.
type RunCompletedPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	Expected   int       `json:"expected"`
	Resolved   int       `json:"resolved"`
	Quotes     int       `json:"quotes"`
	NoOffers   int       `json:"no_offers"`
	Abandoned  int       `json:"abandoned"`
	Rounds     int       `json:"rounds"`
	Coverage   float64   `json:"coverage"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type OutboxWriter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

type Publisher struct {
	outbox OutboxWriter
	stream string
	logger *slog.Logger
}

func NewPublisher(outbox OutboxWriter, logger *slog.Logger) *Publisher {
	return &Publisher{
		outbox: outbox,
		stream: database.DefaultRunStream,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishRunCompletedWithTx writes the event inside tx, so it only becomes
// visible to the relay if the run's rows commit too.
func (p *Publisher) PublishRunCompletedWithTx(ctx context.Context, tx pgx.Tx, payload *RunCompletedPayload) error {
	if payload.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	payload.EventType = string(EventTypeRunCompleted)
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		AggregateType: AggregateRun,
		AggregateID:   payload.RunID,
		EventType:     payload.EventType,
		Payload:       data,
		TargetStream:  p.stream,
	}
	if err := p.outbox.InsertWithTx(ctx, tx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"run_id", payload.RunID,
		"outbox_id", event.ID)
	return nil
}
