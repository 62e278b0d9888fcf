package service

import (
	"context"
	"time"
)

// ScoreEventMessage is published every time a score is recorded.
type ScoreEventMessage struct {
	RequestID    string    `json:"request_id,omitempty"` // For distributed tracing
	AccountID    string    `json:"account_id"`
	Kind         string    `json:"kind"`
	Score        float64   `json:"score"`
	PreviousRank string    `json:"previous_rank"`
	CurrentRank  string    `json:"current_rank"`
	Ordinal      int       `json:"ordinal"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishScoreEvent publishes a score event for downstream consumers
	PublishScoreEvent(ctx context.Context, event *ScoreEventMessage) error

	// Close releases any resources held by the publisher
	Close() error
}
