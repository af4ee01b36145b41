package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/shop-compare/internal/captcha"
	"github.com/maltedev/shop-compare/internal/models"
	"github.com/redis/go-redis/v9"
)

const Stream = "stream:shop_compare"

// EventType represents the type of event
type EventType string

const (
	EventTypeCaptchaSolveFinished EventType = "CAPTCHA_SOLVE_FINISHED"
	EventTypeSearchRunCompleted   EventType = "SEARCH_RUN_COMPLETED"
)

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
	Close() error
}

type CaptchaSolveFinishedPayload struct {
	Site       string   `json:"site"`
	State      string   `json:"state"`
	Attempts   int      `json:"attempts"`
	Submitted  []string `json:"submitted,omitempty"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
}

type SearchRunCompletedPayload struct {
	RunID      string          `json:"run_id"`
	Query      string          `json:"query"`
	Passed     bool            `json:"passed"`
	Error      string          `json:"error,omitempty"`
	Sites      []string        `json:"sites"`
	Cheapest   *models.Product `json:"cheapest,omitempty"`
	Products   int             `json:"products"`
	DurationMS int64           `json:"duration_ms"`
}

// Publisher writes events straight to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewPublisher(client RedisClient, logger *slog.Logger) *Publisher {
	return &Publisher{
		redis:  client,
		stream: Stream,
		logger: logger.With("component", "event_publisher"),
	}
}

// RecordSolve publishes CAPTCHA_SOLVE_FINISHED.
func (p *Publisher) RecordSolve(ctx context.Context, rec captcha.Record) error {
	payload := CaptchaSolveFinishedPayload{
		Site:       rec.Site,
		State:      rec.State.String(),
		Attempts:   rec.Attempts,
		Submitted:  rec.Submitted,
		DurationMS: rec.Duration.Milliseconds(),
	}
	if rec.Err != nil {
		payload.Error = rec.Err.Error()
	}

	return p.publish(ctx, EventTypeCaptchaSolveFinished, rec.Site, payload)
}

// PublishRunCompleted publishes SEARCH_RUN_COMPLETED.
func (p *Publisher) PublishRunCompleted(ctx context.Context, r *models.RunReport) error {
	payload := SearchRunCompletedPayload{
		RunID:      r.ID,
		Query:      r.Query,
		Passed:     r.Passed,
		Error:      r.Error,
		Sites:      make([]string, 0, len(r.Sites)),
		Products:   len(r.Products),
		DurationMS: r.Duration().Milliseconds(),
	}
	for _, s := range r.Sites {
		payload.Sites = append(payload.Sites, s.Website)
	}
	if len(r.Products) > 0 {
		cheapest := r.Products[0]
		payload.Cheapest = &cheapest
	}

	return p.publish(ctx, EventTypeSearchRunCompleted, r.ID, payload)
}

func (p *Publisher) Close() error {
	return p.redis.Close()
}

func (p *Publisher) publish(ctx context.Context, eventType EventType, aggregateID string, payload any) error {
	id := uuid.New().String()
	now := time.Now()

	streamData := map[string]any{
		"id":           id,
		"type":         eventType,
		"aggregate_id": aggregateID,
		"timestamp":    now.Format(time.RFC3339),
		"payload":      payload,
		"metadata": map[string]any{
			"source": "shop-compare",
		},
	}

	dataJSON, err := json.Marshal(streamData)
	if err != nil {
		return fmt.Errorf("failed to marshal stream data: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"data":         string(dataJSON),
			"type":         string(eventType),
			"timestamp":    fmt.Sprintf("%d", now.UnixNano()),
			"event_id":     id,
			"aggregate_id": aggregateID,
		},
	}

	streamID, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", eventType,
		"event_id", id,
		"aggregate_id", aggregateID,
		"stream_id", streamID)

	return nil
}
