package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/maltedev/shop-compare/internal/captcha"
	"github.com/maltedev/shop-compare/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

func decodeData(t *testing.T, args *redis.XAddArgs) map[string]any {
	values := args.Values.(map[string]any)
	var data map[string]any
	require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &data))
	return data
}

func TestPublisher_RecordSolve(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	publisher := NewPublisher(mockRedis, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var captured *redis.XAddArgs
	mockRedis.On("XAdd", ctx, mock.AnythingOfType("*redis.XAddArgs")).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*redis.XAddArgs) }).
		Return(nil)

	err := publisher.RecordSolve(ctx, captcha.Record{
		Site:      "Amazon",
		State:     captcha.StateManualFallback,
		Attempts:  3,
		Submitted: []string{"ABCD", "ABCE"},
		Err:       captcha.ErrAttemptsExhausted,
		Duration:  1500 * time.Millisecond,
	})
	require.NoError(t, err)
	mockRedis.AssertExpectations(t)

	require.NotNil(t, captured)
	assert.Equal(t, Stream, captured.Stream)
	values := captured.Values.(map[string]any)
	assert.Equal(t, "CAPTCHA_SOLVE_FINISHED", values["type"])
	assert.Equal(t, "Amazon", values["aggregate_id"])
	assert.NotEmpty(t, values["event_id"])

	data := decodeData(t, captured)
	payload := data["payload"].(map[string]any)
	assert.Equal(t, "manual_fallback", payload["state"])
	assert.Equal(t, float64(3), payload["attempts"])
	assert.Equal(t, float64(1500), payload["duration_ms"])
	assert.Equal(t, "captcha attempts exhausted", payload["error"])
	assert.Len(t, payload["submitted"], 2)
}

func TestPublisher_PublishRunCompleted(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	publisher := NewPublisher(mockRedis, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var captured *redis.XAddArgs
	mockRedis.On("XAdd", ctx, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(*redis.XAddArgs) }).
		Return(nil)

	started := time.Now()
	err := publisher.PublishRunCompleted(ctx, &models.RunReport{
		ID:         "run-1",
		Query:      "iPhone 16",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Sites:      []models.SiteResult{{Website: "Amazon"}, {Website: "eBay"}},
		Products:   []models.Product{{Website: "eBay", Name: "cheap", Price: 1}, {Website: "Amazon", Name: "pricey", Price: 2}},
		Passed:     true,
	})
	require.NoError(t, err)

	values := captured.Values.(map[string]any)
	assert.Equal(t, "SEARCH_RUN_COMPLETED", values["type"])
	assert.Equal(t, "run-1", values["aggregate_id"])

	payload := decodeData(t, captured)["payload"].(map[string]any)
	assert.Equal(t, "iPhone 16", payload["query"])
	assert.Equal(t, true, payload["passed"])
	assert.Equal(t, float64(2), payload["products"])
	assert.Equal(t, []any{"Amazon", "eBay"}, payload["sites"])
	assert.Equal(t, "cheap", payload["cheapest"].(map[string]any)["name"])
}

func TestPublisher_RedisError(t *testing.T) {
	ctx := context.Background()
	mockRedis := new(MockRedisClient)
	publisher := NewPublisher(mockRedis, slog.Default())

	mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused"))

	err := publisher.RecordSolve(ctx, captcha.Record{Site: "Amazon", State: captcha.StateCleared, Attempts: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to publish to redis")
}

func TestPublisher_Close(t *testing.T) {
	mockRedis := new(MockRedisClient)
	mockRedis.On("Close").Return(nil)

	require.NoError(t, NewPublisher(mockRedis, slog.Default()).Close())
	mockRedis.AssertExpectations(t)
}
