package autograde

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"graderservice/internal/logging"
	"graderservice/internal/model"
	"graderservice/internal/utils"
)

type ClaimStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Put(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
}

type Publisher interface {
	Send(ctx context.Context, topic, key string, message interface{}) error
}

const (
	breakerThreshold = 5
	breakerReset     = 30 * time.Second
)

// Gate enqueues grading tasks exactly once per Key. A Redis claim marks
// the key as taken before the task is published; if publishing fails the
// claim is dropped again so a later push can retry. Results are kept next
// to the claim so a suppressed duplicate can reuse them.
type Gate struct {
	claims    ClaimStore
	publisher Publisher
	topic     string
	ttl       time.Duration
	breaker   *utils.CircuitBreaker
	logger    *logging.Logger
}

func NewGate(claims ClaimStore, publisher Publisher, topic string, ttl time.Duration, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gate{
		claims:    claims,
		publisher: publisher,
		topic:     topic,
		ttl:       ttl,
		breaker:   utils.NewCircuitBreaker(breakerThreshold, breakerReset),
		logger:    logger,
	}
}

// Enqueue reports false without error when key was already enqueued.
func (g *Gate) Enqueue(ctx context.Context, key Key, payload Payload) (bool, error) {
	k := key.String()
	claimed, err := g.claims.Claim(ctx, k, g.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", k, err)
	}
	if !claimed {
		g.logger.Debug(ctx, "autograde task already enqueued", zap.String("key", k))
		return false, nil
	}

	if payload.EnqueuedAt.IsZero() {
		payload.EnqueuedAt = time.Now().UTC()
	}
	err = g.breaker.Execute(func() error {
		return g.publisher.Send(ctx, g.topic, k, payload)
	})
	if err != nil {
		if relErr := g.claims.Release(context.WithoutCancel(ctx), k); relErr != nil {
			g.logger.Error(ctx, "failed to release autograde claim", zap.String("key", k), zap.Error(relErr))
		}
		return false, fmt.Errorf("publish %s: %w", k, err)
	}

	g.logger.Info(ctx, "autograde task enqueued",
		zap.String("key", k),
		zap.String("topic", g.topic),
	)
	return true, nil
}

// RecordOutcome keeps result for as long as a claim on its key would live.
func (g *Gate) RecordOutcome(ctx context.Context, key Key, result model.GradingResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := g.claims.Put(ctx, key.outcomeKey(), data, g.ttl); err != nil {
		return fmt.Errorf("record outcome %s: %w", key, err)
	}
	return nil
}

// Outcome returns the recorded result of key, or nil if the task has not
// reported yet.
func (g *Gate) Outcome(ctx context.Context, key Key) (*model.GradingResult, error) {
	data, ok, err := g.claims.Lookup(ctx, key.outcomeKey())
	if err != nil {
		return nil, fmt.Errorf("look up outcome %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	var result model.GradingResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode outcome %s: %w", key, err)
	}
	return &result, nil
}
