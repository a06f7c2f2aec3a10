package autograde

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"graderservice/internal/logging"
	"graderservice/internal/model"
	"graderservice/internal/utils"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type ResultHandler interface {
	OnGradingFinished(ctx context.Context, result model.GradingResult) error
}

const (
	handleAttempts  = 3
	handleBaseDelay = 200 * time.Millisecond
)

// ResultConsumer feeds grading results from the result topic into the
// submission lifecycle.
type ResultConsumer struct {
	reader  MessageReader
	handler ResultHandler
	logger  *logging.Logger
}

func NewResultConsumer(reader MessageReader, handler ResultHandler, logger *logging.Logger) *ResultConsumer {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ResultConsumer{reader: reader, handler: handler, logger: logger}
}

// Run blocks until ctx is done.
func (c *ResultConsumer) Run(ctx context.Context) error {
	defer func() { _ = c.reader.Close() }()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info(ctx, "Result consumer shutting down")
				return nil
			}
			c.logger.Error(ctx, "Failed to fetch message", zap.Error(err))
			continue
		}

		c.handle(ctx, msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error(ctx, "Failed to commit message", zap.Error(err))
		}
	}
}

func (c *ResultConsumer) handle(ctx context.Context, msg kafka.Message) {
	var result model.GradingResult
	if err := json.Unmarshal(msg.Value, &result); err != nil {
		c.logger.Warn(ctx, "Failed to unmarshal grading result",
			zap.String("topic", msg.Topic),
			zap.ByteString("value", msg.Value),
			zap.Error(err),
		)
		return
	}
	if result.Revision == "" {
		c.logger.Warn(ctx, "Grading result without revision", zap.String("submission_id", result.SubmissionId.String()))
		return
	}

	_, err := utils.RetryWithBackoff(ctx, handleAttempts, handleBaseDelay, func() (struct{}, error) {
		return struct{}{}, c.handler.OnGradingFinished(ctx, result)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error(ctx, "Failed to record grading result",
			zap.String("submission_id", result.SubmissionId.String()),
			zap.String("revision", result.Revision),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}
