package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/conduit-lang/apimeta/internal/metadata"
)

// StreamPublisher is a processor appending one event per write to a Redis
// stream. It does not persist anything: register it after a resumable
// persisting processor so it receives the persisted item.
type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
	ids    ItemIdentifier
	logger *zap.Logger
}

// StreamOption configures a StreamPublisher
type StreamOption func(*StreamPublisher)

// WithMaxLen caps the stream length (approximate trimming)
func WithMaxLen(n int64) StreamOption {
	return func(p *StreamPublisher) {
		p.maxLen = n
	}
}

// WithItemIdentifier adds the item identifier to every event
func WithItemIdentifier(ids ItemIdentifier) StreamOption {
	return func(p *StreamPublisher) {
		p.ids = ids
	}
}

// WithStreamLogger sets the publisher logger
func WithStreamLogger(logger *zap.Logger) StreamOption {
	return func(p *StreamPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewStreamPublisher creates a publisher writing to stream
func NewStreamPublisher(client redis.Cmdable, stream string, opts ...StreamOption) *StreamPublisher {
	p := &StreamPublisher{
		client: client,
		stream: stream,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Supports implements Processor: every write is published
func (p *StreamPublisher) Supports(_ context.Context, op metadata.Operation, _ Context) bool {
	return !op.IsSafe()
}

// Process implements Processor
func (p *StreamPublisher) Process(ctx context.Context, data any, op metadata.Operation, uriVariables map[string]any, _ Context) (any, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event payload: %w", err)
	}

	identifier := ""
	switch {
	case op.IsDelete():
		identifier, _ = ItemKey(op, uriVariables)
	case p.ids != nil && data != nil:
		id, err := p.ids.IdentifiersFromItem(ctx, data)
		if err != nil {
			return nil, err
		}
		identifier = id.String()
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"class":      op.Class.String(),
			"operation":  op.Name,
			"method":     op.Method,
			"identifier": identifier,
			"payload":    string(payload),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	eventID, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to publish to stream %s: %w", p.stream, err)
	}

	p.logger.Debug("published event",
		zap.String("stream", p.stream),
		zap.String("event", eventID),
		zap.String("operation", op.Name))

	return nil, nil
}
