// Package activitysink fans account activity out to external transports.
package activitysink

import (
	"context"
	"strings"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the stream key used when none is configured.
const DefaultStream = "accounts:activity"

// StreamClient is the subset of the go-redis client used by the sink.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends activity records to a Redis stream, one flat
// entry per event.
type RedisStreamSink struct {
	client  StreamClient
	stream  string
	maxLen  int64
	mapping []activitymap.Option
}

// Option customizes the sink.
type Option func(*RedisStreamSink)

// WithStream overrides the stream key.
func WithStream(stream string) Option {
	return func(s *RedisStreamSink) {
		if stream = strings.TrimSpace(stream); stream != "" {
			s.stream = stream
		}
	}
}

// WithMaxLen caps the stream length using approximate trimming.
func WithMaxLen(maxLen int64) Option {
	return func(s *RedisStreamSink) {
		if maxLen > 0 {
			s.maxLen = maxLen
		}
	}
}

// WithMapOptions forwards options to activitymap.Map.
func WithMapOptions(opts ...activitymap.Option) Option {
	return func(s *RedisStreamSink) {
		s.mapping = append(s.mapping, opts...)
	}
}

// NewRedisStreamSink returns a sink writing to client.
func NewRedisStreamSink(client StreamClient, opts ...Option) *RedisStreamSink {
	sink := &RedisStreamSink{
		client: client,
		stream: DefaultStream,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(sink)
		}
	}
	return sink
}

// Record implements accounts.ActivitySink.
func (s *RedisStreamSink) Record(ctx context.Context, event accounts.ActivityEvent) error {
	if s == nil || s.client == nil {
		return nil
	}

	record := activitymap.Map(event, s.mapping...)

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: record.Fields(),
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}

	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to append activity record").
			WithMetadata(map[string]any{"stream": s.stream, "verb": record.Verb})
	}
	return nil
}

var _ accounts.ActivitySink = (*RedisStreamSink)(nil)
