// Package redis provides the Redis Streams transport the "alertfeed"
// ingestion source reads from, plus offset checkpoints (stored as plain
// Redis keys) used to resume a stream at the last successfully ingested
// offset.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Stream wraps a Redis client with the small set of Streams operations
// the pipeline needs: publish, tailing read, and offset checkpointing.
type Stream struct {
	client *redis.Client
}

func NewStream(url string) (*Stream, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Stream{client: client}, nil
}

func (s *Stream) Close() error {
	return s.client.Close()
}

func (s *Stream) Client() *redis.Client {
	return s.client
}

// PublishJSON marshals v and XADDs it to streamName, returning the
// assigned entry ID.
func (s *Stream) PublishJSON(ctx context.Context, streamName string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}

	id, err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]any{"payload": payload},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// ReadJSON blocks until an entry after lastID is available on streamName,
// unmarshals its payload into dst, and returns the entry's ID.
func (s *Stream) ReadJSON(ctx context.Context, streamName, lastID string, dst any) (string, error) {
	if lastID == "" {
		lastID = "0"
	}

	res, err := s.client.XRead(ctx, &redis.XReadArgs{
		Streams: []string{streamName, lastID},
		Block:   0,
		Count:   1,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xread: %w", err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return "", fmt.Errorf("xread returned no messages")
	}

	msg := res[0].Messages[0]
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return "", fmt.Errorf("stream entry %s missing payload field", msg.ID)
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return "", fmt.Errorf("unmarshal stream payload: %w", err)
	}
	return msg.ID, nil
}

// LoadStreamCheckpoint returns the last persisted offset for key, or ""
// if none has been recorded yet.
func (s *Stream) LoadStreamCheckpoint(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get checkpoint: %w", err)
	}
	return val, nil
}

// PersistStreamCheckpoint records the consumer's last-read offset so a
// restarted source resumes from there instead of re-reading the stream
// from the beginning.
func (s *Stream) PersistStreamCheckpoint(ctx context.Context, key, value string) error {
	if key == "" {
		return nil
	}
	if err := validateStreamOffset(value); err != nil {
		return fmt.Errorf("invalid checkpoint offset: %w", err)
	}
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	return nil
}

// parseStreamOffset extracts the numeric millisecond component of a
// stream ID ("<ms>" or "<ms>-<seq>"), clamping negative values to zero.
func parseStreamOffset(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if idx := strings.Index(s, "-"); idx > 0 {
		s = s[:idx]
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse stream offset %q: %w", s, err)
	}
	if n < 0 {
		return 0, nil
	}
	return n, nil
}

// validateStreamOffset reports whether s is a syntactically valid stream
// offset (empty, a non-negative integer, or a non-negative compound ID).
func validateStreamOffset(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.SplitN(s, "-", 2)
	for _, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid stream offset %q", s)
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid stream offset %q: %w", s, err)
		}
		if n < 0 {
			return fmt.Errorf("negative stream offset %q", s)
		}
	}
	return nil
}

// streamPayload converts v into a byte slice for callers that want raw
// bytes rather than JSON-unmarshaled into a destination struct.
func streamPayload(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return []byte(val), nil
	case []byte:
		return val, nil
	case fmt.Stringer:
		return []byte(val.String()), nil
	default:
		return nil, fmt.Errorf("stream payload type %T not supported", v)
	}
}
