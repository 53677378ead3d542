package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type streamEntry struct {
	id      string
	payload []byte
}

// InMemoryStream is a drop-in stand-in for Stream used in tests that need
// deterministic publish/read behavior without a running Redis instance.
type InMemoryStream struct {
	mu          sync.Mutex
	streams     map[string][]streamEntry
	checkpoints map[string]string
	waiters     map[string][]chan struct{}
	seq         int64
}

func NewInMemoryStream() *InMemoryStream {
	return &InMemoryStream{
		streams:     make(map[string][]streamEntry),
		checkpoints: make(map[string]string),
		waiters:     make(map[string][]chan struct{}),
	}
}

func (s *InMemoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = make(map[string][]streamEntry)
	s.checkpoints = make(map[string]string)
	s.waiters = make(map[string][]chan struct{})
	return nil
}

func (s *InMemoryStream) PublishJSON(ctx context.Context, streamName string, v any) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal stream payload: %w", err)
	}

	s.mu.Lock()
	s.seq++
	id := fmt.Sprintf("%d-0", s.seq)
	s.streams[streamName] = append(s.streams[streamName], streamEntry{id: id, payload: payload})
	waiters := s.waiters[streamName]
	delete(s.waiters, streamName)
	s.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
	return id, nil
}

// ReadJSON returns the first entry on streamName strictly after lastID,
// blocking until one is published or ctx is done.
func (s *InMemoryStream) ReadJSON(ctx context.Context, streamName, lastID string, dst any) (string, error) {
	if lastID == "" {
		lastID = "0"
	}
	after, err := parseStreamOffset(lastID)
	if err != nil {
		return "", err
	}

	for {
		s.mu.Lock()
		for _, entry := range s.streams[streamName] {
			seq, _ := parseStreamOffset(entry.id)
			if seq > after {
				s.mu.Unlock()
				if err := json.Unmarshal(entry.payload, dst); err != nil {
					return "", fmt.Errorf("unmarshal stream payload: %w", err)
				}
				return entry.id, nil
			}
		}

		wait := make(chan struct{})
		s.waiters[streamName] = append(s.waiters[streamName], wait)
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-wait:
		case <-time.After(5 * time.Second):
			// Avoid leaking goroutines in tests that never publish; the
			// caller's own context deadline remains the real guard.
		}
	}
}

func (s *InMemoryStream) LoadStreamCheckpoint(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[key], nil
}

func (s *InMemoryStream) PersistStreamCheckpoint(_ context.Context, key, value string) error {
	if key == "" {
		return nil
	}
	if err := validateStreamOffset(value); err != nil {
		return fmt.Errorf("invalid checkpoint offset: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[key] = value
	return nil
}
