package inference

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Store loads the model artifact on first use and shares it across
// requests. Concurrent first callers wait on a single load. A failed load is
// not cached, so the next call retries. Callers never observe a partially
// built model.
type Store struct {
	source      Source
	logger      *slog.Logger
	loadTimeout time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	model *Model
}

// DefaultLoadTimeout bounds a single artifact load.
const DefaultLoadTimeout = time.Minute

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLoadTimeout overrides DefaultLoadTimeout.
func WithLoadTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

// NewStore creates a Store backed by source.
func NewStore(source Source, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{source: source, logger: logger, loadTimeout: DefaultLoadTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Model returns the loaded model, loading it if necessary.
func (s *Store) Model(ctx context.Context) (*Model, error) {
	s.mu.RLock()
	m := s.model
	s.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	// The shared load outlives any one caller's cancellation; each caller
	// still stops waiting when its own context ends.
	ch := s.group.DoChan("model", func() (any, error) {
		s.mu.RLock()
		loaded := s.model
		s.mu.RUnlock()
		if loaded != nil {
			return loaded, nil
		}

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		m, err := s.load(lctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.model = m
		s.mu.Unlock()
		return m, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*Model), nil
	}
}

func (s *Store) load(ctx context.Context) (*Model, error) {
	start := time.Now()
	raw, err := s.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	data, err := decodeArtifact(raw)
	if err != nil {
		return nil, fmt.Errorf("inference: decode %s: %w", s.source.Name(), err)
	}
	m, err := ParseModel(data)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "model loaded",
		"source", s.source.Name(),
		"version", m.Version,
		"compressed_bytes", len(raw),
		"stages", len(m.Classifier.Stages),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return m, nil
}

// Loaded reports whether the model is in memory.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// Predict implements Backend with the locally loaded model.
func (s *Store) Predict(ctx context.Context, f Features) (Raw, error) {
	m, err := s.Model(ctx)
	if err != nil {
		return Raw{}, err
	}
	return m.Predict(f.Vector()), nil
}
