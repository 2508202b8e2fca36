package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// FallbackStore composes a fast cache tier with a durable tier. Reads
// prefer the cache and fall back to durable storage (warming the cache on
// a hit). Writes go to both; a durable-write failure is logged and never
// surfaced, so a slow or broken disk cannot interrupt a session.
type FallbackStore struct {
	cache   Store
	durable Store
	log     *slog.Logger
}

func NewFallbackStore(cache, durable Store, logger *slog.Logger) *FallbackStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackStore{
		cache:   cache,
		durable: durable,
		log:     logger,
	}
}

func (s *FallbackStore) Load(ctx context.Context, projectID string) (*types.SessionState, error) {
	state, err := s.cache.Load(ctx, projectID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		s.log.Warn("cache read failed, falling back", "project", projectID, "error", err)
	}

	state, err = s.durable.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}

	// Warm the cache for the next read.
	if cacheErr := s.cache.Save(ctx, projectID, state); cacheErr != nil {
		s.log.Warn("cache warm failed", "project", projectID, "error", cacheErr)
	}
	return state, nil
}

func (s *FallbackStore) Save(ctx context.Context, projectID string, state *types.SessionState) error {
	if err := s.cache.Save(ctx, projectID, state); err != nil {
		return err
	}

	if err := s.durable.Save(ctx, projectID, state); err != nil {
		// Best-effort tier: the session keeps running on the cache.
		s.log.Warn("durable write failed", "project", projectID, "error", err)
	}
	return nil
}

func (s *FallbackStore) Delete(ctx context.Context, projectID string) error {
	if err := s.cache.Delete(ctx, projectID); err != nil {
		return err
	}
	if err := s.durable.Delete(ctx, projectID); err != nil {
		s.log.Warn("durable delete failed", "project", projectID, "error", err)
	}
	return nil
}
