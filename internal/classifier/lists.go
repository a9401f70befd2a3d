package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"scamwatch/internal/model"
	"scamwatch/internal/store"
)

const (
	keywordsCacheKey       = "scamwatch:lists:keywords"
	forbiddenNamesCacheKey = "scamwatch:lists:forbidden_names"
)

// Lists provides the normalized keyword and forbidden-name lists.
type Lists interface {
	Keywords(ctx context.Context) (*model.Keywords, error)
	ForbiddenNames(ctx context.Context) ([]string, error)
}

// ListCache is the subset of the Redis wrapper used to cache the lists.
type ListCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// StoreLists reads the lists from the config collection, optionally through a cache.
type StoreLists struct {
	store  store.Store
	cache  ListCache
	ttl    time.Duration
	logger *slog.Logger
}

// NewStoreLists returns lists backed by st. cache may be nil.
func NewStoreLists(st store.Store, cache ListCache, ttl time.Duration, logger *slog.Logger) *StoreLists {
	return &StoreLists{
		store:  st,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "lists"),
	}
}

// Keywords returns the keyword lists, upper-cased and accent-folded.
func (l *StoreLists) Keywords(ctx context.Context) (*model.Keywords, error) {
	var cached model.Keywords
	if l.fromCache(ctx, keywordsCacheKey, &cached) {
		return &cached, nil
	}

	doc, found, err := l.store.Get(ctx, model.ConfigCollection, model.KeywordsID)
	if err != nil {
		return nil, fmt.Errorf("load keywords: %w", err)
	}
	if !found {
		l.logger.Warn("keywords document missing, keyword detection disabled")
		return &model.Keywords{}, nil
	}

	raw := model.KeywordsFromDocument(doc)
	kw := &model.Keywords{
		FR: normalizeAll(raw.FR),
		EN: normalizeAll(raw.EN),
		DE: normalizeAll(raw.DE),
	}
	l.toCache(ctx, keywordsCacheKey, kw)
	return kw, nil
}

// ForbiddenNames returns the forbidden-name list, upper-cased and accent-folded.
func (l *StoreLists) ForbiddenNames(ctx context.Context) ([]string, error) {
	var cached []string
	if l.fromCache(ctx, forbiddenNamesCacheKey, &cached) {
		return cached, nil
	}

	doc, found, err := l.store.Get(ctx, model.ConfigCollection, model.ForbiddenNamesID)
	if err != nil {
		return nil, fmt.Errorf("load forbidden names: %w", err)
	}
	if !found {
		l.logger.Warn("forbidden names document missing")
		return nil, nil
	}

	names := normalizeAll(model.ForbiddenNamesFromDocument(doc).Names)
	l.toCache(ctx, forbiddenNamesCacheKey, names)
	return names, nil
}

// Invalidate drops the cached lists so the next lookup reads the store.
func (l *StoreLists) Invalidate(ctx context.Context) error {
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Delete(ctx, keywordsCacheKey, forbiddenNamesCacheKey); err != nil {
		return fmt.Errorf("invalidate lists: %w", err)
	}
	return nil
}

func (l *StoreLists) fromCache(ctx context.Context, key string, dest any) bool {
	if l.cache == nil || l.ttl <= 0 {
		return false
	}
	found, err := l.cache.GetJSON(ctx, key, dest)
	if err != nil {
		l.logger.Warn("list cache read failed", "key", key, "error", err)
		return false
	}
	return found
}

func (l *StoreLists) toCache(ctx context.Context, key string, value any) {
	if l.cache == nil || l.ttl <= 0 {
		return
	}
	if err := l.cache.SetJSON(ctx, key, value, l.ttl); err != nil {
		l.logger.Warn("list cache write failed", "key", key, "error", err)
	}
}
