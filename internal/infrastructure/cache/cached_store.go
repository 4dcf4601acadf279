package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/1v1expert/AnalogPro/internal/domain"
)

// CachedStore caches the category schema reads of an AttributeStore.
// Every other call passes through to the wrapped store.
type CachedStore struct {
	domain.AttributeStore
	cache domain.CacheRepository
	ttl   time.Duration
}

// NewCachedStore wraps store so that category attributes and alternative
// categories are served from cache for ttl
func NewCachedStore(store domain.AttributeStore, cache domain.CacheRepository, ttl time.Duration) *CachedStore {
	return &CachedStore{AttributeStore: store, cache: cache, ttl: ttl}
}

func attributesKey(categoryID int64) string {
	return fmt.Sprintf("category:%d:attributes", categoryID)
}

func alternativesKey(categoryID int64) string {
	return fmt.Sprintf("category:%d:alternatives", categoryID)
}

// GetCategoryAttributes returns the category's attributes, loading them on a miss
func (s *CachedStore) GetCategoryAttributes(ctx context.Context, categoryID int64) ([]domain.Attribute, error) {
	key := attributesKey(categoryID)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		if attrs, ok := cached.([]domain.Attribute); ok {
			return append([]domain.Attribute(nil), attrs...), nil
		}
	}

	attrs, err := s.AttributeStore.GetCategoryAttributes(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, append([]domain.Attribute(nil), attrs...), s.ttl)
	return attrs, nil
}

// GetAlternativeCategories returns the category's alternatives, loading them on a miss
func (s *CachedStore) GetAlternativeCategories(ctx context.Context, categoryID int64) ([]int64, error) {
	key := alternativesKey(categoryID)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		if ids, ok := cached.([]int64); ok {
			return append([]int64(nil), ids...), nil
		}
	}

	ids, err := s.AttributeStore.GetAlternativeCategories(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, append([]int64(nil), ids...), s.ttl)
	return ids, nil
}

// InvalidateCategory drops the cached schema of one category
func (s *CachedStore) InvalidateCategory(ctx context.Context, categoryID int64) {
	_ = s.cache.Delete(ctx, attributesKey(categoryID))
	_ = s.cache.Delete(ctx, alternativesKey(categoryID))
}
