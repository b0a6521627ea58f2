package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/shared"
)

const (
	billingCacheKey = "settings:billing"
	billingCacheTTL = time.Minute
)

// RepositoryPort defines data access for the settings store.
type RepositoryPort interface {
	GetRaw(ctx context.Context, key string) ([]byte, error)
	PutRaw(ctx context.Context, key string, value any) error
}

// Service resolves billing settings with a short redis cache in front of the
// store. The cache entry is dropped on write so an updated zone or deadline
// is never served stale.
type Service struct {
	repo  RepositoryPort
	redis *redis.Client
}

// NewService builds a Service instance. The redis client may be nil, which
// disables caching.
func NewService(repo RepositoryPort, rdb *redis.Client) *Service {
	return &Service{repo: repo, redis: rdb}
}

// Billing returns the stored billing window settings with defaults applied
// when nothing has been configured yet.
func (s *Service) Billing(ctx context.Context) (period.Settings, error) {
	// Cache misses and cache trouble both fall through to the store.
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, billingCacheKey).Bytes()
		if err == nil {
			var out period.Settings
			if err := json.Unmarshal(cached, &out); err == nil {
				return out, nil
			}
		}
	}

	raw, err := s.repo.GetRaw(ctx, billingKey)
	if errors.Is(err, ErrNotSet) {
		return period.DefaultSettings(), nil
	}
	if err != nil {
		return period.Settings{}, err
	}

	var out period.Settings
	if err := json.Unmarshal(raw, &out); err != nil {
		return period.Settings{}, fmt.Errorf("settings: corrupt billing settings: %w", err)
	}

	if s.redis != nil {
		_ = s.redis.Set(ctx, billingCacheKey, raw, billingCacheTTL).Err()
	}
	return out, nil
}

// UpdateBilling validates and stores new billing window settings.
func (s *Service) UpdateBilling(ctx context.Context, in period.Settings) (period.Settings, error) {
	if err := in.Validate(); err != nil {
		return period.Settings{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := s.repo.PutRaw(ctx, billingKey, in); err != nil {
		return period.Settings{}, err
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, billingCacheKey).Err()
	}
	return in, nil
}
