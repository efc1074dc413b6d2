package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"receptionist/internal/domain"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverProfileCache routes to primary (redis) until it errors, then serves from fallback
// and retries primary once per recoveryInterval.
type FailoverProfileCache struct {
	primary   domain.ProfileCache
	fallback  domain.ProfileCache
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverProfileCache(primary, fallback domain.ProfileCache, logger *zerolog.Logger) *FailoverProfileCache {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverProfileCache{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverProfileCache) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) > recoveryInterval {
		r.lastCheck = time.Now()
		return true
	}
	return false
}

func (r *FailoverProfileCache) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary profile cache failed, falling back to memory")
	}
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

func (r *FailoverProfileCache) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary profile cache recovered")
	}
}

func (r *FailoverProfileCache) GetProfile(ctx context.Context, businessID string) (*models.BusinessProfile, error) {
	if r.usePrimary() {
		profile, err := r.primary.GetProfile(ctx, businessID)
		if err == nil {
			r.markUp()
			return profile, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetProfile(ctx, businessID)
}

func (r *FailoverProfileCache) SetProfile(ctx context.Context, profile *models.BusinessProfile, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetProfile(ctx, profile, ttl)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetProfile(ctx, profile, ttl)
}

// InvalidateProfile clears both layers so a recovered primary never serves what fallback dropped.
func (r *FailoverProfileCache) InvalidateProfile(ctx context.Context, businessID string) error {
	_ = r.fallback.InvalidateProfile(ctx, businessID)
	if r.usePrimary() {
		err := r.primary.InvalidateProfile(ctx, businessID)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return nil
}

func (r *FailoverProfileCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
