package repository

import (
	"context"
	"time"

	"receptionist/internal/domain"
	"receptionist/internal/models"

	"github.com/rs/zerolog"
)

// CachedBusinessProvider reads profiles through a ProfileCache.
// Cache errors never fail a lookup; the source is authoritative.
type CachedBusinessProvider struct {
	source domain.BusinessProvider
	cache  domain.ProfileCache
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewCachedBusinessProvider(source domain.BusinessProvider, cache domain.ProfileCache, ttl time.Duration, logger *zerolog.Logger) *CachedBusinessProvider {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CachedBusinessProvider{source: source, cache: cache, ttl: ttl, logger: logger}
}

func (p *CachedBusinessProvider) GetProfile(ctx context.Context, businessID string) (*models.BusinessProfile, error) {
	if p.cache != nil {
		cached, err := p.cache.GetProfile(ctx, businessID)
		if err != nil {
			p.logger.Warn().Err(err).Str("business_id", businessID).Msg("profile cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	profile, err := p.source.GetProfile(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.SetProfile(ctx, profile, p.ttl); err != nil {
			p.logger.Warn().Err(err).Str("business_id", businessID).Msg("profile cache write failed")
		}
	}
	return profile, nil
}

// Invalidate drops a cached profile so the next lookup rereads the source.
func (p *CachedBusinessProvider) Invalidate(ctx context.Context, businessID string) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.InvalidateProfile(ctx, businessID)
}
