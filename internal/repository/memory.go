package repository

import (
	"context"
	"sync"
	"time"

	"receptionist/internal/models"
)

type cachedProfile struct {
	profile   *models.BusinessProfile
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryProfileCache is the in-process ProfileCache used without redis and as failover target.
type MemoryProfileCache struct {
	mu         sync.Mutex
	profiles   map[string]cachedProfile
	rateLimits map[string]*rateLimitEntry
	now        func() time.Time
}

func NewMemoryProfileCache() *MemoryProfileCache {
	return &MemoryProfileCache{
		profiles:   make(map[string]cachedProfile),
		rateLimits: make(map[string]*rateLimitEntry),
		now:        time.Now,
	}
}

func (r *MemoryProfileCache) GetProfile(_ context.Context, businessID string) (*models.BusinessProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.profiles[businessID]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		delete(r.profiles, businessID)
		return nil, nil
	}
	return entry.profile, nil
}

func (r *MemoryProfileCache) SetProfile(_ context.Context, profile *models.BusinessProfile, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := cachedProfile{profile: profile}
	if ttl > 0 {
		entry.expiresAt = r.now().Add(ttl)
	}
	r.profiles[profile.ID] = entry
	return nil
}

func (r *MemoryProfileCache) InvalidateProfile(_ context.Context, businessID string) error {
	r.mu.Lock()
	delete(r.profiles, businessID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryProfileCache) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}
	return entry.count <= limit, nil
}
