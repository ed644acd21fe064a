package scoring

import (
	"context"
	"sync"
)

// CachedStore wraps a Store with an in-memory cache. Profiles change rarely
// and are read on every scoring pass, so entries live until explicitly
// invalidated by the write path.
type CachedStore struct {
	inner Store

	mu         sync.RWMutex
	byID       map[int64]*Profile
	defaultPro *Profile
}

// NewCachedStore wraps the given store with caching.
func NewCachedStore(inner Store) *CachedStore {
	return &CachedStore{
		inner: inner,
		byID:  make(map[int64]*Profile),
	}
}

// GetProfile returns the cached profile or loads it from the inner store.
func (c *CachedStore) GetProfile(ctx context.Context, id int64) (*Profile, error) {
	c.mu.RLock()
	cached, ok := c.byID[id]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	profile, err := c.inner.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byID[id] = profile
	c.mu.Unlock()
	return profile, nil
}

// GetDefaultProfile returns the cached default profile or loads it.
func (c *CachedStore) GetDefaultProfile(ctx context.Context) (*Profile, error) {
	c.mu.RLock()
	cached := c.defaultPro
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	profile, err := c.inner.GetDefaultProfile(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.defaultPro = profile
	if profile.ID != 0 {
		c.byID[profile.ID] = profile
	}
	c.mu.Unlock()
	return profile, nil
}

// ListProfiles always hits the inner store; listing is an admin operation.
func (c *CachedStore) ListProfiles(ctx context.Context) ([]*Profile, error) {
	return c.inner.ListProfiles(ctx)
}

// SaveProfile writes through to the inner store and invalidates the cache.
func (c *CachedStore) SaveProfile(ctx context.Context, profile *Profile) (int64, error) {
	id, err := c.inner.SaveProfile(ctx, profile)
	if err != nil {
		return 0, err
	}
	c.Invalidate(id)
	return id, nil
}

// DeleteProfile writes through to the inner store and invalidates the cache.
func (c *CachedStore) DeleteProfile(ctx context.Context, id int64) error {
	if err := c.inner.DeleteProfile(ctx, id); err != nil {
		return err
	}
	c.Invalidate(id)
	return nil
}

// Invalidate drops the cache entry for one profile. The default slot is
// dropped too since the flag may have moved.
func (c *CachedStore) Invalidate(id int64) {
	c.mu.Lock()
	delete(c.byID, id)
	c.defaultPro = nil
	c.mu.Unlock()
}

// InvalidateAll drops every cached entry.
func (c *CachedStore) InvalidateAll() {
	c.mu.Lock()
	c.byID = make(map[int64]*Profile)
	c.defaultPro = nil
	c.mu.Unlock()
}

var _ Store = (*CachedStore)(nil)
