package cache

import (
	"context"

	"github.com/iliyamo/specialist-booking/internal/model"
)

// Directory is the specialist lookup the booking flow depends on.
type Directory interface {
	GetSpecialist(ctx context.Context, id uint64) (*model.Specialist, error)
	ListServices(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, error)
}

// CachedDirectory serves ListServices from a ServiceCache and passes
// GetSpecialist straight through.  A cached list can lag the directory by
// up to the cache TTL; RefreshServices bypasses it.
type CachedDirectory struct {
	inner Directory
	cache *ServiceCache
}

func NewCachedDirectory(inner Directory, c *ServiceCache) *CachedDirectory {
	return &CachedDirectory{inner: inner, cache: c}
}

func (d *CachedDirectory) GetSpecialist(ctx context.Context, id uint64) (*model.Specialist, error) {
	return d.inner.GetSpecialist(ctx, id)
}

func (d *CachedDirectory) ListServices(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, error) {
	if list, ok := d.cache.Get(ctx, specialistID); ok {
		return list, nil
	}
	list, err := d.inner.ListServices(ctx, specialistID)
	if err != nil {
		return nil, err
	}
	d.cache.Set(ctx, specialistID, list)
	return list, nil
}

// RefreshServices drops the cached list and reads it from the directory
// again, caching the fresh result.
func (d *CachedDirectory) RefreshServices(ctx context.Context, specialistID uint64) ([]model.ServiceOffering, error) {
	d.cache.Invalidate(ctx, specialistID)
	return d.ListServices(ctx, specialistID)
}
