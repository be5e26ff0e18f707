package cache

import (
	"context"
	"errors"
	"time"

	"apotekku/backend/internal/domain"
)

// ErrLocked is returned by a Locker when the key is already held.
var ErrLocked = errors.New("lock already held")

// ReportCache stores computed dashboards for a short time.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.Dashboard, bool, error)
	Set(ctx context.Context, key string, value *domain.Dashboard, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CartStore keeps the medicine quantities of an open cart, keyed by cart id.
type CartStore interface {
	Get(ctx context.Context, cartID string) (map[string]int, error)
	// Add increments the quantity of medicineID and returns the new quantity.
	Add(ctx context.Context, cartID string, medicineID string, qty int) (int, error)
	// Set replaces the quantity; qty <= 0 removes the line.
	Set(ctx context.Context, cartID string, medicineID string, qty int) error
	Remove(ctx context.Context, cartID string, medicineID string) error
	Clear(ctx context.Context, cartID string) error
}

// Locker serializes work on a key across callers.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.Dashboard, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.Dashboard, _ time.Duration) error {
	return nil
}

func (NoopReportCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
