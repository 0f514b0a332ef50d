// Package quota enforces the daily emission cap. The quota is keyed by UTC
// date, so it rolls over lazily at midnight without a scheduler.
package quota

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/steinik-group/rentscout/internal/store"
)

// Controller hands out emission slots against the daily cap.
type Controller struct {
	store    store.Store
	capacity int

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Controller with the given daily cap.
func New(st store.Store, capacity int) *Controller {
	return &Controller{store: st, capacity: capacity, now: time.Now}
}

// WithNow overrides the clock. Test hook.
func (c *Controller) WithNow(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Day returns the current UTC quota day.
func (c *Controller) Day() string {
	return c.now().UTC().Format("2006-01-02")
}

// Cap returns the configured daily cap.
func (c *Controller) Cap() int { return c.capacity }

// TryReserve claims one emission slot for today. False means the cap is
// exhausted until the next UTC day.
func (c *Controller) TryReserve(ctx context.Context) (bool, error) {
	ok, err := c.store.ReserveQuota(ctx, c.Day(), c.capacity)
	if err != nil {
		return false, eris.Wrap(err, "quota: reserve")
	}
	return ok, nil
}

// Release returns a slot claimed by TryReserve, compensating for an
// emission that did not happen. Never drops the count below zero.
func (c *Controller) Release(ctx context.Context) error {
	if err := c.store.ReleaseQuota(ctx, c.Day()); err != nil {
		return eris.Wrap(err, "quota: release")
	}
	return nil
}

// Remaining reports how many slots are left today.
func (c *Controller) Remaining(ctx context.Context) (int, error) {
	used, err := c.store.QuotaUsed(ctx, c.Day())
	if err != nil {
		return 0, eris.Wrap(err, "quota: used")
	}
	remaining := c.capacity - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
