// Package gc implements the TTL garbage collector: a periodic sweep that
// deletes expired artifact blobs and retires their metadata rows.
package gc

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/newsupernova0617/convert-for-you/internal/entities"
	"github.com/newsupernova0617/convert-for-you/internal/metrics"
)

// MetadataStore is the slice of the metadata store the sweeper needs.
type MetadataStore interface {
	Expired(ctx context.Context, now time.Time) ([]entities.Artifact, error)
	MarkDeleted(ctx context.Context, id string, deletedAt time.Time) error
	MarkFailed(ctx context.Context, id string) error
}

// BlobDeleter removes a blob by key.
type BlobDeleter interface {
	Delete(ctx context.Context, key string) error
}

// CacheInvalidator drops a download-gate cache entry.
type CacheInvalidator interface {
	Remove(ctx context.Context, id string) error
}

// Locker guards the sweep so only one instance runs it at a time.
// Optional; nil means sweep unconditionally.
type Locker interface {
	TryAcquire(ctx context.Context) (bool, func(), error)
}

// Collector runs the sweep once at startup and then on a fixed interval.
type Collector struct {
	store    MetadataStore
	blobs    BlobDeleter
	cache    CacheInvalidator
	lock     Locker
	interval time.Duration

	now func() time.Time
}

func New(store MetadataStore, blobs BlobDeleter, cache CacheInvalidator, lock Locker, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Collector{
		store:    store,
		blobs:    blobs,
		cache:    cache,
		lock:     lock,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is done, sweeping immediately and then every tick.
func (c *Collector) Run(ctx context.Context) {
	log.Printf("[gc] sweeper started (interval=%v)", c.interval)

	c.sweepGuarded(ctx)

	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[gc] sweeper stopped (%v)", ctx.Err())
			return
		case <-t.C:
			c.sweepGuarded(ctx)
		}
	}
}

func (c *Collector) sweepGuarded(ctx context.Context) {
	if c.lock != nil {
		ok, release, err := c.lock.TryAcquire(ctx)
		if err != nil {
			log.Printf("[gc] sweep lock: %v", err)
			return
		}
		if !ok {
			return
		}
		defer release()
	}
	if _, _, err := c.Sweep(ctx); err != nil {
		log.Printf("[gc] sweep: %v", err)
		sentry.CaptureException(err)
	}
}

// Sweep reclaims all expired active artifacts. One row's failure never
// blocks the rest: a failed blob delete marks the row failed (terminal)
// and the sweep moves on. Running it again with nothing newly expired
// changes nothing, since retired rows no longer match the expired query.
func (c *Collector) Sweep(ctx context.Context) (deleted, failed int, err error) {
	now := c.now()
	metrics.Sweeps.Inc()

	expired, err := c.store.Expired(ctx, now)
	if err != nil {
		return 0, 0, err
	}
	if len(expired) == 0 {
		return 0, 0, nil
	}
	log.Printf("[gc] found %d expired artifacts", len(expired))

	for _, a := range expired {
		if err := c.blobs.Delete(ctx, a.StorageKey); err != nil {
			log.Printf("[gc] blob delete failed for %s (%s): %v", a.ID, a.StorageKey, err)
			sentry.CaptureException(err)
			if merr := c.store.MarkFailed(ctx, a.ID); merr != nil {
				log.Printf("[gc] mark failed for %s: %v", a.ID, merr)
			}
			failed++
			metrics.SweptArtifacts.WithLabelValues("failed").Inc()
			c.invalidate(ctx, a.ID)
			continue
		}

		if merr := c.store.MarkDeleted(ctx, a.ID, now); merr != nil {
			log.Printf("[gc] mark deleted for %s: %v", a.ID, merr)
			sentry.CaptureException(merr)
			continue
		}
		deleted++
		metrics.SweptArtifacts.WithLabelValues("deleted").Inc()
		c.invalidate(ctx, a.ID)
	}

	log.Printf("[gc] sweep complete (deleted=%d failed=%d)", deleted, failed)
	return deleted, failed, nil
}

func (c *Collector) invalidate(ctx context.Context, id string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Remove(ctx, id); err != nil {
		log.Printf("[gc] cache invalidate %s: %v", id, err)
	}
}
