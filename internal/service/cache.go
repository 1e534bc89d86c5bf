package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"smartride/internal/domain"
	"smartride/internal/redis"
)

// tripCache wraps the optional trip cache. Cache faults are logged and never
// fail the operation that triggered them.
type tripCache struct {
	cache  redis.TripCache
	logger *logrus.Logger
}

func (c tripCache) get(ctx context.Context, tripID string) *domain.Trip {
	if c.cache == nil {
		return nil
	}
	trip, err := c.cache.GetTrip(ctx, tripID)
	if err != nil {
		c.logger.WithError(err).WithField("trip_id", tripID).Warn("trip cache read failed")
		return nil
	}
	return trip
}

// store offers a trip to the cache. The cache keeps whichever revision is
// newest, so a read that loaded the trip before a concurrent commit cannot
// replace the committed aggregate. If a committed aggregate cannot be
// written the entry is evicted instead.
func (c tripCache) store(ctx context.Context, trip *domain.Trip, committed bool) {
	if c.cache == nil {
		return
	}
	err := c.cache.SetTrip(ctx, trip)
	if err == nil {
		return
	}
	c.logger.WithError(err).WithField("trip_id", trip.ID).Warn("trip cache write failed")
	if committed {
		c.evict(ctx, trip.ID)
	}
}

func (c tripCache) evict(ctx context.Context, tripID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.InvalidateTrip(ctx, tripID); err != nil {
		c.logger.WithError(err).WithField("trip_id", tripID).Warn("trip cache invalidation failed")
	}
}
