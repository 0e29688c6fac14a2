package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"boxradar/internal/domain/value"
	"boxradar/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

type GeoSampler interface {
	Sample(ctx context.Context, lat, lon float64) (*value.GeoSample, error)
}

// CachedGeoSampler is a read-through Redis cache in front of a GeoSampler.
// POI counts move slowly, so samples are reused for all listings at the same
// rounded coordinates. Cache failures fall through to the origin.
type CachedGeoSampler struct {
	next GeoSampler
	rdb  redis.UniversalClient
	ttl  time.Duration
}

func NewCachedGeoSampler(next GeoSampler, rdb redis.UniversalClient, ttl time.Duration) *CachedGeoSampler {
	return &CachedGeoSampler{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedGeoSampler) Sample(ctx context.Context, lat, lon float64) (*value.GeoSample, error) {
	key := geoKey(lat, lon)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var sample value.GeoSample
		if err := json.Unmarshal(raw, &sample); err == nil {
			return &sample, nil
		}
		logger(ctx).Warn("corrupt geo cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		logger(ctx).Warn("geo cache read failed", slog.String("key", key), slog.Any("error", err))
	}

	sample, err := c.next.Sample(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(sample); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			logger(ctx).Warn("geo cache write failed", slog.String("key", key), slog.Any("error", err))
		}
	}

	return sample, nil
}

// Four decimal places is roughly 10 m, well within the search radius.
func geoKey(lat, lon float64) string {
	return fmt.Sprintf("geo:%.4f:%.4f", lat, lon)
}
