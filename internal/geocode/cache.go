package geocode

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

func WrapLruCache(p Provider, size int, ttl time.Duration) Provider {
	if p == nil || size <= 0 || ttl <= 0 {
		return p
	}
	return &lruProvider{
		next:  p,
		cache: expirable.NewLRU[string, Location](size, nil, ttl),
	}
}

type lruProvider struct {
	next  Provider
	cache *expirable.LRU[string, Location]
}

func (l *lruProvider) Name() string {
	return l.next.Name()
}

func (l *lruProvider) Geocode(ctx context.Context, address string) (*Location, error) {
	key := normalizeAddress(address)
	if cached, ok := l.cache.Get(key); ok {
		logutil.GetLogger(ctx).Debug("geocode cache hit", zap.String("provider", cached.Provider))
		loc := cached
		return &loc, nil
	}
	loc, err := l.next.Geocode(ctx, address)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, *loc)
	return loc, nil
}
