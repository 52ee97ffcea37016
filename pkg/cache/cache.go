// Package cache provides DependencyCache, a memoizing cache whose entries are
// invalidated through the upstream content ids they were built from.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Yiling-J/theine-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/build"
	"github.com/wangzhengdao/dxa-web-application-dotnet/internal/keys"
	"github.com/wangzhengdao/dxa-web-application-dotnet/pkg/logger"
)

const (
	defaultMaxEntries = 10000
	shardCount        = 64
)

var (
	tracer = otel.Tracer("pkg/cache")

	cacheHitCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "model_cache_hit_count",
		Help:      "The total number of model cache hits.",
	}, []string{"region"})

	cacheMissCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "model_cache_miss_count",
		Help:      "The total number of model builds caused by a cache miss.",
	}, []string{"region"})

	cacheDedupCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "model_cache_dedup_count",
		Help:      "The total number of requests that waited on a build started by another request.",
	}, []string{"region"})

	cacheUncachedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "model_cache_uncached_count",
		Help:      "The total number of builds that were not stored.",
	}, []string{"region"})

	cacheInvalidationCounter = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: build.ProjectName,
		Name:      "model_cache_invalidation_count",
		Help:      "The total number of entries evicted through a dependency.",
	})
)

// Cloneable is implemented by values stored in the cache. DeepCopy must return
// a value that shares no mutable state with the receiver.
type Cloneable[T any] interface {
	DeepCopy() T
}

// Builder constructs the value for a key. Returning cacheable=false hands the
// value to the waiting callers without storing it.
type Builder[T any] func(ctx context.Context) (value T, cacheable bool, err error)

type entry struct {
	storeKey string
	region   string
	deps     []string
	value    any

	// dead is set once a dependency of the entry has been invalidated.
	dead atomic.Bool
}

type depShard struct {
	mu sync.Mutex

	// index maps a dependency id to the entries built from it, by store key.
	index map[string]map[string]*entry
}

type DependencyCacheOption func(c *DependencyCache)

func WithLogger(l logger.Logger) DependencyCacheOption {
	return func(c *DependencyCache) {
		c.logger = l
	}
}

// WithMaxEntries bounds the number of stored entries.
func WithMaxEntries(maxEntries int64) DependencyCacheOption {
	return func(c *DependencyCache) {
		c.maxEntries = maxEntries
	}
}

// WithTTL expires entries after ttl. Zero keeps entries until evicted or invalidated.
func WithTTL(ttl time.Duration) DependencyCacheOption {
	return func(c *DependencyCache) {
		c.ttl = ttl
	}
}

// DependencyCache memoizes model construction. Concurrent requests for the same
// key share a single build, and every caller receives its own deep copy of the
// stored value.
type DependencyCache struct {
	store  *theine.Cache[string, *entry]
	group  singleflight.Group
	shards [shardCount]*depShard

	// epoch is bumped by every invalidation. It only moves while the shard of
	// the invalidated dependency is locked.
	epoch atomic.Uint64

	maxEntries int64
	ttl        time.Duration
	logger     logger.Logger

	closeOnce sync.Once
}

func New(opts ...DependencyCacheOption) (*DependencyCache, error) {
	c := &DependencyCache{
		maxEntries: defaultMaxEntries,
		logger:     logger.NewNoopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	for i := range c.shards {
		c.shards[i] = &depShard{index: map[string]map[string]*entry{}}
	}

	store, err := theine.NewBuilder[string, *entry](c.maxEntries).
		RemovalListener(func(_ string, e *entry, _ theine.RemoveReason) {
			c.unlink(e)
		}).
		Build()
	if err != nil {
		return nil, fmt.Errorf("creating model cache: %w", err)
	}
	c.store = store

	return c, nil
}

func MustNew(opts ...DependencyCacheOption) *DependencyCache {
	c, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func storeKey(region, key string) string {
	return region + "\x00" + key
}

func (c *DependencyCache) shardFor(dep string) *depShard {
	return c.shards[keys.ShardIndex(dep, shardCount)]
}

// lockShards locks the shards of deps in a fixed order and returns them.
func (c *DependencyCache) lockShards(deps []string) []*depShard {
	idx := make([]int, 0, len(deps))
	seen := map[int]struct{}{}
	for _, dep := range deps {
		i := int(keys.ShardIndex(dep, shardCount))
		if _, ok := seen[i]; !ok {
			seen[i] = struct{}{}
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)

	shards := make([]*depShard, len(idx))
	for n, i := range idx {
		shards[n] = c.shards[i]
		shards[n].mu.Lock()
	}
	return shards
}

func unlockShards(shards []*depShard) {
	for i := len(shards) - 1; i >= 0; i-- {
		shards[i].mu.Unlock()
	}
}

// Epoch returns the invalidation epoch. Callers that read upstream data before
// calling GetOrComputeSince take it before the read, so that an invalidation
// landing in between keeps the value built from that data out of the cache.
func (c *DependencyCache) Epoch() uint64 {
	return c.epoch.Load()
}

func (c *DependencyCache) lookup(sk string) (*entry, bool) {
	e, ok := c.store.Get(sk)
	if !ok || e.dead.Load() {
		return nil, false
	}
	return e, true
}

type flightResult struct {
	value  any
	stored bool
}

// GetOrCompute returns a deep copy of the value cached for key in region,
// building it with build when absent. At most one build per key runs at a time;
// concurrent callers wait for it and share its outcome. Failures are returned to
// every waiter and never cached.
//
// The build runs detached from ctx cancellation so that a caller giving up does
// not fail the other waiters. A cancelled caller returns ctx.Err() immediately.
func GetOrCompute[T Cloneable[T]](
	ctx context.Context,
	c *DependencyCache,
	region, key string,
	dependencies []string,
	build Builder[T],
) (T, error) {
	return getOrCompute(ctx, c, nil, region, key, dependencies, build)
}

// GetOrComputeSince is GetOrCompute for a build that uses data read when the
// epoch was since. The built value is not stored when an invalidation happened
// after since.
func GetOrComputeSince[T Cloneable[T]](
	ctx context.Context,
	c *DependencyCache,
	since uint64,
	region, key string,
	dependencies []string,
	build Builder[T],
) (T, error) {
	return getOrCompute(ctx, c, &since, region, key, dependencies, build)
}

func getOrCompute[T Cloneable[T]](
	ctx context.Context,
	c *DependencyCache,
	since *uint64,
	region, key string,
	dependencies []string,
	build Builder[T],
) (T, error) {
	var zero T

	ctx, span := tracer.Start(ctx, "cache.GetOrCompute", trace.WithAttributes(
		attribute.String("region", region),
		attribute.String("key", key),
	))
	defer span.End()

	sk := storeKey(region, key)
	if e, ok := c.lookup(sk); ok {
		return cloneAs[T](e.value, span, region)
	}

	ranBuilder := false
	ch := c.group.DoChan(sk, func() (any, error) {
		ranBuilder = true

		if e, ok := c.lookup(sk); ok {
			cacheHitCounter.WithLabelValues(region).Inc()
			return flightResult{value: e.value, stored: true}, nil
		}

		cacheMissCounter.WithLabelValues(region).Inc()

		epoch := c.Epoch()
		if since != nil {
			epoch = *since
		}

		value, cacheable, err := build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		if !cacheable {
			cacheUncachedCounter.WithLabelValues(region).Inc()
			return flightResult{value: value}, nil
		}

		stored := c.put(sk, region, dependencies, value, epoch)
		if !stored {
			cacheUncachedCounter.WithLabelValues(region).Inc()
		}
		return flightResult{value: value, stored: stored}, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}

	if !ranBuilder {
		cacheDedupCounter.WithLabelValues(region).Inc()
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		return zero, res.Err
	}

	fr := res.Val.(flightResult)
	span.SetAttributes(attribute.Bool("stored", fr.stored), attribute.Bool("shared", res.Shared))
	value, ok := fr.value.(T)
	if !ok {
		return zero, fmt.Errorf("cached value for '%s' in region '%s' has type %T", key, region, fr.value)
	}
	return value.DeepCopy(), nil
}

func cloneAs[T Cloneable[T]](v any, span trace.Span, region string) (T, error) {
	var zero T
	value, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("cached value in region '%s' has type %T", region, v)
	}
	cacheHitCounter.WithLabelValues(region).Inc()
	span.SetAttributes(attribute.Bool("cached", true))
	return value.DeepCopy(), nil
}

// put stores value unless an invalidation happened after epoch.
func (c *DependencyCache) put(sk, region string, deps []string, value any, epoch uint64) bool {
	e := &entry{
		storeKey: sk,
		region:   region,
		deps:     append([]string(nil), deps...),
		value:    value,
	}

	shards := c.lockShards(deps)
	if c.epoch.Load() != epoch {
		unlockShards(shards)
		return false
	}
	for _, dep := range deps {
		s := c.shardFor(dep)
		if s.index[dep] == nil {
			s.index[dep] = map[string]*entry{}
		}
		s.index[dep][sk] = e
	}
	unlockShards(shards)

	if c.ttl > 0 {
		c.store.SetWithTTL(sk, e, 1, c.ttl)
	} else {
		c.store.Set(sk, e, 1)
	}

	// an invalidation may have found the entry in the index before it reached the store
	if e.dead.Load() {
		c.evict(e)
		return false
	}
	return true
}

// Invalidate evicts every entry, in any region, built with the dependency id.
// It returns the number of entries evicted.
func (c *DependencyCache) Invalidate(dependencyID string) int {
	s := c.shardFor(dependencyID)

	s.mu.Lock()
	c.epoch.Add(1)
	entries := s.index[dependencyID]
	delete(s.index, dependencyID)
	s.mu.Unlock()

	for _, e := range entries {
		e.dead.Store(true)
		c.evict(e)
	}

	cacheInvalidationCounter.Add(float64(len(entries)))
	c.logger.Debug("invalidated model cache dependency",
		zap.String("dependency", dependencyID),
		zap.Int("evicted", len(entries)))

	return len(entries)
}

func (c *DependencyCache) evict(e *entry) {
	if current, ok := c.store.Get(e.storeKey); ok && current == e {
		c.store.Delete(e.storeKey)
	}
	c.unlink(e)
}

// unlink removes e from the dependency index. Entries stored later under the
// same key are left alone.
func (c *DependencyCache) unlink(e *entry) {
	if e == nil {
		return
	}
	for _, dep := range e.deps {
		s := c.shardFor(dep)
		s.mu.Lock()
		if byKey, ok := s.index[dep]; ok && byKey[e.storeKey] == e {
			delete(byKey, e.storeKey)
			if len(byKey) == 0 {
				delete(s.index, dep)
			}
		}
		s.mu.Unlock()
	}
}

// Size returns the number of stored entries.
func (c *DependencyCache) Size() int {
	return c.store.Len()
}

// DependencyCount returns the number of dependency ids that have entries.
func (c *DependencyCache) DependencyCount() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.index)
		s.mu.Unlock()
	}
	return n
}

// Close releases the resources of the backing store.
func (c *DependencyCache) Close() {
	c.closeOnce.Do(func() {
		c.store.Close()
	})
}
