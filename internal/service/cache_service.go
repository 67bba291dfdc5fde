package service

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
)

const heatmapKeyPrefix = "heatmap:"

// CacheService кэш агрегатов для дашборда властей с TTL и инвалидацией по префиксу.
type CacheService struct {
	items *cache.Cache
	ttl   time.Duration
	// generation растёт при каждой инвалидации.
	generation atomic.Uint64
}

// NewCacheService создаёт кэш. ttl <= 0 отключает кэширование.
func NewCacheService(ttl time.Duration) *CacheService {
	cleanup := 5 * time.Minute
	if ttl > 0 && 2*ttl < cleanup {
		cleanup = 2 * ttl
	}
	return &CacheService{items: cache.New(ttl, cleanup), ttl: ttl}
}

func (cs *CacheService) Get(key string) (interface{}, bool) {
	return cs.items.Get(key)
}

func (cs *CacheService) Set(key string, value interface{}) {
	if cs.ttl <= 0 {
		return
	}
	cs.items.Set(key, value, cache.DefaultExpiration)
}

// InvalidateByPrefix удаляет все ключи с префиксом.
func (cs *CacheService) InvalidateByPrefix(prefix string) {
	cs.generation.Add(1)
	for key := range cs.items.Items() {
		if strings.HasPrefix(key, prefix) {
			cs.items.Delete(key)
		}
	}
}

// InvalidateHeatmap сбрасывает тепловую карту после любой записи в хранилище.
func (cs *CacheService) InvalidateHeatmap() {
	cs.InvalidateByPrefix(heatmapKeyPrefix)
}

func HeatmapCacheKey(limit int) string {
	return heatmapKeyPrefix + strconv.Itoa(limit)
}

// GetOrSet возвращает значение из кэша или вычисляет и сохраняет его.
// Если во время вычисления кэш инвалидировали, результат отдаётся
// вызывающему, но не сохраняется.
func (cs *CacheService) GetOrSet(
	ctx context.Context,
	key string,
	fn func(ctx context.Context) (interface{}, error),
) (interface{}, error) {
	if value, found := cs.Get(key); found {
		return value, nil
	}

	gen := cs.generation.Load()
	value, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if cs.generation.Load() == gen {
		cs.Set(key, value)
	}
	return value, nil
}
