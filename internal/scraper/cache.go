package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"monitor-precos/internal/models"
	"monitor-precos/pkg/logger"
)

// PriceCache guarda resultados de busca por um tempo limitado
type PriceCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache implementa PriceCache sobre o Redis
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache conecta no Redis a partir de uma URL redis://
func NewRedisCache(ctx context.Context, redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("erro ao conectar no redis: %w", err)
	}
	return &RedisCache{client: client}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Close encerra a conexão com o Redis
func (r *RedisCache) Close(_ context.Context) error {
	return r.client.Close()
}

type cachedPrice struct {
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	Title     string          `json:"title"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// CachedFetcher guarda no cache apenas buscas com sucesso
type CachedFetcher struct {
	Fetcher
	cache PriceCache
	ttl   time.Duration
	log   logger.Logger
}

// WithCache envolve o fetcher com o cache de preços
func WithCache(f Fetcher, cache PriceCache, ttl time.Duration, log logger.Logger) Fetcher {
	return &CachedFetcher{Fetcher: f, cache: cache, ttl: ttl, log: log}
}

func cacheKey(p models.Platform, productID string) string {
	return "price:" + string(p) + ":" + productID
}

func (c *CachedFetcher) FetchPrice(ctx context.Context, productID string) (*models.PriceResult, error) {
	key := cacheKey(c.Platform(), productID)

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warnf("erro ao ler cache %s: %v", key, err)
	}
	if ok {
		var hit cachedPrice
		if err := json.Unmarshal(raw, &hit); err == nil {
			res := okResult(hit.Price, hit.Currency, hit.Title)
			res.FetchedAt = hit.FetchedAt
			return res, nil
		}
	}

	res, err := c.Fetcher.FetchPrice(ctx, productID)
	if err != nil || res == nil || !res.Price.Valid || res.Placeholder {
		return res, err
	}

	payload, err := json.Marshal(cachedPrice{
		Price:     res.Price.Decimal,
		Currency:  res.Currency,
		Title:     res.Title,
		FetchedAt: res.FetchedAt,
	})
	if err == nil {
		if err := c.cache.Set(ctx, key, payload, c.ttl); err != nil {
			c.log.Warnf("erro ao gravar cache %s: %v", key, err)
		}
	}
	return res, nil
}
