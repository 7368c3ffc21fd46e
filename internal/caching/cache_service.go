package caching

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"sitecraft/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sitecraft"

type CacheService interface {
	// Refresh tokens are stored under the hash of the token, never the token itself.
	SetRefreshToken(ctx context.Context, tokenHash string, rec *models.RefreshToken, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, tokenHash string) error

	// Compiled previews
	GetPreview(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error)
	SetPreview(ctx context.Context, tenantID, siteID, versionID uuid.UUID, html string, ttl time.Duration) error
	InvalidateSitePreviews(ctx context.Context, tenantID, siteID uuid.UUID) error

	// Fixed-window counter; the first hit opens the window.
	IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	Ping(ctx context.Context) error
	Close() error
}

type redisCacheService struct {
	client *redis.Client
}

// NewRedisCacheService accepts either host:port or a redis:// URL.
func NewRedisCacheService(addr, password string, db int) CacheService {
	parsedAddr := addr
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		if opts, err := redis.ParseURL(addr); err == nil {
			parsedAddr = opts.Addr
			if password == "" {
				password = opts.Password
			}
		} else {
			log.Printf("WARN: could not parse redis URL %q: %v", addr, err)
		}
	}

	log.Printf("DEBUG: Creating Redis client with address: %s", parsedAddr)

	client := redis.NewClient(&redis.Options{
		Addr:     parsedAddr,
		Password: password,
		DB:       db,
	})

	if pingErr := client.Ping(context.Background()).Err(); pingErr != nil {
		log.Printf("WARN: Redis ping failed on initialization: %v (address: %s)", pingErr, parsedAddr)
	} else {
		log.Printf("DEBUG: Redis connection established successfully")
	}

	return &redisCacheService{client: client}
}

func refreshKey(tokenHash string) string {
	return fmt.Sprintf("%s:refresh:%s", keyPrefix, tokenHash)
}

func previewKey(tenantID, siteID, versionID uuid.UUID) string {
	return fmt.Sprintf("%s:preview:%s:%s:%s", keyPrefix, tenantID, siteID, versionID)
}

func previewPattern(tenantID, siteID uuid.UUID) string {
	return fmt.Sprintf("%s:preview:%s:%s:*", keyPrefix, tenantID, siteID)
}

func rateKey(key string) string {
	return fmt.Sprintf("%s:ratelimit:%s", keyPrefix, key)
}

func (r *redisCacheService) SetRefreshToken(ctx context.Context, tokenHash string, rec *models.RefreshToken, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, refreshKey(tokenHash), data, ttl).Err()
}

func (r *redisCacheService) GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	data, err := r.client.Get(ctx, refreshKey(tokenHash)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // unknown or expired
		}
		return nil, err
	}

	var rec models.RefreshToken
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	rec.TokenHash = tokenHash
	return &rec, nil
}

func (r *redisCacheService) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	return r.client.Del(ctx, refreshKey(tokenHash)).Err()
}

func (r *redisCacheService) GetPreview(ctx context.Context, tenantID, siteID, versionID uuid.UUID) (string, error) {
	val, err := r.client.Get(ctx, previewKey(tenantID, siteID, versionID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil // cache miss
		}
		return "", err
	}
	return val, nil
}

func (r *redisCacheService) SetPreview(ctx context.Context, tenantID, siteID, versionID uuid.UUID, html string, ttl time.Duration) error {
	return r.client.Set(ctx, previewKey(tenantID, siteID, versionID), html, ttl).Err()
}

func (r *redisCacheService) InvalidateSitePreviews(ctx context.Context, tenantID, siteID uuid.UUID) error {
	var keys []string
	iter := r.client.Scan(ctx, 0, previewPattern(tenantID, siteID), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return r.client.Del(ctx, keys...).Err()
	}
	return nil
}

func (r *redisCacheService) IsRateLimited(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	cacheKey := rateKey(key)

	// The window starts with the key, so the counter can never outlive it.
	var created *redis.BoolCmd
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		created = pipe.SetNX(ctx, cacheKey, 0, window)
		incr = pipe.Incr(ctx, cacheKey)
		return nil
	})
	if err != nil {
		return true, err
	}
	if err := created.Err(); err != nil {
		return true, err
	}
	count, err := incr.Result()
	if err != nil {
		return true, err
	}

	return count > int64(limit), nil
}

func (r *redisCacheService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisCacheService) Close() error {
	return r.client.Close()
}
