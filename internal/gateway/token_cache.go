package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/internal/store"
	"github.com/RezaEskandarii/postfire/types"
)

// TokenProvider yields a valid access token for (user, platform) or custom_errors.ErrNotConnected.
type TokenProvider interface {
	AccessToken(ctx context.Context, userID string, platform types.Platform) (string, error)
}

// tokenExpirySkew keeps a cached token from being handed out right before it expires.
const tokenExpirySkew = 30 * time.Second

// CachedTokenProvider caches tokens from a TokenStore in Redis, bounded by both the cache TTL
// and the token's own expiry. Cache failures fall through to the store.
type CachedTokenProvider struct {
	tokens store.TokenStore
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

func NewCachedTokenProvider(tokens store.TokenStore, client redis.UniversalClient, prefix string, ttl time.Duration, log zerolog.Logger) *CachedTokenProvider {
	return &CachedTokenProvider{
		tokens: tokens,
		client: client,
		prefix: prefix + ":token:",
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

func (p *CachedTokenProvider) key(userID string, platform types.Platform) string {
	return fmt.Sprintf("%s%s:%s", p.prefix, userID, platform)
}

func (p *CachedTokenProvider) AccessToken(ctx context.Context, userID string, platform types.Platform) (string, error) {
	key := p.key(userID, platform)

	token, err := p.client.Get(ctx, key).Result()
	switch {
	case err == nil && token != "":
		return token, nil
	case err != nil && !errors.Is(err, redis.Nil):
		p.log.Warn().Err(err).Str("platform", platform.String()).Msg("token cache read failed")
	}

	token, expiresAt, err := p.tokens.GetAccessToken(ctx, userID, platform)
	if err != nil {
		return "", err
	}

	ttl := expiresAt.Sub(p.now()) - tokenExpirySkew
	if p.ttl > 0 && p.ttl < ttl {
		ttl = p.ttl
	}
	if ttl > 0 {
		if err := p.client.Set(ctx, key, token, ttl).Err(); err != nil {
			p.log.Warn().Err(err).Str("platform", platform.String()).Msg("token cache write failed")
		}
	}
	return token, nil
}

// Invalidate drops a cached token, e.g. after the platform rejected it.
func (p *CachedTokenProvider) Invalidate(ctx context.Context, userID string, platform types.Platform) error {
	return p.client.Del(ctx, p.key(userID, platform)).Err()
}

// StoreTokenProvider reads straight from a TokenStore.
type StoreTokenProvider struct {
	tokens store.TokenStore
}

func NewStoreTokenProvider(tokens store.TokenStore) *StoreTokenProvider {
	return &StoreTokenProvider{tokens: tokens}
}

func (p *StoreTokenProvider) AccessToken(ctx context.Context, userID string, platform types.Platform) (string, error) {
	token, _, err := p.tokens.GetAccessToken(ctx, userID, platform)
	return token, err
}
