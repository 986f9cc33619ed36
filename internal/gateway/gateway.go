package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/RezaEskandarii/postfire/types"
)

// PublishGateway validates and publishes content to every requested platform concurrently.
type PublishGateway interface {
	ValidateContent(platform types.Platform, content types.Content) ValidationResult
	PublishToAll(ctx context.Context, userID string, platforms []types.Platform, content types.Content) []types.PublishResult
}

type tokenInvalidator interface {
	Invalidate(ctx context.Context, userID string, platform types.Platform) error
}

type Gateway struct {
	tokens   TokenProvider
	clients  map[types.Platform]PlatformClient
	limiters map[types.Platform]*rate.Limiter
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

type Option func(*Gateway)

// WithClient registers the client used to publish to platform.
func WithClient(platform types.Platform, client PlatformClient) Option {
	return func(g *Gateway) {
		g.clients[platform] = client
	}
}

// WithRateLimit caps outgoing publish calls to a platform across all users of this process.
func WithRateLimit(platform types.Platform, perSecond float64, burst int) Option {
	return func(g *Gateway) {
		if perSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		g.limiters[platform] = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCallTimeout bounds each platform attempt, including the wait on the rate limiter.
func WithCallTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.timeout = d
	}
}

func WithNow(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

func NewGateway(tokens TokenProvider, log zerolog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		tokens:   tokens,
		clients:  make(map[types.Platform]PlatformClient),
		limiters: make(map[types.Platform]*rate.Limiter),
		timeout:  time.Minute,
		now:      time.Now,
		log:      log.With().Str("component", "gateway").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) ValidateContent(platform types.Platform, content types.Content) ValidationResult {
	return ValidateContent(platform, content)
}

// PublishToAll returns one result per platform, in the order given, once every attempt settled.
// A failing or panicking platform never affects the others.
func (g *Gateway) PublishToAll(ctx context.Context, userID string, platforms []types.Platform, content types.Content) []types.PublishResult {
	results := make([]types.PublishResult, len(platforms))

	var wg sync.WaitGroup
	for i, platform := range platforms {
		wg.Add(1)
		go func(i int, platform types.Platform) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					g.log.Error().Str("platform", platform.String()).Interface("panic", r).Msg("publish panicked")
					results[i] = g.failure(platform, &PublishError{
						Kind: types.FailureUnknown, Platform: platform, Err: fmt.Errorf("panic: %v", r),
					})
				}
			}()
			results[i] = g.publishOne(ctx, userID, platform, content)
		}(i, platform)
	}
	wg.Wait()

	return results
}

func (g *Gateway) publishOne(ctx context.Context, userID string, platform types.Platform, content types.Content) types.PublishResult {
	log := g.log.With().Str("platform", platform.String()).Str("user_id", userID).Logger()

	if v := ValidateContent(platform, content); !v.Valid {
		return g.failure(platform, NewValidationFailure(platform, errors.New(strings.Join(v.Errors, "; "))))
	}

	client, ok := g.clients[platform]
	if !ok {
		return g.failure(platform, &PublishError{
			Kind: types.FailureUnknown, Platform: platform, Err: errors.New("no client configured"),
		})
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	token, err := g.tokens.AccessToken(ctx, userID, platform)
	if err != nil {
		if Classify(platform, err) == types.FailureAuth {
			return g.failure(platform, NewAuthFailure(platform, err))
		}
		return g.failure(platform, err)
	}

	if limiter, ok := g.limiters[platform]; ok {
		if err := limiter.Wait(ctx); err != nil {
			return g.failure(platform, NewTransientError(platform, err))
		}
	}

	id, err := client.Publish(ctx, token, content)
	if err != nil {
		if Classify(platform, err) == types.FailureAuth {
			if inv, ok := g.tokens.(tokenInvalidator); ok {
				_ = inv.Invalidate(ctx, userID, platform)
			}
		}
		log.Warn().Err(err).Msg("publish failed")
		return g.failure(platform, err)
	}

	log.Info().Str("published_id", id).Msg("published")
	return types.PublishResult{
		Platform:    platform,
		Success:     true,
		PublishedID: id,
		PublishedAt: g.now(),
	}
}

func (g *Gateway) failure(platform types.Platform, err error) types.PublishResult {
	return types.PublishResult{
		Platform:    platform,
		Success:     false,
		Error:       err.Error(),
		FailureKind: Classify(platform, err),
		PublishedAt: g.now(),
	}
}
