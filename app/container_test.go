package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/postfire/internal/mocks"
	"github.com/RezaEskandarii/postfire/types"
	"github.com/RezaEskandarii/postfire/types/config"
)

func newTestContainer(t *testing.T, opts ...ContainerOption) (*Container, *miniredis.Miniredis) {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg, err := config.NewPostfireConfig("test",
		config.WithPlatformEndpoint("twitter", "http://twitter.local", 10, 2),
	)
	require.NoError(t, err)

	opts = append([]ContainerOption{WithDB(db), WithRedis(client), WithLogger(zerolog.Nop())}, opts...)
	c, err := NewContainer(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return c, mr
}

func TestNewContainer_WiresComponents(t *testing.T) {
	c, _ := newTestContainer(t)

	assert.NotNil(t, c.JobStore)
	assert.NotNil(t, c.ScheduledPosts)
	assert.NotNil(t, c.Contents)
	assert.NotNil(t, c.Tokens)
	assert.NotNil(t, c.PostLocker)
	assert.NotNil(t, c.Scheduler)
	assert.NotNil(t, c.Dispatcher)
	assert.Nil(t, c.MessageBroker)
	assert.Equal(t, []types.JobType{types.JobTypePublishPost}, c.JobHandler.List())
}

func TestNewContainer_UsesInjectedBroker(t *testing.T) {
	broker := &mocks.MockMessageBroker{}
	c, _ := newTestContainer(t, WithMessageBroker(broker))
	assert.Same(t, broker, c.MessageBroker)
}

func TestContainer_ReadinessReflectsRedis(t *testing.T) {
	c, mr := newTestContainer(t)
	router := c.API.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	mr.Close()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestContainer_CloseKeepsInjectedConnections(t *testing.T) {
	c, _ := newTestContainer(t)
	require.NoError(t, c.Close())

	assert.NoError(t, c.Redis.Ping(context.Background()).Err())
}

func TestContainer_GetStatsThroughScheduler(t *testing.T) {
	c, _ := newTestContainer(t)

	stats, err := c.Scheduler.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.JobStats{}, stats)
}
