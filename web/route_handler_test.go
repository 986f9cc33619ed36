package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/gateway"
	"github.com/RezaEskandarii/postfire/internal/lock"
	"github.com/RezaEskandarii/postfire/internal/scheduler"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

type fakeService struct {
	ScheduleFunc func(ctx context.Context, req scheduler.ScheduleRequest) (string, error)
	UpdateFunc   func(ctx context.Context, id string, change types.ScheduleChange) (*types.ScheduledPost, error)
	CancelFunc   func(ctx context.Context, id string) error
	GetFunc      func(ctx context.Context, id string) (*types.ScheduledPost, error)
	ListFunc     func(ctx context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error)
	StatsFunc    func(ctx context.Context) (types.JobStats, error)
}

func (f *fakeService) SchedulePost(ctx context.Context, req scheduler.ScheduleRequest) (string, error) {
	return f.ScheduleFunc(ctx, req)
}

func (f *fakeService) UpdateScheduledPost(ctx context.Context, id string, change types.ScheduleChange) (*types.ScheduledPost, error) {
	return f.UpdateFunc(ctx, id, change)
}

func (f *fakeService) CancelScheduledPost(ctx context.Context, id string) error {
	return f.CancelFunc(ctx, id)
}

func (f *fakeService) GetScheduledPost(ctx context.Context, id string) (*types.ScheduledPost, error) {
	return f.GetFunc(ctx, id)
}

func (f *fakeService) GetScheduledPosts(ctx context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error) {
	return f.ListFunc(ctx, userID, dateRange)
}

func (f *fakeService) GetStats(ctx context.Context) (types.JobStats, error) {
	return f.StatsFunc(ctx)
}

func (f *fakeService) ValidateContent(platforms []types.Platform, content types.Content) map[types.Platform]gateway.ValidationResult {
	out := make(map[types.Platform]gateway.ValidationResult, len(platforms))
	for _, p := range platforms {
		out[p] = gateway.ValidateContent(p, content)
	}
	return out
}

func newHandler(svc PostService, token string) http.Handler {
	return NewRouteHandler(svc, nil, token, 0, zerolog.Nop()).Router()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSchedulePost(t *testing.T) {
	at := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	var got scheduler.ScheduleRequest
	svc := &fakeService{
		ScheduleFunc: func(_ context.Context, req scheduler.ScheduleRequest) (string, error) {
			got = req
			return "sp-1", nil
		},
	}

	rec := do(t, newHandler(svc, ""), http.MethodPost, "/api/v1/scheduled-posts", map[string]any{
		"userId": "u1", "postId": "p1", "scheduledTime": at.Format(time.RFC3339), "platforms": []string{"twitter"},
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "sp-1", decode(t, rec)["id"])
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, at.Equal(got.ScheduledTime))
	assert.Equal(t, []string{"twitter"}, got.Platforms)
}

func TestSchedulePost_BadBody(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, newHandler(svc, ""), http.MethodPost, "/api/v1/scheduled-posts", map[string]any{"postId": "p1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &custom_errors.ValidationError{Errors: []error{errors.New("twitter: text too long")}}, http.StatusBadRequest},
		{"invalid state", &custom_errors.InvalidStateError{ID: "sp-1", Current: "processing", Expected: "pending"}, http.StatusConflict},
		{"not found", fmt.Errorf("find: %w", custom_errors.ErrScheduledPostNotFound), http.StatusNotFound},
		{"busy", lock.ErrLockTimeout, http.StatusServiceUnavailable},
		{"other", errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{CancelFunc: func(context.Context, string) error { return tc.err }}
			rec := do(t, newHandler(svc, ""), http.MethodDelete, "/api/v1/scheduled-posts/sp-1", nil)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestErrorMapping_ValidationDetails(t *testing.T) {
	svc := &fakeService{
		ScheduleFunc: func(context.Context, scheduler.ScheduleRequest) (string, error) {
			verr := &custom_errors.ValidationError{}
			verr.Addf("instagram requires an image or video")
			verr.Addf("scheduledTime must be in the future")
			return "", verr
		},
	}
	rec := do(t, newHandler(svc, ""), http.MethodPost, "/api/v1/scheduled-posts", map[string]any{
		"userId": "u1", "postId": "p1", "platforms": []string{"instagram"},
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode(t, rec)["details"], 2)
}

func TestCancelScheduledPost(t *testing.T) {
	var cancelled string
	svc := &fakeService{CancelFunc: func(_ context.Context, id string) error {
		cancelled = id
		return nil
	}}
	rec := do(t, newHandler(svc, ""), http.MethodDelete, "/api/v1/scheduled-posts/sp-9", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "sp-9", cancelled)
}

func TestUpdateScheduledPost(t *testing.T) {
	at := time.Date(2026, 7, 2, 9, 0, 0, 0, time.UTC)
	var change types.ScheduleChange
	svc := &fakeService{UpdateFunc: func(_ context.Context, id string, c types.ScheduleChange) (*types.ScheduledPost, error) {
		change = c
		return &types.ScheduledPost{ID: id, ScheduledTime: at, Status: state.PostPending}, nil
	}}
	h := newHandler(svc, "")

	rec := do(t, h, http.MethodPatch, "/api/v1/scheduled-posts/sp-1", map[string]any{"scheduledTime": at.Format(time.RFC3339)})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, change.ScheduledTime)
	assert.True(t, at.Equal(*change.ScheduledTime))
	assert.Nil(t, change.Platforms)
	assert.Equal(t, "pending", decode(t, rec)["status"])

	rec = do(t, h, http.MethodPatch, "/api/v1/scheduled-posts/sp-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetScheduledPost(t *testing.T) {
	svc := &fakeService{GetFunc: func(_ context.Context, id string) (*types.ScheduledPost, error) {
		if id == "missing" {
			return nil, custom_errors.ErrScheduledPostNotFound
		}
		return &types.ScheduledPost{ID: id, Status: state.PostPublished}, nil
	}}
	h := newHandler(svc, "")

	rec := do(t, h, http.MethodGet, "/api/v1/scheduled-posts/sp-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "published", decode(t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/api/v1/scheduled-posts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListScheduledPosts(t *testing.T) {
	var gotUser string
	var gotRange types.DateRange
	svc := &fakeService{ListFunc: func(_ context.Context, userID string, r types.DateRange) ([]types.ScheduledPost, error) {
		gotUser, gotRange = userID, r
		return nil, nil
	}}
	h := newHandler(svc, "")

	rec := do(t, h, http.MethodGet, "/api/v1/scheduled-posts?user_id=u1&from=2026-06-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gotUser)
	require.NotNil(t, gotRange.From)
	assert.Nil(t, gotRange.To)
	assert.Equal(t, []any{}, decode(t, rec)["scheduledPosts"])

	cases := []string{
		"/api/v1/scheduled-posts",
		"/api/v1/scheduled-posts?user_id=u1&from=yesterday",
		"/api/v1/scheduled-posts?user_id=u1&from=2026-06-02T00:00:00Z&to=2026-06-01T00:00:00Z",
	}
	for _, path := range cases {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestValidate(t *testing.T) {
	h := newHandler(&fakeService{}, "")

	rec := do(t, h, http.MethodPost, "/api/v1/validate", map[string]any{
		"platforms": []string{"twitter", "instagram"},
		"content":   map[string]any{"text": "hello"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["valid"])
	results := body["results"].(map[string]any)
	assert.Equal(t, true, results["twitter"].(map[string]any)["valid"])
	assert.Equal(t, false, results["instagram"].(map[string]any)["valid"])

	rec = do(t, h, http.MethodPost, "/api/v1/validate", map[string]any{"platforms": []string{"myspace"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStats(t *testing.T) {
	svc := &fakeService{StatsFunc: func(context.Context) (types.JobStats, error) {
		return types.JobStats{Pending: 3, Failed: 1}, nil
	}}
	rec := do(t, newHandler(svc, ""), http.MethodGet, "/api/v1/stats", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), decode(t, rec)["pending"])
}

func TestAuthMiddleware(t *testing.T) {
	svc := &fakeService{StatsFunc: func(context.Context) (types.JobStats, error) { return types.JobStats{}, nil }}
	h := newHandler(svc, "s3cret")

	rec := do(t, h, http.MethodGet, "/api/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// health checks stay open
	rec = do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	healthy := true
	checks := map[string]HealthCheck{
		"redis": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("connection refused")
		},
	}
	h := NewRouteHandler(&fakeService{}, checks, "", 0, zerolog.Nop()).Router()

	rec := do(t, h, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = do(t, h, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "connection refused", decode(t, rec)["failed"].(map[string]any)["redis"])
}
