package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/internal/state"
	"github.com/RezaEskandarii/postfire/types"
)

// MemoryScheduledPostStore is an in-memory store.ScheduledPostStore with the same
// compare-and-set semantics as the Postgres store.
type MemoryScheduledPostStore struct {
	mu    sync.Mutex
	posts map[string]types.ScheduledPost

	// UpdateScheduleErr, when set, is returned by the next UpdateSchedule call.
	UpdateScheduleErr error
}

func NewMemoryScheduledPostStore() *MemoryScheduledPostStore {
	return &MemoryScheduledPostStore{posts: make(map[string]types.ScheduledPost)}
}

func (m *MemoryScheduledPostStore) Create(_ context.Context, post *types.ScheduledPost) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	post.CreatedAt, post.UpdatedAt = now, now
	m.posts[post.ID] = clonePost(*post)
	return nil
}

func (m *MemoryScheduledPostStore) FindByID(_ context.Context, id string) (*types.ScheduledPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, custom_errors.ErrScheduledPostNotFound
	}
	c := clonePost(p)
	return &c, nil
}

func (m *MemoryScheduledPostStore) UpdateSchedule(_ context.Context, id string, scheduledTime time.Time, platforms []types.Platform) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.UpdateScheduleErr; err != nil {
		m.UpdateScheduleErr = nil
		return false, err
	}
	p, ok := m.posts[id]
	if !ok || p.Status != state.PostPending {
		return false, nil
	}
	p.ScheduledTime = scheduledTime
	p.Platforms = append([]types.Platform(nil), platforms...)
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	return true, nil
}

func (m *MemoryScheduledPostStore) TransitionStatus(_ context.Context, id string, from []state.PostStatus, update types.PostStatusUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return false, nil
	}
	matched := false
	for _, s := range from {
		if p.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}
	p.Status = update.Status
	p.RetryCount = update.RetryCount
	if update.PublishResults != nil {
		p.PublishResults = append([]types.PublishResult(nil), update.PublishResults...)
	}
	p.UpdatedAt = time.Now().UTC()
	m.posts[id] = p
	return true, nil
}

func (m *MemoryScheduledPostStore) ListByUser(_ context.Context, userID string, dateRange types.DateRange) ([]types.ScheduledPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ScheduledPost, 0)
	for _, p := range m.posts {
		if p.UserID != userID {
			continue
		}
		if dateRange.From != nil && p.ScheduledTime.Before(*dateRange.From) {
			continue
		}
		if dateRange.To != nil && p.ScheduledTime.After(*dateRange.To) {
			continue
		}
		out = append(out, clonePost(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledTime.Equal(out[j].ScheduledTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledTime.Before(out[j].ScheduledTime)
	})
	return out, nil
}

// SetStatus forces a status, bypassing the state machine.
func (m *MemoryScheduledPostStore) SetStatus(id string, status state.PostStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.posts[id]; ok {
		p.Status = status
		m.posts[id] = p
	}
}

func clonePost(p types.ScheduledPost) types.ScheduledPost {
	p.Platforms = append([]types.Platform(nil), p.Platforms...)
	p.PublishResults = append([]types.PublishResult(nil), p.PublishResults...)
	return p
}

// MemoryContentStore serves post content from a map.
type MemoryContentStore struct {
	mu    sync.RWMutex
	posts map[string]types.Content
}

func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{posts: make(map[string]types.Content)}
}

func (m *MemoryContentStore) Put(postID string, content types.Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[postID] = content
}

func (m *MemoryContentStore) LoadPostContent(_ context.Context, postID string) (*types.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.posts[postID]
	if !ok {
		return nil, custom_errors.ErrPostNotFound
	}
	return &c, nil
}
