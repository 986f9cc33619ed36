package mocks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/RezaEskandarii/postfire/types"
)

// MockJobStore is a mock implementation of store.JobStore for testing.
type MockJobStore struct {
	AddFunc             func(ctx context.Context, job types.Job) (string, error)
	GetFunc             func(ctx context.Context, id string) (*types.JobRecord, error)
	ClaimDueFunc        func(ctx context.Context, limit int) ([]types.Job, error)
	CompleteFunc        func(ctx context.Context, id string, result json.RawMessage) (bool, error)
	FailWithRetryFunc   func(ctx context.Context, id string, errMsg string) (*types.Job, error)
	FailPermanentlyFunc func(ctx context.Context, id string, errMsg string) (*types.Job, error)
	CancelFunc          func(ctx context.Context, id string) (bool, error)
	ReplaceFunc         func(ctx context.Context, job types.Job) error
	ReleaseFunc         func(ctx context.Context, id string, errMsg string) (bool, error)
	RequeueStaleFunc    func(ctx context.Context, olderThan time.Time) (types.StaleResult, error)
	PurgeFailedFunc     func(ctx context.Context, olderThan time.Time) (int, error)
	StatsFunc           func(ctx context.Context) (types.JobStats, error)
}

func (m *MockJobStore) Add(ctx context.Context, job types.Job) (string, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, job)
	}
	return job.ID, nil
}

func (m *MockJobStore) Get(ctx context.Context, id string) (*types.JobRecord, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return &types.JobRecord{Job: types.Job{ID: id}}, nil
}

func (m *MockJobStore) ClaimDue(ctx context.Context, limit int) ([]types.Job, error) {
	if m.ClaimDueFunc != nil {
		return m.ClaimDueFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockJobStore) Complete(ctx context.Context, id string, result json.RawMessage) (bool, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, id, result)
	}
	return true, nil
}

func (m *MockJobStore) FailWithRetry(ctx context.Context, id string, errMsg string) (*types.Job, error) {
	if m.FailWithRetryFunc != nil {
		return m.FailWithRetryFunc(ctx, id, errMsg)
	}
	return &types.Job{ID: id}, nil
}

func (m *MockJobStore) FailPermanently(ctx context.Context, id string, errMsg string) (*types.Job, error) {
	if m.FailPermanentlyFunc != nil {
		return m.FailPermanentlyFunc(ctx, id, errMsg)
	}
	return &types.Job{ID: id}, nil
}

func (m *MockJobStore) Cancel(ctx context.Context, id string) (bool, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id)
	}
	return true, nil
}

func (m *MockJobStore) Replace(ctx context.Context, job types.Job) error {
	if m.ReplaceFunc != nil {
		return m.ReplaceFunc(ctx, job)
	}
	return nil
}

func (m *MockJobStore) Release(ctx context.Context, id string, errMsg string) (bool, error) {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, id, errMsg)
	}
	return true, nil
}

func (m *MockJobStore) RequeueStale(ctx context.Context, olderThan time.Time) (types.StaleResult, error) {
	if m.RequeueStaleFunc != nil {
		return m.RequeueStaleFunc(ctx, olderThan)
	}
	return types.StaleResult{}, nil
}

func (m *MockJobStore) PurgeFailed(ctx context.Context, olderThan time.Time) (int, error) {
	if m.PurgeFailedFunc != nil {
		return m.PurgeFailedFunc(ctx, olderThan)
	}
	return 0, nil
}

func (m *MockJobStore) Stats(ctx context.Context) (types.JobStats, error) {
	if m.StatsFunc != nil {
		return m.StatsFunc(ctx)
	}
	return types.JobStats{}, nil
}
