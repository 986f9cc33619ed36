package dispatcher

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RezaEskandarii/postfire/types"
)

// HandlerFunc executes one claimed job. A returned error leaves the job claimed.
type HandlerFunc func(ctx context.Context, job types.Job) error

type JobHandler struct {
	handlers map[types.JobType]HandlerFunc
	mutex    sync.RWMutex
}

func NewJobHandler() *JobHandler {
	return &JobHandler{
		handlers: make(map[types.JobType]HandlerFunc),
	}
}

// Register adds a new job handler by type.
func (jh *JobHandler) Register(jobType types.JobType, handler HandlerFunc) error {
	jh.mutex.Lock()
	defer jh.mutex.Unlock()

	if _, exists := jh.handlers[jobType]; exists {
		return fmt.Errorf("handler '%s' already registered", jobType)
	}
	jh.handlers[jobType] = handler
	return nil
}

func (jh *JobHandler) Exists(jobType types.JobType) bool {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	_, exists := jh.handlers[jobType]
	return exists
}

func (jh *JobHandler) Execute(ctx context.Context, job types.Job) error {
	jh.mutex.RLock()
	handler, exists := jh.handlers[job.Type]
	jh.mutex.RUnlock()

	if !exists {
		return fmt.Errorf("handler '%s' not found", job.Type)
	}
	return handler(ctx, job)
}

func (jh *JobHandler) List() []types.JobType {
	jh.mutex.RLock()
	defer jh.mutex.RUnlock()

	names := make([]types.JobType, 0, len(jh.handlers))
	for name := range jh.handlers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
