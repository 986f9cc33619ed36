package mocks

import (
	"context"
	"sync"

	"github.com/RezaEskandarii/postfire/internal/gateway"
	"github.com/RezaEskandarii/postfire/types"
)

// MockPublishGateway validates with the real rules and publishes through PublishFunc.
// Without PublishFunc every platform succeeds.
type MockPublishGateway struct {
	mu          sync.Mutex
	PublishFunc func(ctx context.Context, userID string, platform types.Platform, content types.Content) types.PublishResult
	Calls       [][]types.Platform
}

func (m *MockPublishGateway) ValidateContent(platform types.Platform, content types.Content) gateway.ValidationResult {
	return gateway.ValidateContent(platform, content)
}

func (m *MockPublishGateway) PublishToAll(ctx context.Context, userID string, platforms []types.Platform, content types.Content) []types.PublishResult {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]types.Platform(nil), platforms...))
	m.mu.Unlock()

	results := make([]types.PublishResult, len(platforms))
	for i, p := range platforms {
		if m.PublishFunc != nil {
			results[i] = m.PublishFunc(ctx, userID, p, content)
			continue
		}
		results[i] = types.PublishResult{Platform: p, Success: true, PublishedID: string(p) + "-id"}
	}
	return results
}

// CallCount returns how many times PublishToAll ran.
func (m *MockPublishGateway) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
