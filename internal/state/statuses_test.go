package state

import (
	"testing"
)

func TestJobStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   JobStatus
		expected string
	}{
		{
			name:     "Pending status",
			status:   StatusPending,
			expected: "pending",
		},
		{
			name:     "Processing status",
			status:   StatusProcessing,
			expected: "processing",
		},
		{
			name:     "Completed status",
			status:   StatusCompleted,
			expected: "completed",
		},
		{
			name:     "Failed status",
			status:   StatusFailed,
			expected: "failed",
		},
		{
			name:     "Cancelled status",
			status:   StatusCancelled,
			expected: "cancelled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.String()
			if result != tt.expected {
				t.Errorf("String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		StatusPending:    false,
		StatusProcessing: false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", status, got, want)
		}
	}
}

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     JobStatus
		to       JobStatus
		expected bool
	}{
		{
			name:     "Valid: Pending to Processing",
			from:     StatusPending,
			to:       StatusProcessing,
			expected: true,
		},
		{
			name:     "Valid: Processing to Completed",
			from:     StatusProcessing,
			to:       StatusCompleted,
			expected: true,
		},
		{
			name:     "Valid: Processing back to Pending on retry",
			from:     StatusProcessing,
			to:       StatusPending,
			expected: true,
		},
		{
			name:     "Valid: Pending to Cancelled",
			from:     StatusPending,
			to:       StatusCancelled,
			expected: true,
		},
		{
			name:     "Invalid: Pending to Completed",
			from:     StatusPending,
			to:       StatusCompleted,
			expected: false,
		},
		{
			name:     "Invalid: Completed to Failed",
			from:     StatusCompleted,
			to:       StatusFailed,
			expected: false,
		},
		{
			name:     "Invalid: Cancelled to Processing",
			from:     StatusCancelled,
			to:       StatusProcessing,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestIsValidPostTransition(t *testing.T) {
	tests := []struct {
		from     PostStatus
		to       PostStatus
		expected bool
	}{
		{PostPending, PostProcessing, true},
		{PostProcessing, PostPublished, true},
		{PostProcessing, PostPending, true},
		{PostProcessing, PostFailed, true},
		{PostPending, PostCancelled, true},
		{PostProcessing, PostCancelled, false},
		{PostPublished, PostPending, false},
		{PostCancelled, PostPending, false},
		{PostFailed, PostProcessing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := IsValidPostTransition(tt.from, tt.to); got != tt.expected {
				t.Errorf("IsValidPostTransition() = %v, want %v", got, tt.expected)
			}
		})
	}
}
