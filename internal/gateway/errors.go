package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/RezaEskandarii/postfire/custom_errors"
	"github.com/RezaEskandarii/postfire/types"
)

// PublishError is a classified failure of one platform attempt.
type PublishError struct {
	Kind     types.FailureKind
	Platform types.Platform
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("%s %s failure: %v", e.Platform, e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

func NewValidationFailure(platform types.Platform, err error) *PublishError {
	return &PublishError{Kind: types.FailureValidation, Platform: platform, Err: err}
}

func NewAuthFailure(platform types.Platform, err error) *PublishError {
	return &PublishError{Kind: types.FailureAuth, Platform: platform, Err: err}
}

func NewTransientError(platform types.Platform, err error) *PublishError {
	return &PublishError{Kind: types.FailureTransient, Platform: platform, Err: err}
}

// Classify maps any error from a platform attempt to the failure taxonomy.
func Classify(platform types.Platform, err error) types.FailureKind {
	var pe *PublishError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, custom_errors.ErrNotConnected):
		return types.FailureAuth
	case errors.Is(err, context.DeadlineExceeded):
		return types.FailureTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return types.FailureTransient
	}
	return types.FailureUnknown
}
