package calendar

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		wantIs  error
		wantNot []error
	}{
		{"401 is unauthorized", 401, ErrUnauthorized, []error{ErrForbidden, ErrNotFound, ErrUpstream}},
		{"403 is forbidden", 403, ErrForbidden, []error{ErrUnauthorized, ErrNotFound, ErrUpstream}},
		{"404 is not found", 404, ErrNotFound, []error{ErrUnauthorized, ErrForbidden, ErrUpstream}},
		{"500 is upstream", 500, ErrUpstream, []error{ErrUnauthorized, ErrForbidden, ErrNotFound}},
		{"503 is upstream", 503, ErrUpstream, nil},
		{"429 is upstream", 429, ErrUpstream, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("events.list", &googleapi.Error{Code: tt.code, Message: "nope"})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			for _, not := range tt.wantNot {
				assert.NotErrorIs(t, err, not)
			}
		})
	}
}

func TestClassifyNetworkErrorIsUpstream(t *testing.T) {
	err := classify("events.list", errors.New("connection refused"))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}

func TestClassifyWrappedGoogleapiError(t *testing.T) {
	inner := fmt.Errorf("call failed: %w", &googleapi.Error{Code: 403})
	err := classify("events.get", inner)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestClassifyPreservesContextErrors(t *testing.T) {
	err := classify("events.list", context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrUpstream)

	err = classify("events.list", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClassifyNil(t *testing.T) {
	assert.NoError(t, classify("events.list", nil))
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Op: "events.get", StatusCode: 404, Err: errors.New("missing")}
	assert.Contains(t, err.Error(), "events.get")
	assert.Contains(t, err.Error(), "404")

	netErr := &APIError{Op: "events.list", Err: errors.New("timeout")}
	assert.Contains(t, netErr.Error(), "timeout")
}
