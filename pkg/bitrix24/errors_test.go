package bitrix24

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *OAuthError
		expected string
	}{
		{
			name:     "code only",
			err:      &OAuthError{Code: "invalid_grant"},
			expected: "invalid_grant",
		},
		{
			name: "code and description",
			err: &OAuthError{
				Code:        "invalid_grant",
				Description: "The refresh token is invalid.",
			},
			expected: "invalid_grant: The refresh token is invalid.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestCallError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *CallError
		expected string
	}{
		{
			name:     "method only",
			err:      &CallError{Method: "crm.lead.list"},
			expected: "calling crm.lead.list",
		},
		{
			name: "wrapped kind and status",
			err: &CallError{
				Method:     "crm.lead.list",
				StatusCode: 429,
				Err:        ErrRateLimited,
			},
			expected: "calling crm.lead.list: rate limit exceeded (status 429)",
		},
		{
			name: "remote failure",
			err: &CallError{
				Method:     "crm.lead.get",
				StatusCode: 400,
				Body:       []byte(`{"error":"NOT_FOUND"}`),
				Err:        ErrRemoteCallFailed,
			},
			expected: "calling crm.lead.get: remote call failed (status 400)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestCallError_Unwrap(t *testing.T) {
	callErr := &CallError{
		Method:     "crm.deal.update",
		StatusCode: 401,
		Err:        ErrUnauthorized,
	}

	wrapped := fmt.Errorf("pipeline: %w", callErr)

	assert.True(t, errors.Is(wrapped, ErrUnauthorized))

	extracted, ok := AsCallError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "crm.deal.update", extracted.Method)
	assert.Equal(t, 401, extracted.StatusCode)
}

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		predicate func(error) bool
		expected  bool
	}{
		{
			name:      "rate limited",
			err:       &CallError{Method: "m", Err: ErrRateLimited},
			predicate: IsRateLimited,
			expected:  true,
		},
		{
			name:      "unauthorized",
			err:       &CallError{Method: "m", Err: ErrUnauthorized},
			predicate: IsUnauthorized,
			expected:  true,
		},
		{
			name:      "malformed",
			err:       &CallError{Method: "m", Err: ErrResponseMalformed},
			predicate: IsMalformed,
			expected:  true,
		},
		{
			name:      "remote call failed",
			err:       &CallError{Method: "m", StatusCode: 400, Err: ErrRemoteCallFailed},
			predicate: IsRemoteCallFailed,
			expected:  true,
		},
		{
			name:      "mismatched kind",
			err:       &CallError{Method: "m", Err: ErrRemoteCallFailed},
			predicate: IsRateLimited,
			expected:  false,
		},
		{
			name:      "plain error",
			err:       errors.New("boom"),
			predicate: IsUnauthorized,
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.predicate(tt.err))
		})
	}
}

func TestAsCallError_NotACallError(t *testing.T) {
	_, ok := AsCallError(errors.New("plain"))
	assert.False(t, ok)
}
