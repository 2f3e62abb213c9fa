package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeToHTTPStatus(t *testing.T) {
	cases := map[ErrorCode]int{
		CodeInvalidRequest:      http.StatusBadRequest,
		CodeInvalidAPIKey:       http.StatusUnauthorized,
		CodeInsufficientCredits: http.StatusPaymentRequired,
		CodeModelNotFound:       http.StatusNotFound,
		CodeContextTooLong:      http.StatusRequestEntityTooLarge,
		CodeRateLimited:         http.StatusTooManyRequests,
		CodeNetworkError:        http.StatusBadGateway,
		CodeUnknown:             http.StatusInternalServerError,
		CodeGenerationInFlight:  http.StatusConflict,
	}
	for code, want := range cases {
		assert.Equal(t, want, New(code, "x").HTTPStatus, string(code))
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, New(CodeRateLimited, "x").Retryable)
	assert.True(t, New(CodeNetworkError, "x").Retryable)
	assert.False(t, New(CodeInvalidAPIKey, "x").Retryable)
	assert.False(t, New(CodeContextTooLong, "x").Retryable)
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	e := ErrWorkflowNotFound.WithDetail("id=1")
	assert.Equal(t, "id=1", e.Detail)
	assert.Empty(t, ErrWorkflowNotFound.Detail)
}

func TestAsAppErrorUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(CodeModelNotFound, "missing"))
	assert.True(t, IsAppError(wrapped))
	assert.Equal(t, CodeModelNotFound, AsAppError(wrapped).Code)
	assert.True(t, HasCode(wrapped, CodeModelNotFound))

	plain := fmt.Errorf("boom")
	assert.False(t, IsAppError(plain))
	assert.Equal(t, CodeUnknown, AsAppError(plain).Code)
}
