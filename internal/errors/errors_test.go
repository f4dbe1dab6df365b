package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorError_Unwrap_PreservesCause(t *testing.T) {
	// Given: an original error
	cause := stderrors.New("disk on fire")

	// When: wrapping it
	err := New(ErrCodeStorageUnwritable, "cannot write index", cause)

	// Then: the chain reaches the cause
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, "[ERR_203_STORAGE_UNWRITABLE] cannot write index", err.Error())
}

func TestVectorError_Is_MatchesSentinelByCode(t *testing.T) {
	// Given: a wrapped not-initialized error
	err := fmt.Errorf("search: %w", New(ErrCodeNotInitialized, "store not ready", nil))

	// Then: it matches the sentinel but not others
	assert.True(t, stderrors.Is(err, ErrNotInitialized))
	assert.False(t, stderrors.Is(err, ErrQueryEmpty))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeStorageUnwritable, CategoryStorage, SeverityFatal, false},
		{ErrCodeCorruptIndex, CategoryStorage, SeverityWarning, false},
		{ErrCodeEmbedderTimeout, CategoryEmbedder, SeverityWarning, true},
		{ErrCodeCircuitOpen, CategoryEmbedder, SeverityError, false},
		{ErrCodeDimensionMismatch, CategoryValidation, SeverityError, false},
		{ErrCodeExtractionFailed, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestHelpers_LookThroughWrapping(t *testing.T) {
	// Given: a retryable error wrapped twice
	err := fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", New(ErrCodeEmbedderTimeout, "slow", nil)))

	// Then: helpers find it
	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, ErrCodeEmbedderTimeout, GetCode(err))
	assert.Equal(t, CategoryEmbedder, GetCategory(err))
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	// Given: an error with a suggestion
	err := New(ErrCodeStorageLocked, "storage directory is in use", nil).
		WithSuggestion("stop the other mcpvector process")

	// When: formatting
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: storage directory is in use")
	assert.Contains(t, out, "Hint: stop the other mcpvector process")
	assert.Contains(t, out, ErrCodeStorageLocked)
}

func TestLogAttrs_PlainAndStructured(t *testing.T) {
	plain := LogAttrs(stderrors.New("boom"))
	require.Len(t, plain, 1)
	assert.Equal(t, "error", plain[0].Key)

	structured := LogAttrs(New(ErrCodeIndexFailed, "upsert failed", nil).WithDetail("path", "/a.txt"))
	keys := make([]string, 0, len(structured))
	for _, a := range structured {
		keys = append(keys, a.Key)
	}
	assert.Contains(t, keys, "error_code")
	assert.Contains(t, keys, "detail_path")
}

func TestRetry_StopsOnNonRetryable(t *testing.T) {
	// Given: a function that fails with a validation error
	calls := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2, RetryIf: IsRetryable}

	// When: retrying
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return New(ErrCodeQueryEmpty, "empty", nil)
	})

	// Then: only one attempt is made
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithResult_SucceedsAfterTransientFailures(t *testing.T) {
	// Given: a function that times out twice
	calls := 0
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2, RetryIf: IsRetryable}

	// When: retrying
	v, err := RetryWithResult(context.Background(), cfg, func() (int, error) {
		calls++
		if calls < 3 {
			return 0, New(ErrCodeEmbedderTimeout, "timeout", nil)
		}
		return 42, nil
	})

	// Then: the third attempt wins
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	err := Retry(context.Background(), cfg, func() error {
		calls++
		return stderrors.New("nope")
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 3, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, DefaultRetryConfig(), func() error { return nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	// Given: a breaker with a controllable clock
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("embedder", WithMaxFailures(2), WithResetTimeout(time.Minute))
	cb.now = func() time.Time { return now }
	fail := stderrors.New("down")

	// When: two calls fail
	_ = cb.Execute(func() error { return fail })
	_ = cb.Execute(func() error { return fail })

	// Then: the circuit is open and calls are rejected without running
	assert.Equal(t, StateOpen, cb.State())
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, ran)

	// When: the reset timeout passes and the probe succeeds
	now = now.Add(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())
	v, err := CircuitExecute(cb, func() (string, error) { return "ok", nil })

	// Then: the circuit closes
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker("embedder", WithMaxFailures(1), WithResetTimeout(time.Second))
	cb.now = func() time.Time { return now }

	_ = cb.Execute(func() error { return stderrors.New("down") })
	now = now.Add(2 * time.Second)
	_ = cb.Execute(func() error { return stderrors.New("still down") })

	assert.Equal(t, StateOpen, cb.State())
}
