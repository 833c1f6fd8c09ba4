package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dukex/maestro/pkg/models"
)

func TestBackoffDelay_ExponentialGrowth(t *testing.T) {
	policy := &models.RetryPolicy{
		MaxAttempts:   4,
		InitialDelay:  models.NewDuration(time.Second),
		BackoffFactor: 2,
	}

	assert.Equal(t, time.Second, backoffDelay(policy, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(policy, 2))
	assert.Equal(t, 4*time.Second, backoffDelay(policy, 3))
}

func TestBackoffDelay_MaxDelayCaps(t *testing.T) {
	policy := &models.RetryPolicy{
		MaxAttempts:   5,
		InitialDelay:  models.NewDuration(time.Second),
		BackoffFactor: 3,
		MaxDelay:      models.NewDuration(5 * time.Second),
	}

	assert.Equal(t, time.Second, backoffDelay(policy, 1))
	assert.Equal(t, 3*time.Second, backoffDelay(policy, 2))
	assert.Equal(t, 5*time.Second, backoffDelay(policy, 3))
	assert.Equal(t, 5*time.Second, backoffDelay(policy, 4))
}

func TestBackoffDelay_Defaults(t *testing.T) {
	// Zero initial delay falls back to one second, factor below one to two.
	policy := &models.RetryPolicy{MaxAttempts: 3}

	assert.Equal(t, time.Second, backoffDelay(policy, 1))
	assert.Equal(t, 2*time.Second, backoffDelay(policy, 2))
}

func TestBackoffDelay_FactorOneStaysFlat(t *testing.T) {
	policy := &models.RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  models.NewDuration(500 * time.Millisecond),
		BackoffFactor: 1,
	}

	assert.Equal(t, 500*time.Millisecond, backoffDelay(policy, 1))
	assert.Equal(t, 500*time.Millisecond, backoffDelay(policy, 2))
}

func TestRetryable_KindMatching(t *testing.T) {
	anyKind := &models.RetryPolicy{MaxAttempts: 2}
	assert.True(t, retryable(anyKind, ErrKindNodeFailure))
	assert.True(t, retryable(anyKind, ErrKindNodeTimeout))

	timeoutOnly := &models.RetryPolicy{MaxAttempts: 2, RetryOn: []string{ErrKindNodeTimeout}}
	assert.True(t, retryable(timeoutOnly, ErrKindNodeTimeout))
	assert.False(t, retryable(timeoutOnly, ErrKindNodeFailure))

	assert.False(t, retryable(nil, ErrKindNodeFailure))
}
