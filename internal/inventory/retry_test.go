package inventory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noSleep 는 대기 시간만 기록하고 바로 반환한다.
func noSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"404", &APIError{Status: http.StatusNotFound}, KindNotFound},
		{"503", &APIError{Status: http.StatusServiceUnavailable}, KindTransient},
		{"429", &APIError{Status: http.StatusTooManyRequests}, KindTransient},
		{"400", &APIError{Status: http.StatusBadRequest}, KindPermanent},
		{"401", &APIError{Status: http.StatusUnauthorized}, KindPermanent},
		{"wrapped 404", fmt.Errorf("hosts: %w", &APIError{Status: 404}), KindNotFound},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"canceled", context.Canceled, KindPermanent},
		{"plain", errors.New("boom"), KindPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestRetry_TransientExhaustsBound(t *testing.T) {
	var delays []time.Duration
	p := DefaultRetryPolicy()
	p.Sleep = noSleep(&delays)
	p.Rand = func() float64 { return 0 }

	calls := 0
	transient := &APIError{Op: "get_versions", Status: http.StatusServiceUnavailable}
	_, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, transient
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	var delays []time.Duration
	p := DefaultRetryPolicy()
	p.Sleep = noSleep(&delays)

	calls := 0
	v, err := Retry(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", &APIError{Status: http.StatusBadGateway}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 2, calls)
	assert.Len(t, delays, 1)
}

func TestRetry_PermanentNotRetried(t *testing.T) {
	var delays []time.Duration
	p := DefaultRetryPolicy()
	p.Sleep = noSleep(&delays)

	calls := 0
	_, err := Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, &APIError{Status: http.StatusForbidden}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestRetry_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := DefaultRetryPolicy()
	p.BaseDelay = time.Hour

	calls := 0
	_, err := Retry(ctx, p, func(context.Context) (int, error) {
		calls++
		return 0, &APIError{Status: http.StatusServiceUnavailable}
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_DelayCappedWithJitter(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Rand = func() float64 { return 0.999 }

	assert.InDelta(t, float64(1999*time.Millisecond), float64(p.Delay(1)), float64(time.Millisecond))
	assert.InDelta(t, float64(2999*time.Millisecond), float64(p.Delay(2)), float64(time.Millisecond))
	// 4s + jitter → MaxDelay 로 cap
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(10))
}
