// internal/inventory/retry.go
package inventory

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy
// ------------------------------------------------------------
// inventory 호출에 적용하는 명시적인 재시도 정책.
//
//	delay(n) = min(BaseDelay * Multiplier^(n-1) + jitter, MaxDelay)
//	jitter   ∈ [0, Jitter)
//
// Sleep / Rand 를 주입할 수 있어 테스트에서 실제 대기 없이 검증한다.
type RetryPolicy struct {
	MaxAttempts int // 첫 시도 포함 총 시도 횟수
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      time.Duration
	Multiplier  float64

	Retryable func(error) bool
	Sleep     func(ctx context.Context, d time.Duration) error
	Rand      func() float64

	// OnRetry 는 재시도 직전에 호출된다 (metrics / 로그용).
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy: 3회, 1s → 2s → (cap 4s), jitter 최대 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    4 * time.Second,
		Jitter:      time.Second,
		Multiplier:  2,
		Retryable:   IsTransient,
	}
}

// Delay 는 n 번째 재시도(1부터) 전의 대기 시간.
func (p RetryPolicy) Delay(n int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= mult
	}
	if p.Jitter > 0 {
		d += p.random() * float64(p.Jitter)
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

func (p RetryPolicy) random() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}

func (p RetryPolicy) retryable(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return IsTransient(err)
}

func (p RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// sleepCtx 는 shutdown-safe 한 대기. ctx 가 끝나면 즉시 반환한다.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retry 는 op 를 정책에 따라 실행한다.
//   - 성공: 즉시 반환
//   - retryable 에러: backoff 후 재시도, 소진 시 마지막 에러 반환
//   - 그 외 에러: 즉시 반환 (NotFound 포함 → 호출자가 분기)
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if !p.retryable(err) || attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if err := p.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}
