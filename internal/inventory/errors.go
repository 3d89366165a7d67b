// internal/inventory/errors.go
package inventory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// APIError 는 inventory API 가 2xx 가 아닌 응답을 준 경우.
type APIError struct {
	Op     string // 예: "get_events"
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inventory %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("inventory %s: status %d: %s", e.Op, e.Status, e.Body)
}

// Kind 는 에러 분류.
//   - KindNotFound : 재시도 없이 빈 결과로 대체
//   - KindTransient: backoff 재시도 대상
//   - KindPermanent: 즉시 호출자에게 전파
type Kind int

const (
	KindPermanent Kind = iota
	KindTransient
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	default:
		return "permanent"
	}
}

// KindOf 는 에러를 분류한다.
//
// 분류 기준:
//   - 404                       → NotFound
//   - 5xx, 429, 408             → Transient
//   - 네트워크 에러 / timeout   → Transient
//   - ctx 취소                  → Permanent (재시도 의미 없음)
//   - 그 외                     → Permanent
func KindOf(err error) Kind {
	if err == nil {
		return KindPermanent
	}
	if errors.Is(err, context.Canceled) {
		return KindPermanent
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusNotFound:
			return KindNotFound
		case apiErr.Status >= 500,
			apiErr.Status == http.StatusTooManyRequests,
			apiErr.Status == http.StatusRequestTimeout:
			return KindTransient
		default:
			return KindPermanent
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	return KindPermanent
}

// IsTransient 는 RetryPolicy 의 기본 retryable 판단.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
