// internal/inventory/result.go
package inventory

// Outcome 은 fetch 결과의 종류.
type Outcome int

const (
	OK Outcome = iota
	NotFound
	Failed
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case NotFound:
		return "not_found"
	default:
		return "failed"
	}
}

// Result 는 fetch 결과 태그 타입.
// 호출자는 특정 status code 를 잡는 대신 Outcome 으로 분기한다.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OK}
}

func Missing[T any]() Result[T] {
	return Result[T]{Outcome: NotFound}
}

func Fail[T any](err error) Result[T] {
	return Result[T]{Outcome: Failed, Err: err}
}

// Get 은 NotFound 를 zero 값으로 낮추고, Failed 만 에러로 돌려준다.
func (r Result[T]) Get() (T, error) {
	if r.Outcome == Failed {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}
