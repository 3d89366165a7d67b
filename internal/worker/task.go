// internal/worker/task.go
package worker

import "sync/atomic"

// TaskState 는 Task 핸들의 생명주기.
//
//	pending ─┬─> running ──> done
//	         └─> cancelled
type TaskState int32

const (
	TaskPending TaskState = iota
	TaskRunning
	TaskDone
	TaskCancelled
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskRunning:
		return "running"
	case TaskDone:
		return "done"
	default:
		return "cancelled"
	}
}

// Task 는 제출된 클러스터 하나에 대한 핸들.
// 상태 전이는 CAS 로만 일어나므로 start 와 cancel 중 정확히 하나만 이긴다.
type Task struct {
	ClusterID string

	state atomic.Int32
	done  chan struct{}

	// finish 이후에만 읽는다 (done close 가 happens-before 를 보장)
	written int
	err     error
}

func newTask(clusterID string) *Task {
	return &Task{ClusterID: clusterID, done: make(chan struct{})}
}

func (t *Task) State() TaskState {
	return TaskState(t.state.Load())
}

// Done 은 태스크가 끝나거나 취소되면 닫힌다.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result 는 Done 이후에 호출한다. 취소된 태스크는 (0, nil).
func (t *Task) Result() (int, error) {
	return t.written, t.err
}

func (t *Task) start() bool {
	return t.state.CompareAndSwap(int32(TaskPending), int32(TaskRunning))
}

func (t *Task) cancel() bool {
	if !t.state.CompareAndSwap(int32(TaskPending), int32(TaskCancelled)) {
		return false
	}
	close(t.done)
	return true
}

func (t *Task) finish(written int, err error) {
	t.written, t.err = written, err
	t.state.Store(int32(TaskDone))
	close(t.done)
}
