// Package taskqueue provides an in-process priority queue of pending AI
// tasks with lifecycle tracking. Ordering is strict priority with FIFO
// tie-break on creation order; dequeue is an atomic pop, so at most one
// worker ever holds a given task.
package taskqueue

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkwell/linkwell/internal/aierr"
)

// Priority orders tasks in the queue. Higher runs first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// ParsePriority maps the wire representation to a Priority.
// Unknown values default to normal.
func ParsePriority(s string) Priority {
	switch s {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	default:
		return PriorityNormal
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// State is a task's lifecycle position. Transitions are monotonic:
// pending -> running -> completed | failed.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Task is one queued AI operation. The queue owns a task until Dequeue
// hands it to a worker; the worker owns it until a terminal state.
type Task struct {
	ID          string
	Type        string // "summary", "tags", "category", "search"
	Priority    Priority
	Payload     any
	State       State
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Result      any
	Err         *aierr.Error

	seq uint64 // enqueue order, the FIFO tie-break
}

var (
	// ErrTaskNotFound is returned for unknown task IDs.
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition signals a lifecycle invariant violation.
	ErrInvalidTransition = errors.New("invalid task state transition")
)

// Queue is a mutex-guarded stable priority queue. Safe for use by
// multiple producers and workers.
type Queue struct {
	mu    sync.Mutex
	ready taskHeap
	tasks map[string]*Task
	seq   uint64
}

// New creates an empty Queue.
func New() *Queue {
	return &Queue{tasks: make(map[string]*Task)}
}

// Enqueue adds a task in state pending and returns its ID. A task with
// no ID is assigned a generated one.
func (q *Queue) Enqueue(t Task) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.State = StatePending
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	q.seq++
	t.seq = q.seq

	stored := t
	q.tasks[stored.ID] = &stored
	heap.Push(&q.ready, &stored)
	return stored.ID
}

// Dequeue removes and returns the highest-priority pending task, or nil
// when the queue is empty. Non-blocking; callers poll. The returned
// snapshot stays pending until MarkStarted.
func (q *Queue) Dequeue() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ready.Len() == 0 {
		return nil
	}
	t := heap.Pop(&q.ready).(*Task)
	snapshot := *t
	return &snapshot
}

// MarkStarted transitions a task from pending to running.
func (q *Queue) MarkStarted(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("marking task %s started: %w", id, ErrTaskNotFound)
	}
	if t.State != StatePending {
		return fmt.Errorf("marking task %s started from %s: %w", id, t.State, ErrInvalidTransition)
	}
	t.State = StateRunning
	t.StartedAt = time.Now().UTC()
	return nil
}

// MarkCompleted transitions a running task to completed with its result.
func (q *Queue) MarkCompleted(id string, result any) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("marking task %s completed: %w", id, ErrTaskNotFound)
	}
	if t.State != StateRunning {
		return fmt.Errorf("marking task %s completed from %s: %w", id, t.State, ErrInvalidTransition)
	}
	t.State = StateCompleted
	t.Result = result
	t.CompletedAt = time.Now().UTC()
	return nil
}

// MarkFailed transitions a running task to failed. Failed tasks are not
// re-enqueued: retry happens inside the completion client, within a
// single execution, never at the queue level.
func (q *Queue) MarkFailed(id string, taskErr *aierr.Error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return fmt.Errorf("marking task %s failed: %w", id, ErrTaskNotFound)
	}
	if t.State != StateRunning {
		return fmt.Errorf("marking task %s failed from %s: %w", id, t.State, ErrInvalidTransition)
	}
	t.State = StateFailed
	t.Err = taskErr
	t.CompletedAt = time.Now().UTC()
	return nil
}

// Status returns a snapshot of the task, or nil if unknown. Tasks are
// retained for status queries until Clear.
func (q *Queue) Status(id string) *Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.tasks[id]
	if !ok {
		return nil
	}
	snapshot := *t
	return &snapshot
}

// Clear drops all tasks, including retained terminal ones.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ready = nil
	q.tasks = make(map[string]*Task)
}

// Len reports the number of pending tasks awaiting dequeue.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ready.Len()
}

// taskHeap orders by priority descending, then enqueue sequence
// ascending. The sequence tie-break makes the heap stable: equal
// priorities dequeue in FIFO order.
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority > h[j].Priority
	}
	return h[i].seq < h[j].seq
}
func (h taskHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*Task)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
