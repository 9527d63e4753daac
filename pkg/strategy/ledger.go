package strategy

import (
	"errors"
	"fmt"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrInvalidTransition is returned when a task leaves a terminal state
var ErrInvalidTransition = errors.New("invalid task state transition")

// TaskStatus is the lifecycle state of a ledger task
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// Task is the record of one Execute call
type Task struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Query       string     `json:"query"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Ledger is the ordered step log of a single execution. Each Execute call
// creates its own Ledger, so nothing is shared across requests.
type Ledger struct {
	task      Task
	steps     []Step
	callbacks Callbacks
	mu        sync.Mutex
	emitMu    sync.Mutex
}

// NewLedger creates a pending task with an empty step list
func NewLedger(taskType, query string, callbacks Callbacks) *Ledger {
	return &Ledger{
		task: Task{
			ID:        newID(),
			Type:      taskType,
			Query:     query,
			Status:    TaskPending,
			CreatedAt: time.Now(),
		},
		callbacks: callbacks,
	}
}

// Start moves the task from pending to running
func (l *Ledger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.task.Status != TaskPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.task.Status, TaskRunning)
	}
	l.task.Status = TaskRunning
	l.task.StartedAt = time.Now()
	return nil
}

// Complete moves the task from running to completed
func (l *Ledger) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.task.Status != TaskRunning {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.task.Status, TaskCompleted)
	}
	l.task.Status = TaskCompleted
	l.task.CompletedAt = time.Now()
	return nil
}

// Fail records err and marks the task failed. Retrying is the caller's concern.
func (l *Ledger) Fail(err error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.task.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.task.Status, TaskFailed)
	}
	l.task.Status = TaskFailed
	l.task.CompletedAt = time.Now()
	if err != nil {
		l.task.Error = err.Error()
	}
	return nil
}

// AddStep appends a step and hands it to OnStep before returning
func (l *Ledger) AddStep(step Step) Step {
	l.emitMu.Lock()
	defer l.emitMu.Unlock()

	if step.ID == "" {
		step.ID = newID()
	}
	if step.Status == "" {
		step.Status = StepPending
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.steps = append(l.steps, step)
	l.mu.Unlock()

	if l.callbacks.OnStep != nil {
		l.callbacks.OnStep(step)
	}
	return step
}

// Steps returns a copy of the recorded steps
func (l *Ledger) Steps() []Step {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Task returns a copy of the task record
func (l *Ledger) Task() Task {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.task
}

// Duration is the elapsed time since the task started, or zero if it never did
func (l *Ledger) Duration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.task.StartedAt.IsZero() {
		return 0
	}
	end := l.task.CompletedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(l.task.StartedAt)
}

func newID() string {
	id, err := gonanoid.New()
	if err != nil {
		return fmt.Sprintf("step-%d", time.Now().UnixNano())
	}
	return id
}
