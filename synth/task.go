package synth

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/regen"
	canvasrenderer "github.com/ByLCY/scribe/renderer/canvas"
)

// Status represents the state of a synthesis task.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func canTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusRunning || to == StatusCancelled
	case StatusRunning:
		return to.Terminal()
	}
	return false
}

// Request is a synthesis submission. Name is the artifact base name and
// defaults to "document".
type Request struct {
	Markup string                 `json:"markup"`
	Data   any                    `json:"data,omitempty"`
	Config *layout.DocumentConfig `json:"config,omitempty"`
	Name   string                 `json:"name,omitempty"`
	Format canvasrenderer.Format  `json:"format,omitempty"`
	Title  string                 `json:"title,omitempty"`
}

// Progress counts generated words.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Result locates the current artifact of a completed task.
type Result struct {
	Artifact string `json:"artifact"`
	Metadata string `json:"metadata"`
	URL      string `json:"url,omitempty"`
	Revision int    `json:"revision"`
	Pages    int    `json:"pages"`
	Lines    int    `json:"lines"`
	Words    int    `json:"words"`
}

// Task tracks one synthesis from submission to a terminal state.
type Task struct {
	mu sync.Mutex

	ID         string
	Name       string
	Status     Status
	Stage      string
	Progress   Progress
	Error      *ErrorInfo
	Result     *Result
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
	UpdatedAt  time.Time

	req       Request
	format    canvasrenderer.Format
	cancelled atomic.Bool
	manager   *regen.Manager
	config    layout.DocumentConfig

	// renderMu orders revisions produced by concurrent selections.
	renderMu sync.Mutex
}

func newTask(id string, req Request, format canvasrenderer.Format, cfg layout.DocumentConfig) *Task {
	name := req.Name
	if name == "" {
		name = "document"
	}
	now := time.Now()
	return &Task{
		ID:        id,
		Name:      name,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		req:       req,
		format:    format,
		config:    cfg,
	}
}

// transition moves the task to status, refusing anything the state machine
// does not allow.
func (t *Task) transition(to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(to)
}

func (t *Task) transitionLocked(to Status) error {
	if !canTransition(t.Status, to) {
		return fmt.Errorf("%s -> %s: %w", t.Status, to, ErrInvalidTransition)
	}
	now := time.Now()
	t.Status = to
	t.UpdatedAt = now
	switch {
	case to == StatusRunning:
		t.StartedAt = now
	case to.Terminal():
		t.FinishedAt = now
	}
	return nil
}

func (t *Task) setStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Stage = stage
	t.UpdatedAt = time.Now()
}

func (t *Task) setProgress(completed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Progress = Progress{Completed: completed, Total: total}
	t.UpdatedAt = time.Now()
}

func (t *Task) fail(err *TaskError) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusFailed); err != nil {
		return err
	}
	t.Error = err.Info()
	return nil
}

func (t *Task) complete(res *Result, m *regen.Manager) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(StatusCompleted); err != nil {
		return err
	}
	t.Result = res
	t.manager = m
	return nil
}

func (t *Task) setResult(res *Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Result = res
	t.UpdatedAt = time.Now()
}

func (t *Task) regenManager() (*regen.Manager, *Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != StatusCompleted || t.manager == nil {
		return nil, nil, fmt.Errorf("task %s is %s: %w", t.ID, t.Status, ErrNotCompleted)
	}
	res := *t.Result
	return t.manager, &res, nil
}

func (t *Task) cancelRequested() bool {
	return t.cancelled.Load()
}

// TaskSnapshot is a read-only, JSON-safe copy of task state.
type TaskSnapshot struct {
	ID         string     `json:"task_id"`
	Name       string     `json:"name"`
	Status     Status     `json:"status"`
	Stage      string     `json:"stage,omitempty"`
	Progress   Progress   `json:"progress"`
	Error      *ErrorInfo `json:"error,omitempty"`
	Result     *Result    `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Snapshot returns a JSON-safe copy of the task state.
func (t *Task) Snapshot() TaskSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := TaskSnapshot{
		ID:        t.ID,
		Name:      t.Name,
		Status:    t.Status,
		Stage:     t.Stage,
		Progress:  t.Progress,
		CreatedAt: t.CreatedAt,
	}
	if t.Error != nil {
		e := *t.Error
		s.Error = &e
	}
	if t.Result != nil {
		r := *t.Result
		s.Result = &r
	}
	if !t.StartedAt.IsZero() {
		ts := t.StartedAt
		s.StartedAt = &ts
	}
	if !t.FinishedAt.IsZero() {
		ts := t.FinishedAt
		s.FinishedAt = &ts
	}
	return s
}

// TaskStore is a thread-safe in-memory task registry. Terminal tasks are
// removed once they are older than the retention window.
type TaskStore struct {
	mu        sync.Mutex
	tasks     map[string]*Task
	retention time.Duration
}

func NewTaskStore(retention time.Duration) *TaskStore {
	return &TaskStore{
		tasks:     make(map[string]*Task),
		retention: retention,
	}
}

func (s *TaskStore) Put(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
}

func (s *TaskStore) Get(id string) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

func (s *TaskStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// List returns snapshots of every retained task, newest first.
func (s *TaskStore) List() []TaskSnapshot {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()
	out := make([]TaskSnapshot, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Snapshot())
	}
	sortSnapshots(out)
	return out
}

// Cleanup removes expired terminal tasks and returns their ids.
func (s *TaskStore) Cleanup(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed []string
	for id, t := range s.tasks {
		t.mu.Lock()
		expired := t.Status.Terminal() && now.Sub(t.FinishedAt) > s.retention
		t.mu.Unlock()
		if expired {
			delete(s.tasks, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func sortSnapshots(s []TaskSnapshot) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.After(s[j].CreatedAt)
	})
}
