package synth

import (
	"errors"
	"fmt"

	"github.com/ByLCY/scribe/dsl"
	"github.com/ByLCY/scribe/layout"
	"github.com/ByLCY/scribe/style"
)

var (
	ErrQueueFull         = errors.New("task queue is full")
	ErrTaskNotFound      = errors.New("task not found")
	ErrNotCompleted      = errors.New("task is not completed")
	ErrInvalidTransition = errors.New("invalid task state transition")
	ErrEmptyDocument     = errors.New("document has no words")
	ErrTemplateNotFound  = errors.New("template not found")
	ErrStopped           = errors.New("orchestrator is stopped")
)

// Stage names where a task can fail.
const (
	StageParse    = "parse"
	StageBind     = "bind"
	StageResolve  = "resolve"
	StageLayout   = "layout"
	StageGenerate = "generate"
	StageRender   = "render"
	StageStore    = "store"
)

// TaskError wraps a failure with the task and stage it happened in. Offset
// is the byte offset in the markup when known, else -1.
type TaskError struct {
	TaskID string
	Stage  string
	Offset int
	WordID int
	Err    error
}

func (e *TaskError) Error() string {
	prefix := e.Stage
	if e.TaskID != "" {
		prefix = fmt.Sprintf("task %s: %s", e.TaskID, e.Stage)
	}
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset %d: %v", prefix, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }

// Info converts the error into its serialisable descriptor.
func (e *TaskError) Info() *ErrorInfo {
	info := &ErrorInfo{Stage: e.Stage, Message: e.Err.Error(), Offset: e.Offset, WordID: -1}
	if e.Stage == StageGenerate {
		info.WordID = e.WordID
	}
	return info
}

// ErrorInfo is the error descriptor carried by failed tasks and events.
type ErrorInfo struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Offset  int    `json:"offset"`
	WordID  int    `json:"word_id"`
}

func newTaskError(taskID, stage string, err error) *TaskError {
	return &TaskError{TaskID: taskID, Stage: stage, Offset: errorOffset(err), WordID: -1, Err: err}
}

// errorOffset extracts the markup offset carried by typed errors.
func errorOffset(err error) int {
	var me *dsl.MarkupError
	if errors.As(err, &me) {
		return me.Offset
	}
	var se *style.StyleError
	if errors.As(err, &se) {
		return se.Offset
	}
	var le *layout.LayoutError
	if errors.As(err, &le) {
		return le.Offset
	}
	return -1
}
