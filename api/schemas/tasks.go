package schemas

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTaskNotFound is returned by TaskStore lookups for unknown IDs.
var ErrTaskNotFound = errors.New("task not found")

// -- Task Schemas --

// TaskStatus is the lifecycle state of a browse task managed by the service.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Task is one tracked browse request, from submission through completion.
type Task struct {
	ID        string     `json:"task_id"`
	Goal      string     `json:"goal"`
	Status    TaskStatus `json:"status"`
	Report    *RunReport `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Cached    bool       `json:"cached,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Duration  float64    `json:"duration,omitempty"` // seconds
}

// TaskFilter narrows and pages a task listing. A zero Limit means the
// server default.
type TaskFilter struct {
	Status TaskStatus
	Limit  int
	Offset int
}

// TaskList is a page of tasks plus the unpaged total.
type TaskList struct {
	Total  int    `json:"total"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Tasks  []Task `json:"tasks"`
}

// -- Service Request Schemas --

// BrowseRequest bounds, mirroring the limits the service enforces.
const (
	GoalMinLength     = 10
	GoalMaxLength     = 500
	MinIterations     = 1
	MaxIterationsCap  = 50
	MinTimeoutSeconds = 30
	MaxTimeoutSeconds = 600
)

// BrowseRequest is the payload for POST /browse and POST /browse/sync. The
// LLM fields optionally override the server's configured provider for this
// request only.
type BrowseRequest struct {
	Goal           string `json:"goal"`
	MaxIterations  int    `json:"max_iterations,omitempty"`
	LLMProvider    string `json:"llm_provider,omitempty"`
	LLMModel       string `json:"llm_model,omitempty"`
	LLMEndpoint    string `json:"llm_endpoint,omitempty"`
	TimeoutSeconds int    `json:"timeout,omitempty"`
}

// Normalize trims the goal and applies defaults for unset numeric fields.
func (r *BrowseRequest) Normalize() {
	r.Goal = strings.TrimSpace(r.Goal)
	if r.MaxIterations == 0 {
		r.MaxIterations = 15
	}
	if r.TimeoutSeconds == 0 {
		r.TimeoutSeconds = 300
	}
}

// Validate checks the structural bounds of the request. Provider names are
// validated where the provider is constructed.
func (r *BrowseRequest) Validate() error {
	if len(r.Goal) < GoalMinLength || len(r.Goal) > GoalMaxLength {
		return fmt.Errorf("goal must be between %d and %d characters", GoalMinLength, GoalMaxLength)
	}
	if r.MaxIterations < MinIterations || r.MaxIterations > MaxIterationsCap {
		return fmt.Errorf("max_iterations must be between %d and %d", MinIterations, MaxIterationsCap)
	}
	if r.TimeoutSeconds < MinTimeoutSeconds || r.TimeoutSeconds > MaxTimeoutSeconds {
		return fmt.Errorf("timeout must be between %d and %d seconds", MinTimeoutSeconds, MaxTimeoutSeconds)
	}
	return nil
}

// Timeout returns the request timeout as a duration.
func (r *BrowseRequest) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}
