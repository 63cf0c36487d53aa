package model

import (
	"fmt"
	"strings"
	"sync"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskDone       TaskStatus = "DONE"
)

// ParseTaskStatus converts s to a TaskStatus, case-insensitively.
func ParseTaskStatus(s string) (TaskStatus, error) {
	switch TaskStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case TaskPending:
		return TaskPending, nil
	case TaskInProgress:
		return TaskInProgress, nil
	case TaskDone:
		return TaskDone, nil
	}
	return "", Invalid("task", "", "unknown status", s)
}

// Active reports whether the status still holds the assignee.
func (s TaskStatus) Active() bool {
	return s == TaskPending || s == TaskInProgress
}

// CanTransition reports whether a task in status s may move to next.
// DONE is terminal.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	switch s {
	case TaskPending:
		return next == TaskPending || next == TaskInProgress || next == TaskDone
	case TaskInProgress:
		return next == TaskInProgress || next == TaskDone
	default:
		return false
	}
}

// Task is a unit of delivery work. Only the status changes after creation.
type Task struct {
	ID          string
	Description string
	// AssigneeID is empty for tasks without a target vehicle.
	AssigneeID string

	mu     sync.Mutex
	status TaskStatus
}

// NewTask returns a PENDING task.
func NewTask(id, description, assignee string) *Task {
	return &Task{
		ID:          strings.TrimSpace(id),
		Description: description,
		AssigneeID:  strings.TrimSpace(assignee),
		status:      TaskPending,
	}
}

// Status returns the current status.
func (t *Task) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Transition moves the task to next and returns the previous status.
func (t *Task) Transition(next TaskStatus) (TaskStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev := t.status
	if !prev.CanTransition(next) {
		return prev, Invalid("task", t.ID, fmt.Sprintf("cannot move from %s to %s", prev, next), next)
	}
	t.status = next
	return prev, nil
}

// HeldBy reports whether the task is active and assigned to vehicleID.
func (t *Task) HeldBy(vehicleID string) bool {
	return t.AssigneeID != "" && t.AssigneeID == vehicleID && t.Status().Active()
}

// TaskView is a read-only snapshot of a task.
type TaskView struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	AssigneeID  string     `json:"assignee_id,omitempty"`
	Status      TaskStatus `json:"status"`
}

// View returns a snapshot of the task.
func (t *Task) View() TaskView {
	return TaskView{ID: t.ID, Description: t.Description, AssigneeID: t.AssigneeID, Status: t.Status()}
}

func (t *Task) String() string {
	return fmt.Sprintf("Task{id=%s, assignee=%s, status=%s, desc=%q}", t.ID, t.AssigneeID, t.Status(), t.Description)
}
