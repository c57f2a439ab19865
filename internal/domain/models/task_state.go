package models

import "time"

type TaskState int

const (
	TaskNonExistent TaskState = iota
	TaskActive
	TaskDeleted
)

func (s TaskState) String() string {
	switch s {
	case TaskNonExistent:
		return "non_existent"
	case TaskActive:
		return "active"
	case TaskDeleted:
		return "deleted"
	}
	return "unknown"
}

// CanTransition reports whether a task may move from one lifecycle state to
// another. Creation and deletion are the only edges; Deleted is terminal.
func CanTransition(from, to TaskState) bool {
	switch {
	case from == TaskNonExistent && to == TaskActive:
		return true
	case from == TaskActive && to == TaskDeleted:
		return true
	}
	return false
}

// PercentageTimeSpent returns how much of the window between creation and
// deadline has elapsed at now, clamped to [0, 100].
func (t Task) PercentageTimeSpent(now time.Time) int {
	total := t.Deadline.Sub(t.CreatedAt)
	if total <= 0 {
		return 100
	}
	spent := now.Sub(t.CreatedAt)
	switch {
	case spent <= 0:
		return 0
	case spent >= total:
		return 100
	}
	return int(float64(spent) / float64(total) * 100)
}
