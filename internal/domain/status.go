package domain

import "strings"

// Status is an objective's lifecycle state.
// The server owns the vocabulary; the constants are the values the CLI offers for completion.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusAtRisk     Status = "at_risk"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// KnownStatuses lists the statuses offered by the CLI.
func KnownStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusAtRisk, StatusCompleted, StatusCancelled}
}

// IsKnown reports whether s is one of KnownStatuses.
func (s Status) IsKnown() bool {
	for _, k := range KnownStatuses() {
		if s == k {
			return true
		}
	}
	return false
}

// NormalizeStatus maps user input such as "In Progress" onto the wire form "in_progress".
func NormalizeStatus(value string) Status {
	v := strings.ToLower(strings.TrimSpace(value))
	v = strings.NewReplacer(" ", "_", "-", "_").Replace(v)
	return Status(v)
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}
