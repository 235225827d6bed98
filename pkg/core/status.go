// Package core provides the shared execution model types for qa-automator.
package core

// Status represents the outcome of a test case attempt.
type Status int

const (
	StatusPending     Status = iota // Not yet attempted
	StatusPassed                    // Attempt completed successfully
	StatusFailed                    // Attempt failed (retryable)
	StatusProblematic               // Attempt ceiling reached, no more retries
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusProblematic:
		return "problematic"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status ends the attempt loop.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusProblematic
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusPassed
}

// ParseStatus maps a stored status string back to a Status.
func ParseStatus(s string) Status {
	switch s {
	case "passed":
		return StatusPassed
	case "failed":
		return StatusFailed
	case "problematic":
		return StatusProblematic
	default:
		return StatusPending
	}
}

// Confidence grades how much weight a start-context recommendation carries.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

// String returns the string representation of Confidence.
func (c Confidence) String() string {
	switch c {
	case ConfidenceHigh:
		return "high"
	case ConfidenceMedium:
		return "medium"
	default:
		return "low"
	}
}
