package core

// Failure cause codes shared across classification, memory and reporting.
const (
	CauseTimeout               = "timeout"
	CauseElementNotFound       = "element_not_found"
	CauseAssertionFailed       = "assertion_failed"
	CauseInvalidYAML           = "invalid_yaml"
	CauseBinaryNotFound        = "maestro_binary_not_found"
	CauseUnknownFailure        = "unknown_maestro_failure"
	CauseMissingAssertions     = "missing_assertions"
	CauseInstallFailed         = "app_install_failed"
	CauseInstallTimeout        = "app_install_timeout"
	CauseInstallerNotFound     = "install_backend_not_found"
	CauseInvalidPayload        = "invalid_payload"
	CauseUnconfirmedTransition = "unconfirmed_transition"
)

// FailureContext carries compact diagnostics for a failed attempt so the
// caller can repair the flow surgically instead of regenerating it.
type FailureContext struct {
	Cause          string `json:"cause"`
	Recommendation string `json:"recommendation"`
	LogExcerpt     string `json:"log_excerpt,omitempty"`
	LogPath        string `json:"log_path,omitempty"`
}

// NavigationContext is the reconstructed position inside the app flow at the
// moment an attempt stopped. It tells the caller where to resume from.
type NavigationContext struct {
	FromScreen    string   `json:"from_screen,omitempty"`
	CurrentScreen string   `json:"current_screen,omitempty"`
	NextScreen    string   `json:"next_screen,omitempty"`
	ActionHint    string   `json:"action_hint,omitempty"`
	ScreenChain   []string `json:"screen_chain,omitempty"`
	Elements      []string `json:"elements,omitempty"`
}

// Outcome is the transient result of a single execution attempt. Its fields
// are folded into the persistent stores but it is never persisted itself.
type Outcome struct {
	TestID     string             `json:"test_id"`
	Status     Status             `json:"-"`
	StatusText string             `json:"status"`
	Attempt    int                `json:"attempt"`
	Artifacts  []string           `json:"artifacts,omitempty"`
	Failure    *FailureContext    `json:"failure_context,omitempty"`
	Navigation *NavigationContext `json:"navigation_context,omitempty"`
}

// NewOutcome builds an Outcome with a consistent status string.
func NewOutcome(testID string, status Status, attempt int) Outcome {
	return Outcome{
		TestID:     testID,
		Status:     status,
		StatusText: status.String(),
		Attempt:    attempt,
	}
}
