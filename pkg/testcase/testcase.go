// Package testcase models the structured test cases fed into the engine and
// loads them from Qase-style JSON exports.
package testcase

import (
	"encoding/json"
	"strings"
)

// TestCase is one structured test case. Immutable per run.
type TestCase struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Priority       string   `json:"priority"`
	Preconditions  string   `json:"preconditions,omitempty"`
	Postconditions string   `json:"postconditions,omitempty"`
	Steps          []Step   `json:"steps"`
	Tags           []string `json:"tags,omitempty"`
	IsOnboarding   bool     `json:"is_onboarding"`
	SuitePath      string   `json:"suite_path,omitempty"`
}

// Step is one test-case step: a raw action label, an optional payload and an
// optional expected result. Immutable.
type Step struct {
	Action         string `json:"action"`
	Payload        string `json:"payload,omitempty"`
	ExpectedResult string `json:"expected_result,omitempty"`
}

// UnmarshalJSON accepts the field aliases seen in Qase exports: action/type,
// payload/value/text/data, expected_result/expectedResult.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action         string `json:"action"`
		Type           string `json:"type"`
		Payload        string `json:"payload"`
		Value          string `json:"value"`
		Text           string `json:"text"`
		Data           string `json:"data"`
		ExpectedResult string `json:"expected_result"`
		ExpectedAlt    string `json:"expectedResult"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Action = firstNonEmpty(raw.Action, raw.Type)
	s.Payload = firstNonEmpty(raw.Payload, raw.Value, raw.Text, raw.Data)
	s.ExpectedResult = firstNonEmpty(raw.ExpectedResult, raw.ExpectedAlt)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// StepsText renders the steps as one compact line for keyword heuristics.
func (c TestCase) StepsText() string {
	parts := make([]string, 0, len(c.Steps))
	for _, step := range c.Steps {
		if s := strings.TrimSpace(step.Action); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "; ")
}

// RootSuite returns the first segment of the suite path, or "Ungrouped".
func (c TestCase) RootSuite() string {
	if c.SuitePath == "" {
		return "Ungrouped"
	}
	return strings.TrimSpace(strings.SplitN(c.SuitePath, " / ", 2)[0])
}

// PriorityRank orders priorities high < medium < low < anything else.
func PriorityRank(priority string) int {
	switch strings.ToLower(priority) {
	case "high":
		return 0
	case "medium":
		return 1
	case "low":
		return 2
	default:
		return 3
	}
}
