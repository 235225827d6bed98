package scenario

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// CustomScenario is a user-authored scenario injected ahead of the grouped
// ones. Its cases may be new to the run.
type CustomScenario struct {
	Scenario
	Cases []testcase.TestCase
}

// loadCustomScenario reads the optional custom scenario file. A missing file
// is not an error; a malformed one is.
func (c *Cache) loadCustomScenario() (*CustomScenario, error) {
	if c.CustomScenarioPath == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.CustomScenarioPath) //#nosec G304 -- user-provided file
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read custom scenario: %w", err)
	}

	var wrapper struct {
		Scenario json.RawMessage `json:"scenario"`
	}
	payload := data
	if json.Unmarshal(data, &wrapper) == nil && len(wrapper.Scenario) > 0 {
		payload = wrapper.Scenario
	}

	var raw struct {
		ID           string              `json:"id"`
		Title        string              `json:"title"`
		Priority     string              `json:"priority"`
		IsOnboarding bool                `json:"is_onboarding"`
		Cases        []testcase.TestCase `json:"cases"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("parse custom scenario: %w", err)
	}
	if raw.ID == "" {
		return nil, fmt.Errorf("custom scenario requires non-empty id")
	}
	if len(raw.Cases) == 0 {
		return nil, fmt.Errorf("custom scenario requires non-empty cases list")
	}

	for i := range raw.Cases {
		c := &raw.Cases[i]
		if c.ID == "" {
			c.ID = fmt.Sprintf("%s_case_%03d", raw.ID, i+1)
		}
		if c.Title == "" {
			c.Title = fmt.Sprintf("Custom case %d", i+1)
		}
		if c.Priority == "" {
			c.Priority = firstNonEmpty(raw.Priority, "high")
		}
		if c.SuitePath == "" {
			c.SuitePath = "Custom / User Scenario"
		}
	}

	ids := make([]string, 0, len(raw.Cases))
	steps := 0
	for _, tc := range raw.Cases {
		ids = append(ids, tc.ID)
		steps += len(tc.Steps)
	}
	return &CustomScenario{
		Scenario: Scenario{
			ID:           raw.ID,
			Title:        firstNonEmpty(raw.Title, "Custom user scenario"),
			Priority:     firstNonEmpty(raw.Priority, "high"),
			IsOnboarding: raw.IsOnboarding,
			CasesCount:   len(raw.Cases),
			TotalSteps:   steps,
			CaseIDs:      ids,
		},
		Cases: raw.Cases,
	}, nil
}

// LoadCustom exposes the optional custom scenario so callers can inject its
// cases into the run's case list.
func (c *Cache) LoadCustom() (*CustomScenario, error) {
	return c.loadCustomScenario()
}

// InjectCustomCases appends the custom scenario's cases that are not already
// present in the run's case list.
func InjectCustomCases(cases []testcase.TestCase, custom *CustomScenario) []testcase.TestCase {
	if custom == nil {
		return cases
	}
	existing := make(map[string]bool, len(cases))
	for _, c := range cases {
		existing[c.ID] = true
	}
	for _, c := range custom.Cases {
		if !existing[c.ID] {
			cases = append(cases, c)
		}
	}
	return cases
}

func upsertCustom(scenarios []Scenario, custom CustomScenario) []Scenario {
	out := make([]Scenario, 0, len(scenarios)+1)
	out = append(out, custom.Scenario)
	for _, s := range scenarios {
		if s.ID != custom.ID {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
