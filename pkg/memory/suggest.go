package memory

import (
	"fmt"
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/scoring"
)

// SuggestRequest carries everything known about the case being planned.
type SuggestRequest struct {
	TestID        string
	ScenarioID    string
	Title         string
	Preconditions string
	StepsText     string
}

// Suggestion is the recommended start context with its provenance.
type Suggestion struct {
	TestID            string   `json:"test_id,omitempty"`
	ScenarioID        string   `json:"scenario_id,omitempty"`
	RecommendedStart  string   `json:"recommended_start"`
	Confidence        string   `json:"confidence"`
	Rationale         []string `json:"rationale,omitempty"`
	TopFailureCauses  []string `json:"top_failure_causes,omitempty"`
	ScreenChain       []string `json:"screen_chain,omitempty"`
	KnownObservations int      `json:"known_case_observations"`
}

// SuggestStart resolves the preferred start context for a case. Resolution
// order, first match wins: case preferred start, case score map, scenario
// preferred start, scenario score map, keyword heuristic, cross-cutting
// segment hint, unknown.
func (s *Store) SuggestStart(req SuggestRequest) Suggestion {
	caseEntry := s.caseEntry(req.TestID, false)
	scenarioEntry := s.scenarioEntry(req.ScenarioID, false)

	out := Suggestion{
		TestID:           req.TestID,
		ScenarioID:       req.ScenarioID,
		RecommendedStart: "unknown",
		Confidence:       core.ConfidenceLow.String(),
	}
	if caseEntry != nil {
		out.KnownObservations = len(caseEntry.Observations)
	}

	switch {
	case caseEntry != nil && caseEntry.PreferredStart != "":
		out.RecommendedStart = caseEntry.PreferredStart
		out.Confidence = core.ConfidenceHigh.String()
		out.Rationale = append(out.Rationale, "exact test case has a historical preferred start screen")
	case caseEntry != nil && len(caseEntry.StartScores) > 0:
		best, _ := caseEntry.StartScores.Top()
		out.RecommendedStart = best
		out.Confidence = core.ConfidenceMedium.String()
		out.Rationale = append(out.Rationale, "case-level score map favors this start context")
	case scenarioEntry != nil && scenarioEntry.PreferredStart != "":
		out.RecommendedStart = scenarioEntry.PreferredStart
		out.Confidence = core.ConfidenceMedium.String()
		out.Rationale = append(out.Rationale, "scenario-level hint is available from previous attempts")
	case scenarioEntry != nil && len(scenarioEntry.StartScores) > 0:
		best, _ := scenarioEntry.StartScores.Top()
		out.RecommendedStart = best
		out.Confidence = core.ConfidenceLow.String()
		out.Rationale = append(out.Rationale, "scenario-level score map favors this start context")
	default:
		if inferred := inferFromText(req.Title, req.Preconditions, req.StepsText); inferred != "" {
			out.RecommendedStart = inferred
			out.Confidence = core.ConfidenceLow.String()
			out.Rationale = append(out.Rationale, "heuristic inference from case text/preconditions")
		}
	}

	if caseEntry != nil && len(caseEntry.FailureCauses) > 0 {
		out.TopFailureCauses = scoring.RankedCounts(caseEntry.FailureCauses, causesSurfaced)
		out.Rationale = append(out.Rationale,
			"common failures: "+strings.Join(out.TopFailureCauses, ", "))
	}

	if s.segments != nil {
		hints := s.segments.AggregateHints(req.TestID, req.ScenarioID)
		if out.RecommendedStart == "unknown" && hints.BestStart != "" {
			out.RecommendedStart = hints.BestStart
			out.Confidence = core.ConfidenceLow.String()
			out.Rationale = append(out.Rationale, "cross-cutting segment history favors this start context")
		}
		if len(out.TopFailureCauses) == 0 && len(hints.TopFailures) > 0 {
			out.TopFailureCauses = hints.TopFailures
			out.Rationale = append(out.Rationale,
				"segment-level failures: "+strings.Join(hints.TopFailures, ", "))
		}
	}

	if s.flowHints != nil && req.ScenarioID != "" {
		if chain, ok := s.flowHints.ScreenChain(req.ScenarioID); ok && len(chain) > 0 {
			preview := chain
			if len(preview) > 5 {
				preview = preview[:5]
			}
			out.ScreenChain = preview
			out.Rationale = append(out.Rationale,
				fmt.Sprintf("known flow: %s", strings.Join(preview, " -> ")))
		}
	}

	return out
}

// Fixed keyword vocabulary for the cold-start heuristic.
func inferFromText(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	haystack := strings.ToLower(strings.Join(nonEmpty, " "))
	if haystack == "" {
		return ""
	}
	switch {
	case strings.Contains(haystack, "onboarding"):
		return "onboarding"
	case strings.Contains(haystack, "login") || strings.Contains(haystack, "sign in"):
		return "auth/login"
	case strings.Contains(haystack, "profile"):
		return "profile"
	case strings.Contains(haystack, "settings"):
		return "settings"
	default:
		return ""
	}
}
