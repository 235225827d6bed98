package memory

import (
	"time"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/scoring"
	"github.com/nguyenopenclaw/qa-automator/pkg/segment"
)

// PlanRecord logs a start-context hypothesis before an attempt runs.
type PlanRecord struct {
	TestID           string
	ScenarioID       string
	RecommendedStart string
	Confidence       string
	Notes            string
}

// RecordPlan appends a bounded plan-log entry and, when a start was
// recommended, decays then bumps the case score map by the planning weight
// and the scenario map by half of it. Plans are hypotheses; they never set
// the explicit preferred start.
func (s *Store) RecordPlan(rec PlanRecord) error {
	if rec.TestID == "" {
		return core.ErrInvalidPayload.WithMessage("record_plan requires test_id")
	}
	entry := s.caseEntry(rec.TestID, true)
	entry.Plans = append(entry.Plans, Plan{
		Time:             time.Now().UTC().Format(time.RFC3339),
		RecommendedStart: rec.RecommendedStart,
		Confidence:       rec.Confidence,
		Notes:            rec.Notes,
	})
	if len(entry.Plans) > maxPlans {
		entry.Plans = entry.Plans[len(entry.Plans)-maxPlans:]
	}
	if rec.RecommendedStart != "" && rec.RecommendedStart != "unknown" {
		entry.StartScores.Bump(rec.RecommendedStart, scoring.WeightPlan)
		if scenario := s.scenarioEntry(rec.ScenarioID, true); scenario != nil {
			scenario.StartScores.Bump(rec.RecommendedStart, scoring.WeightPlan*scoring.ScenarioShare)
			touch(scenario)
		}
	}
	touch(entry)

	if s.segments != nil {
		s.segments.Record(segment.Event{
			Kind:         "plan",
			TestID:       rec.TestID,
			ScenarioID:   rec.ScenarioID,
			StartContext: rec.RecommendedStart,
			Notes:        rec.Notes,
		})
	}
	return s.save()
}

// ObservationRecord logs the outcome of one attempt.
type ObservationRecord struct {
	TestID       string
	ScenarioID   string
	Title        string
	Status       core.Status
	Attempt      int
	LocationHint string
	FailureCause string
	Notes        string
	Navigation   *NavigationUpdate
}

// RecordObservation appends a bounded observation entry and updates the
// status and failure-cause maps. A location hint decays then bumps the score
// map, weighted substantially higher for a passed outcome, and mirrors into
// the scenario entry at a lower weight. The navigation payload is stored but
// the graph update is the caller's separate, independently failable call.
func (s *Store) RecordObservation(rec ObservationRecord) error {
	if rec.TestID == "" {
		return core.ErrInvalidPayload.WithMessage("record_observation requires test_id")
	}
	if rec.Attempt < 1 {
		rec.Attempt = 1
	}
	entry := s.caseEntry(rec.TestID, true)
	if rec.Title != "" && entry.Title == "" {
		entry.Title = rec.Title
	}
	if rec.LocationHint != "" {
		entry.PreferredStart = rec.LocationHint
	}
	if rec.FailureCause != "" {
		entry.FailureCauses[rec.FailureCause]++
		scoring.PruneCounts(entry.FailureCauses, scoring.MaxEntries, rec.FailureCause)
	}
	entry.StatusCounts[rec.Status.String()]++

	obs := Observation{
		Time:         time.Now().UTC().Format(time.RFC3339),
		Status:       rec.Status.String(),
		Attempt:      rec.Attempt,
		LocationHint: rec.LocationHint,
		FailureCause: rec.FailureCause,
		Notes:        rec.Notes,
		Navigation:   rec.Navigation,
	}
	entry.Observations = append(entry.Observations, obs)
	if len(entry.Observations) > maxObservations {
		entry.Observations = entry.Observations[len(entry.Observations)-maxObservations:]
	}

	weight := scoring.ObservationWeight(rec.Status == core.StatusPassed)
	if rec.LocationHint != "" {
		entry.StartScores.Bump(rec.LocationHint, weight)
	}
	touch(entry)

	if scenario := s.scenarioEntry(rec.ScenarioID, true); scenario != nil {
		if rec.LocationHint != "" {
			scenario.PreferredStart = rec.LocationHint
			scenario.StartScores.Bump(rec.LocationHint, weight*scoring.ScenarioShare)
		}
		if rec.FailureCause != "" {
			scenario.FailureCauses[rec.FailureCause]++
			scoring.PruneCounts(scenario.FailureCauses, scoring.MaxEntries, rec.FailureCause)
		}
		scenario.StatusCounts[rec.Status.String()]++
		touch(scenario)
	}

	if s.segments != nil {
		s.segments.Record(segment.Event{
			Kind:         "observation",
			TestID:       rec.TestID,
			ScenarioID:   rec.ScenarioID,
			StartContext: rec.LocationHint,
			FailureCause: rec.FailureCause,
			Status:       rec.Status.String(),
			Attempt:      rec.Attempt,
			Notes:        rec.Notes,
		})
	}
	return s.save()
}
