package graph

import (
	"fmt"
	"os"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
)

// Flow is the ordered chain of screens and transitions associated with one
// scenario. Append-only.
type Flow struct {
	ID          string           `json:"flow_id"`
	FlowKey     string           `json:"flow_key"`
	ScenarioID  string           `json:"scenario_id"`
	Description string           `json:"description,omitempty"`
	ScreenChain []string         `json:"screen_chain,omitempty"`
	Screens     []string         `json:"screens,omitempty"`
	Transitions []FlowTransition `json:"transitions,omitempty"`
	TestIDs     []string         `json:"test_ids,omitempty"`
	LastSeenAt  string           `json:"last_seen_at"`
}

// FlowTransition duplicates a confirmed edge inside the owning flow for
// convenient chain reconstruction.
type FlowTransition struct {
	FromScreenID string `json:"from_screen_id"`
	ToScreenID   string `json:"to_screen_id"`
	Via          string `json:"via,omitempty"`
	Count        int    `json:"count"`
}

// TransitionRecord is the input to the confirmed-evidence gate.
type TransitionRecord struct {
	ScenarioID    string
	TestID        string
	CurrentScreen string
	NextScreen    string
	ActionHint    string
	Elements      []string
	FlowKey       string
	Description   string
	Status        core.Status
	Confirmed     *bool // nil means not explicitly denied
	Screenshot    string
	Attempt       int
}

// TransitionResult reports what the gate did.
type TransitionResult struct {
	Recorded     bool   `json:"recorded"`
	Skipped      string `json:"skipped,omitempty"`
	FromScreenID string `json:"from_screen_id,omitempty"`
	ToScreenID   string `json:"to_screen_id,omitempty"`
	FlowID       string `json:"flow_id,omitempty"`
}

// RecordScreenTransition is the single write path into the graph. Evidence
// is confirmed only when the attempt passed, confirmation was not explicitly
// denied, and the screenshot path resolves to an existing file. Unconfirmed
// updates are dropped without touching any store file.
func (s *Store) RecordScreenTransition(rec TransitionRecord) TransitionResult {
	if !s.confirmed(rec) {
		logger.Debug("graph: dropped unconfirmed transition for scenario %s", rec.ScenarioID)
		return TransitionResult{Skipped: core.CauseUnconfirmedTransition}
	}

	opts := UpsertOptions{
		Elements:   rec.Elements,
		Status:     rec.Status,
		HasStatus:  true,
		Screenshot: rec.Screenshot,
		Attempt:    rec.Attempt,
	}
	fromID := s.UpsertScreen(rec.CurrentScreen, opts)
	toID := s.UpsertScreen(rec.NextScreen, UpsertOptions{Status: rec.Status, HasStatus: true})
	if fromID != "" && toID != "" {
		s.AddTransition(fromID, toID, rec.ActionHint)
	}

	result := TransitionResult{Recorded: true, FromScreenID: fromID, ToScreenID: toID}
	if rec.ScenarioID == "" {
		return result
	}
	flow := s.resolveFlow(rec)
	s.foldIntoFlow(flow, fromID, toID, rec)
	if err := s.saveFlow(flow); err != nil {
		logger.Warn("graph: persist flow %s: %v", flow.ID, err)
	}
	if err := s.saveCatalog(); err != nil {
		logger.Warn("graph: persist catalog: %v", err)
	}
	result.FlowID = flow.ID
	return result
}

func (s *Store) confirmed(rec TransitionRecord) bool {
	if rec.Status != core.StatusPassed {
		return false
	}
	if rec.Confirmed != nil && !*rec.Confirmed {
		return false
	}
	info, err := os.Stat(rec.Screenshot)
	return err == nil && !info.IsDir()
}

func (s *Store) resolveFlow(rec TransitionRecord) *Flow {
	key := rec.FlowKey
	if key == "" {
		key = "scenario:" + rec.ScenarioID
	}
	if id, ok := s.catalog.Flows[key]; ok {
		if flow := s.flows[id]; flow != nil {
			return flow
		}
	}
	flow := &Flow{
		ID:          fmt.Sprintf("flow_%04d", s.catalog.NextFlowID),
		FlowKey:     key,
		ScenarioID:  rec.ScenarioID,
		Description: rec.Description,
	}
	s.catalog.NextFlowID++
	s.catalog.Flows[key] = flow.ID
	s.flows[flow.ID] = flow
	return flow
}

func (s *Store) foldIntoFlow(flow *Flow, fromID, toID string, rec TransitionRecord) {
	for _, id := range []string{fromID, toID} {
		if id == "" {
			continue
		}
		flow.Screens = mergeUnique(flow.Screens, []string{id}, maxElements)
		// Extend the chain only when the screen differs from the tail.
		if len(flow.ScreenChain) == 0 || flow.ScreenChain[len(flow.ScreenChain)-1] != id {
			flow.ScreenChain = append(flow.ScreenChain, id)
		}
	}
	if fromID != "" && toID != "" {
		found := false
		for i := range flow.Transitions {
			t := &flow.Transitions[i]
			if t.FromScreenID == fromID && t.ToScreenID == toID && t.Via == rec.ActionHint {
				t.Count++
				found = true
				break
			}
		}
		if !found {
			flow.Transitions = append(flow.Transitions, FlowTransition{
				FromScreenID: fromID,
				ToScreenID:   toID,
				Via:          rec.ActionHint,
				Count:        1,
			})
		}
	}
	if rec.TestID != "" {
		flow.TestIDs = mergeUnique(flow.TestIDs, []string{rec.TestID}, maxElements)
	}
	if rec.Description != "" && flow.Description == "" {
		flow.Description = rec.Description
	}
	flow.LastSeenAt = nowUTC()
}

// FlowHints is the read-only projection consumed by the recommendation
// engine before drafting a flow.
type FlowHints struct {
	ScreenChain []string     `json:"screen_chain"`
	Screens     []ScreenHint `json:"screens"`
}

// ScreenHint previews one screen of a known flow.
type ScreenHint struct {
	Name     string   `json:"name"`
	Elements []string `json:"elements,omitempty"`
}

// CollectFlowHints returns the known screen chain and element inventories
// for a scenario's flow.
func (s *Store) CollectFlowHints(scenarioID string) (FlowHints, bool) {
	var flow *Flow
	for _, f := range s.flows {
		if f.ScenarioID == scenarioID {
			flow = f
			break
		}
	}
	if flow == nil {
		return FlowHints{}, false
	}
	hints := FlowHints{}
	for _, id := range flow.ScreenChain {
		screen := s.screens[id]
		if screen == nil {
			continue
		}
		hints.ScreenChain = append(hints.ScreenChain, screen.Name)
		hints.Screens = append(hints.Screens, ScreenHint{Name: screen.Name, Elements: screen.Elements})
	}
	return hints, len(hints.ScreenChain) > 0
}
