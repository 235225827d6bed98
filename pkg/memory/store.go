// Package memory maintains per-case and per-scenario start-context
// knowledge: decayed score maps, failure-cause frequencies and bounded
// observation/plan logs, consulted before drafting every flow.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/scoring"
	"github.com/nguyenopenclaw/qa-automator/pkg/segment"
)

const (
	maxObservations = 20
	maxPlans        = 10
	maxEntries      = 200 // Global cap across case and scenario entries
	maxCheckpoints  = 5
	checkpointEvery = 25
	causesSurfaced  = 3
)

// Entry holds what is known about one test case or one scenario.
type Entry struct {
	Title          string         `json:"title,omitempty"`
	PreferredStart string         `json:"preferred_start,omitempty"`
	StartScores    scoring.Map    `json:"start_score_map"`
	FailureCauses  map[string]int `json:"failure_cause_count"`
	StatusCounts   map[string]int `json:"status_count"`
	Observations   []Observation  `json:"observations,omitempty"`
	Plans          []Plan         `json:"plans,omitempty"`
	LastSeenAt     string         `json:"last_seen_at"`
	Activity       int            `json:"activity"`
}

// Observation is one recorded attempt outcome.
type Observation struct {
	Time         string            `json:"time"`
	Status       string            `json:"status"`
	Attempt      int               `json:"attempt"`
	LocationHint string            `json:"location_hint,omitempty"`
	FailureCause string            `json:"failure_cause,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Navigation   *NavigationUpdate `json:"navigation,omitempty"`
}

// NavigationUpdate is the structured navigation payload an observation may
// carry. It replaces free-text notes parsing: the graph side-update is a
// separate call the caller makes after the memory write succeeds.
type NavigationUpdate struct {
	CurrentScreen string   `json:"current_screen,omitempty"`
	NextScreen    string   `json:"next_screen,omitempty"`
	ActionHint    string   `json:"action_hint,omitempty"`
	Elements      []string `json:"elements,omitempty"`
	Screenshot    string   `json:"screenshot,omitempty"`
	Confirmed     *bool    `json:"confirmed,omitempty"`
}

// Plan is one recorded start-context hypothesis.
type Plan struct {
	Time             string `json:"time"`
	RecommendedStart string `json:"recommended_start,omitempty"`
	Confidence       string `json:"confidence,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type state struct {
	Version       int               `json:"version"`
	UpdatedAt     string            `json:"updated_at"`
	Cases         map[string]*Entry `json:"cases"`
	ScenarioHints map[string]*Entry `json:"scenario_hints"`
}

// FlowHintSource previews the known screen chain for a scenario. Implemented
// by the graph store, injected to keep the stores independent.
type FlowHintSource interface {
	ScreenChain(scenarioID string) ([]string, bool)
}

// Store is the recommendation memory backed by a single JSON knowledge file
// with periodic timestamped checkpoints.
type Store struct {
	path          string
	checkpointDir string
	state         state
	segments      *segment.Store
	flowHints     FlowHintSource
	saves         int
}

// NewStore loads the knowledge file under root, tolerating a missing or
// corrupt file as empty state.
func NewStore(root string) *Store {
	s := &Store{
		path:          filepath.Join(root, "app_flow_knowledge.json"),
		checkpointDir: filepath.Join(root, "memory_checkpoints"),
		state: state{
			Version:       1,
			Cases:         map[string]*Entry{},
			ScenarioHints: map[string]*Entry{},
		},
	}
	data, err := os.ReadFile(s.path) //#nosec G304 -- store-internal path
	if err == nil {
		var loaded state
		if json.Unmarshal(data, &loaded) == nil && loaded.Cases != nil {
			if loaded.ScenarioHints == nil {
				loaded.ScenarioHints = map[string]*Entry{}
			}
			normalizeEntries(loaded.Cases)
			normalizeEntries(loaded.ScenarioHints)
			s.state = loaded
		}
	}
	return s
}

// normalizeEntries backfills map fields a sparse or hand-edited knowledge
// file may omit, so record paths never hit a nil map.
func normalizeEntries(entries map[string]*Entry) {
	for key, e := range entries {
		if e == nil {
			delete(entries, key)
			continue
		}
		if e.StartScores == nil {
			e.StartScores = scoring.Map{}
		}
		if e.FailureCauses == nil {
			e.FailureCauses = map[string]int{}
		}
		if e.StatusCounts == nil {
			e.StatusCounts = map[string]int{}
		}
	}
}

// AttachSegments wires the detail segment store for event fan-out and
// cross-cutting hints.
func (s *Store) AttachSegments(store *segment.Store) {
	s.segments = store
}

// AttachFlowHints wires the screen-chain preview source.
func (s *Store) AttachFlowHints(source FlowHintSource) {
	s.flowHints = source
}

func newEntry() *Entry {
	return &Entry{
		StartScores:   scoring.Map{},
		FailureCauses: map[string]int{},
		StatusCounts:  map[string]int{},
	}
}

func (s *Store) caseEntry(testID string, create bool) *Entry {
	if testID == "" {
		return nil
	}
	if e := s.state.Cases[testID]; e != nil {
		return e
	}
	if !create {
		return nil
	}
	e := newEntry()
	s.state.Cases[testID] = e
	return e
}

func (s *Store) scenarioEntry(scenarioID string, create bool) *Entry {
	if scenarioID == "" {
		return nil
	}
	if e := s.state.ScenarioHints[scenarioID]; e != nil {
		return e
	}
	if !create {
		return nil
	}
	e := newEntry()
	s.state.ScenarioHints[scenarioID] = e
	return e
}

func touch(e *Entry) {
	e.LastSeenAt = time.Now().UTC().Format(time.RFC3339)
	e.Activity++
}

func (s *Store) save() error {
	s.evict()
	s.state.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory state: %w", err)
	}
	s.saves++
	if s.saves%checkpointEvery == 0 {
		s.checkpoint(data)
	}
	return nil
}

func (s *Store) checkpoint(data []byte) {
	if err := os.MkdirAll(s.checkpointDir, 0o755); err != nil {
		return
	}
	name := fmt.Sprintf("knowledge-%s.json", time.Now().UTC().Format("20060102T150405Z"))
	if err := os.WriteFile(filepath.Join(s.checkpointDir, name), data, 0o644); err != nil {
		logger.Warn("memory: write checkpoint: %v", err)
		return
	}
	entries, err := os.ReadDir(s.checkpointDir)
	if err != nil {
		return
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for len(names) > maxCheckpoints {
		os.Remove(filepath.Join(s.checkpointDir, names[0]))
		names = names[1:]
	}
}

// evict drops entries beyond the global cap, ranked by last activity then
// activity volume.
func (s *Store) evict() {
	total := len(s.state.Cases) + len(s.state.ScenarioHints)
	if total <= maxEntries {
		return
	}
	type ranked struct {
		scenario bool
		key      string
		entry    *Entry
	}
	var all []ranked
	for k, e := range s.state.Cases {
		all = append(all, ranked{false, k, e})
	}
	for k, e := range s.state.ScenarioHints {
		all = append(all, ranked{true, k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].entry.LastSeenAt != all[j].entry.LastSeenAt {
			return all[i].entry.LastSeenAt < all[j].entry.LastSeenAt
		}
		return all[i].entry.Activity < all[j].entry.Activity
	})
	for _, r := range all[:total-maxEntries] {
		if r.scenario {
			delete(s.state.ScenarioHints, r.key)
		} else {
			delete(s.state.Cases, r.key)
		}
	}
}

// Summary is the compact store projection for operators.
type Summary struct {
	UpdatedAt      string        `json:"updated_at"`
	KnownCases     int           `json:"known_cases"`
	KnownScenarios int           `json:"known_scenarios"`
	TopCaseHints   []CaseSummary `json:"top_case_hints,omitempty"`
	KnowledgePath  string        `json:"knowledge_path"`
}

// CaseSummary previews one case's knowledge.
type CaseSummary struct {
	TestID         string `json:"test_id"`
	PreferredStart string `json:"preferred_start,omitempty"`
	Observations   int    `json:"observations"`
}

// Summarize returns the store projection, case hints ordered by id.
func (s *Store) Summarize() Summary {
	ids := make([]string, 0, len(s.state.Cases))
	for id := range s.state.Cases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > 10 {
		ids = ids[:10]
	}
	summary := Summary{
		UpdatedAt:      s.state.UpdatedAt,
		KnownCases:     len(s.state.Cases),
		KnownScenarios: len(s.state.ScenarioHints),
		KnowledgePath:  s.path,
	}
	for _, id := range ids {
		e := s.state.Cases[id]
		summary.TopCaseHints = append(summary.TopCaseHints, CaseSummary{
			TestID:         id,
			PreferredStart: e.PreferredStart,
			Observations:   len(e.Observations),
		})
	}
	return summary
}
