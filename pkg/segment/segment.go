// Package segment is the secondary, higher-cardinality event log keyed by
// (segment type, segment key). It answers cross-cutting questions like
// "across all tests, what usually follows failure cause X" that the primary
// per-case memory cannot.
package segment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/scoring"
)

// Type discriminates the four segment scopes.
type Type string

const (
	TypeCase         Type = "case"
	TypeScenario     Type = "scenario"
	TypeStartContext Type = "start-context"
	TypeFailureCause Type = "failure-cause"
)

const (
	maxSegments         = 400
	maxEventsPerSegment = 50
)

// Event is one recorded plan or observation, fanned out to every segment it
// touches.
type Event struct {
	Time         string `json:"time"`
	Kind         string `json:"kind"` // plan | observation
	TestID       string `json:"test_id,omitempty"`
	ScenarioID   string `json:"scenario_id,omitempty"`
	StartContext string `json:"start_context,omitempty"`
	FailureCause string `json:"failure_cause,omitempty"`
	Status       string `json:"status,omitempty"`
	Attempt      int    `json:"attempt,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// Stats are the per-segment aggregates, maintained with the same scoring
// algorithm as the primary memory.
type Stats struct {
	StartScores   scoring.Map    `json:"start_score_map"`
	FailureCauses map[string]int `json:"failure_cause_count"`
	StatusCounts  map[string]int `json:"status_count"`
	AttemptMax    int            `json:"attempt_max,omitempty"`
}

// Segment is one (type, key) scope with its bounded event log.
type Segment struct {
	Type   Type    `json:"segment_type"`
	Key    string  `json:"segment_key"`
	Events []Event `json:"events"`
	Stats  Stats   `json:"stats"`
}

type catalogEntry struct {
	Type         Type   `json:"segment_type"`
	Key          string `json:"segment_key"`
	File         string `json:"file"`
	Events       int    `json:"events"`
	LastActivity string `json:"last_activity"`
}

// Store is the detail segment store rooted at <artifacts>/segments.
type Store struct {
	root    string
	catalog map[string]*catalogEntry // "<type>|<key>" -> entry
}

// NewStore loads the segment catalog; missing or corrupt files mean empty.
func NewStore(root string) *Store {
	s := &Store{
		root:    filepath.Join(root, "segments"),
		catalog: map[string]*catalogEntry{},
	}
	var entries []catalogEntry
	data, err := os.ReadFile(filepath.Join(s.root, "catalog.json")) //#nosec G304
	if err == nil && json.Unmarshal(data, &entries) == nil {
		for i := range entries {
			e := entries[i]
			s.catalog[catalogKey(e.Type, e.Key)] = &e
		}
	}
	return s
}

func catalogKey(t Type, key string) string {
	return string(t) + "|" + key
}

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

func sanitizeKey(key string) string {
	key = unsafeKeyChars.ReplaceAllString(strings.TrimSpace(key), "_")
	if len(key) > 80 {
		key = key[:80]
	}
	return key
}

// AppendEvent resolves or creates the (type, key) segment, appends the event
// and updates the segment's own score/failure/status maps.
func (s *Store) AppendEvent(t Type, key string, ev Event) error {
	key = sanitizeKey(key)
	if key == "" {
		return nil
	}
	seg := s.loadSegment(t, key)
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339)
	}
	seg.Events = append(seg.Events, ev)
	if len(seg.Events) > maxEventsPerSegment {
		seg.Events = seg.Events[len(seg.Events)-maxEventsPerSegment:]
	}

	if ev.StartContext != "" {
		weight := scoring.WeightPlan
		if ev.Kind == "observation" {
			weight = scoring.ObservationWeight(ev.Status == "passed")
		}
		seg.Stats.StartScores.Bump(ev.StartContext, weight)
	}
	if ev.FailureCause != "" {
		seg.Stats.FailureCauses[ev.FailureCause]++
		scoring.PruneCounts(seg.Stats.FailureCauses, scoring.MaxEntries, ev.FailureCause)
	}
	if ev.Status != "" {
		seg.Stats.StatusCounts[ev.Status]++
		scoring.PruneCounts(seg.Stats.StatusCounts, scoring.MaxEntries, ev.Status)
	}
	if ev.Attempt > seg.Stats.AttemptMax {
		seg.Stats.AttemptMax = ev.Attempt
	}

	if err := s.saveSegment(seg); err != nil {
		return err
	}
	entry := s.catalog[catalogKey(t, key)]
	if entry == nil {
		entry = &catalogEntry{Type: t, Key: key, File: segmentFile(t, key)}
		s.catalog[catalogKey(t, key)] = entry
	}
	entry.Events++
	entry.LastActivity = ev.Time
	s.evict()
	return s.saveCatalog()
}

// Record fans one event out into up to four segments: the case, the
// scenario, the start-context literal and the failure-cause literal.
func (s *Store) Record(ev Event) {
	targets := []struct {
		t   Type
		key string
	}{
		{TypeCase, ev.TestID},
		{TypeScenario, ev.ScenarioID},
		{TypeStartContext, ev.StartContext},
		{TypeFailureCause, ev.FailureCause},
	}
	for _, target := range targets {
		if target.key == "" {
			continue
		}
		if err := s.AppendEvent(target.t, target.key, ev); err != nil {
			logger.Warn("segment: append %s/%s: %v", target.t, target.key, err)
		}
	}
}

// Hints is the cross-cutting aggregate for one case/scenario pair.
type Hints struct {
	BestStart   string   `json:"best_start,omitempty"`
	TopFailures []string `json:"top_failures,omitempty"`
}

// AggregateHints merges the case- and scenario-scoped segments (summed, not
// decayed twice) and returns the argmax start label and ranked causes.
func (s *Store) AggregateHints(testID, scenarioID string) Hints {
	merged := scoring.Map{}
	causes := map[string]int{}
	for _, target := range []struct {
		t   Type
		key string
	}{
		{TypeCase, sanitizeKey(testID)},
		{TypeScenario, sanitizeKey(scenarioID)},
	} {
		if target.key == "" || s.catalog[catalogKey(target.t, target.key)] == nil {
			continue
		}
		seg := s.loadSegment(target.t, target.key)
		merged.Merge(seg.Stats.StartScores)
		for cause, n := range seg.Stats.FailureCauses {
			causes[cause] += n
		}
	}
	best, _ := merged.Top()
	return Hints{
		BestStart:   best,
		TopFailures: scoring.RankedCounts(causes, 3),
	}
}

// Count returns the number of cataloged segments.
func (s *Store) Count() int {
	return len(s.catalog)
}

func segmentFile(t Type, key string) string {
	return fmt.Sprintf("%s-%s.json", t, key)
}

func (s *Store) loadSegment(t Type, key string) *Segment {
	seg := &Segment{
		Type: t,
		Key:  key,
		Stats: Stats{
			StartScores:   scoring.Map{},
			FailureCauses: map[string]int{},
			StatusCounts:  map[string]int{},
		},
	}
	data, err := os.ReadFile(filepath.Join(s.root, segmentFile(t, key))) //#nosec G304
	if err != nil {
		return seg
	}
	var loaded Segment
	if json.Unmarshal(data, &loaded) != nil {
		return seg
	}
	if loaded.Stats.StartScores == nil {
		loaded.Stats.StartScores = scoring.Map{}
	}
	if loaded.Stats.FailureCauses == nil {
		loaded.Stats.FailureCauses = map[string]int{}
	}
	if loaded.Stats.StatusCounts == nil {
		loaded.Stats.StatusCounts = map[string]int{}
	}
	loaded.Type = t
	loaded.Key = key
	return &loaded
}

func (s *Store) saveSegment(seg *Segment) error {
	path := filepath.Join(s.root, segmentFile(seg.Type, seg.Key))
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(seg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) saveCatalog() error {
	entries := make([]catalogEntry, 0, len(s.catalog))
	for _, e := range s.catalog {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Type != entries[j].Type {
			return entries[i].Type < entries[j].Type
		}
		return entries[i].Key < entries[j].Key
	})
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, "catalog.json"), data, 0o644)
}

// evict prunes segments beyond the fixed count by least recent activity,
// deleting their backing files.
func (s *Store) evict() {
	if len(s.catalog) <= maxSegments {
		return
	}
	entries := make([]*catalogEntry, 0, len(s.catalog))
	for _, e := range s.catalog {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastActivity != entries[j].LastActivity {
			return entries[i].LastActivity < entries[j].LastActivity
		}
		return entries[i].Events < entries[j].Events
	})
	for _, e := range entries[:len(entries)-maxSegments] {
		delete(s.catalog, catalogKey(e.Type, e.Key))
		if err := os.Remove(filepath.Join(s.root, e.File)); err != nil && !os.IsNotExist(err) {
			logger.Warn("segment: evict %s: %v", e.File, err)
		}
	}
}
