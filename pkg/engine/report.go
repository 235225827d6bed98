package engine

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
)

// AttemptRecord is one line of a test's attempt history.
type AttemptRecord struct {
	Attempt int    `json:"attempt"`
	Status  string `json:"status"`
}

// ReportEntry tracks the cumulative automation state of one test case.
type ReportEntry struct {
	ID        string          `json:"id"`
	Attempts  int             `json:"attempts"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Artifacts []string        `json:"artifacts"`
	History   []AttemptRecord `json:"history,omitempty"`
}

type reportState struct {
	Tests []*ReportEntry `json:"tests"`
}

// Report persists per-test attempt state to automation_report.json so a
// restarted run picks up where the previous one stopped.
type Report struct {
	path  string
	state reportState
}

// NewReport loads the report from the artifacts directory, tolerating a
// missing or corrupt file.
func NewReport(artifactsDir string) *Report {
	r := &Report{path: filepath.Join(artifactsDir, "automation_report.json")}
	data, err := os.ReadFile(r.path)
	if err == nil {
		if jsonErr := json.Unmarshal(data, &r.state); jsonErr != nil {
			logger.Warn("discarding corrupt automation report %s: %v", r.path, jsonErr)
			r.state = reportState{}
		}
	}
	return r
}

// RecordAttempt appends one attempt to a test's history and updates its
// rolling status.
func (r *Report) RecordAttempt(testID string, attempt int, status string, artifacts []string) *ReportEntry {
	entry := r.getOrCreate(testID)
	entry.Attempts = attempt
	entry.History = append(entry.History, AttemptRecord{Attempt: attempt, Status: status})
	entry.Artifacts = append(entry.Artifacts, artifacts...)
	entry.Status = status
	r.write()
	return entry
}

// MarkProblematic flags a test whose attempt ceiling was exhausted.
func (r *Report) MarkProblematic(testID, reason string) *ReportEntry {
	if reason == "" {
		reason = "Max attempts exhausted"
	}
	entry := r.getOrCreate(testID)
	entry.Status = "problematic"
	entry.Reason = reason
	r.write()
	return entry
}

// Entry returns the tracked state for a test, or nil when unknown.
func (r *Report) Entry(testID string) *ReportEntry {
	for _, test := range r.state.Tests {
		if test.ID == testID {
			return test
		}
	}
	return nil
}

// Entries returns all tracked tests.
func (r *Report) Entries() []*ReportEntry {
	return r.state.Tests
}

func (r *Report) getOrCreate(testID string) *ReportEntry {
	if entry := r.Entry(testID); entry != nil {
		return entry
	}
	entry := &ReportEntry{ID: testID, Status: "pending", Artifacts: []string{}}
	r.state.Tests = append(r.state.Tests, entry)
	return entry
}

func (r *Report) write() {
	data, err := json.MarshalIndent(r.state, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		logger.Warn("cannot write automation report %s: %v", r.path, err)
	}
}
