package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenopenclaw/qa-automator/pkg/config"
	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/driverx"
	"github.com/nguyenopenclaw/qa-automator/pkg/scenario"
	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// scriptedRunner replays canned outcomes in order and records every call.
type scriptedRunner struct {
	outcomes []core.Outcome
	calls    []driverx.RunOptions
	flows    []string
}

func (r *scriptedRunner) RunFlow(_ context.Context, flowText string, opts driverx.RunOptions) core.Outcome {
	r.calls = append(r.calls, opts)
	r.flows = append(r.flows, flowText)
	idx := len(r.calls) - 1
	if idx >= len(r.outcomes) {
		idx = len(r.outcomes) - 1
	}
	out := r.outcomes[idx]
	out.TestID = opts.TestID
	out.Attempt = opts.Attempt
	return out
}

func newTestEngine(t *testing.T, runner FlowRunner) *Engine {
	t.Helper()
	cfg := &config.Config{
		AppID:        "com.example.app",
		ArtifactsDir: t.TempDir(),
		MaxAttempts:  3,
		ClearState:   true,
	}
	cfg.MaestroBin = "maestro"
	e := New(cfg)
	e.SetRunner(runner)
	return e
}

func sampleCase() testcase.TestCase {
	return testcase.TestCase{
		ID:       "TC-100",
		Title:    "Open profile",
		Priority: "high",
		Steps: []testcase.Step{
			{Action: "Tap 'Profile'", ExpectedResult: "Profile screen is displayed"},
		},
	}
}

func failedOutcome(cause string) core.Outcome {
	out := core.NewOutcome("", core.StatusFailed, 0)
	out.Failure = &core.FailureContext{Cause: cause, Recommendation: "retry"}
	return out
}

func TestRunCasePassesOnSecondAttempt(t *testing.T) {
	runner := &scriptedRunner{outcomes: []core.Outcome{
		failedOutcome(core.CauseElementNotFound),
		core.NewOutcome("", core.StatusPassed, 0),
	}}
	e := newTestEngine(t, runner)

	outcome := e.RunCase(context.Background(), sampleCase(), "scenario_0001")

	assert.Equal(t, core.StatusPassed, outcome.Status)
	assert.Equal(t, 2, outcome.Attempt)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, 1, runner.calls[0].Attempt)
	assert.Equal(t, 2, runner.calls[1].Attempt)
	assert.Contains(t, runner.flows[0], "appId: com.example.app")
	assert.Contains(t, runner.flows[0], "assertVisible")

	entry := e.Report().Entry("TC-100")
	require.NotNil(t, entry)
	assert.Equal(t, "passed", entry.Status)
	require.Len(t, entry.History, 2)
	assert.Equal(t, "failed", entry.History[0].Status)
	assert.Equal(t, "passed", entry.History[1].Status)
}

func TestRunCaseExhaustsAttemptsAndMarksProblematic(t *testing.T) {
	runner := &scriptedRunner{outcomes: []core.Outcome{
		failedOutcome(core.CauseTimeout),
	}}
	e := newTestEngine(t, runner)

	outcome := e.RunCase(context.Background(), sampleCase(), "scenario_0001")

	assert.Equal(t, core.StatusProblematic, outcome.Status)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, core.CauseTimeout, outcome.Failure.Cause)
	assert.Len(t, runner.calls, 3)

	entry := e.Report().Entry("TC-100")
	require.NotNil(t, entry)
	assert.Equal(t, "problematic", entry.Status)
	assert.Equal(t, "Max attempts exhausted", entry.Reason)
	assert.Len(t, entry.History, 3)
}

func TestRunCaseRefusesAssertionlessDocument(t *testing.T) {
	runner := &scriptedRunner{outcomes: []core.Outcome{
		core.NewOutcome("", core.StatusPassed, 0),
	}}
	e := newTestEngine(t, runner)

	tc := sampleCase()
	tc.Steps = []testcase.Step{{Action: "Tap 'Profile'"}}
	outcome := e.RunCase(context.Background(), tc, "scenario_0001")

	assert.Equal(t, core.StatusFailed, outcome.Status)
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, core.CauseMissingAssertions, outcome.Failure.Cause)
	assert.Empty(t, runner.calls, "assertionless document must never reach the device")

	entry := e.Report().Entry("TC-100")
	require.NotNil(t, entry)
	assert.Equal(t, "failed", entry.Status)
}

func TestRunCaseRecordsMemoryAndSkipsGraphWithoutEvidence(t *testing.T) {
	runner := &scriptedRunner{outcomes: []core.Outcome{
		failedOutcome(core.CauseElementNotFound),
	}}
	e := newTestEngine(t, runner)

	e.RunCase(context.Background(), sampleCase(), "scenario_0001")

	summary := e.Memory().Summarize()
	assert.Equal(t, 1, summary.KnownCases)
	// Failed attempts never reach the graph.
	assert.Equal(t, 0, e.Graph().ScreenCount())
}

func TestRunCaseReadsStepDebugLog(t *testing.T) {
	cfg := &config.Config{
		AppID:        "com.example.app",
		ArtifactsDir: t.TempDir(),
		MaxAttempts:  1,
	}
	e := New(cfg)
	runner := &scriptedRunner{outcomes: []core.Outcome{
		failedOutcome(core.CauseElementNotFound),
	}}
	e.SetRunner(runner)

	debugDir := filepath.Join(cfg.ArtifactsDir, "debug", "TC-100", "attempt-1")
	require.NoError(t, os.MkdirAll(debugDir, 0o755))
	log := `[
		{"command": {"launchApp": {}}, "metadata": {"status": "COMPLETED"}},
		{"command": {"tapOn": "Profile"}, "metadata": {"status": "FAILED"}}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(debugDir, "commands.json"), []byte(log), 0o644))

	outcome := e.RunCase(context.Background(), sampleCase(), "scenario_0001")

	require.NotNil(t, outcome.Navigation)
	assert.Equal(t, "tapOn:Profile", outcome.Navigation.ActionHint)
}

func TestRunScenarioCountsOutcomes(t *testing.T) {
	runner := &scriptedRunner{outcomes: []core.Outcome{
		core.NewOutcome("", core.StatusPassed, 0),
	}}
	e := newTestEngine(t, runner)

	cases := []testcase.TestCase{
		{ID: "TC-1", Title: "A", Steps: []testcase.Step{{Action: "Tap 'A'", ExpectedResult: "A shown"}}},
		{ID: "TC-2", Title: "B", Steps: []testcase.Step{{Action: "Tap 'B'", ExpectedResult: "B shown"}}},
		{ID: "TC-3", Title: "C", Steps: []testcase.Step{{Action: "Tap 'C'", ExpectedResult: "C shown"}}},
	}
	sc := scenario.Scenario{ID: "scenario_0001", CaseIDs: []string{"TC-1", "TC-2", "TC-3"}}

	result := e.RunScenario(context.Background(), sc, cases, []string{"TC-2"})

	assert.Equal(t, 2, result.Passed)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, "TC-1", result.Outcomes[0].TestID)
	assert.Equal(t, "TC-3", result.Outcomes[1].TestID)
}

func TestRunScenarioStopsOnCanceledContext(t *testing.T) {
	runner := &scriptedRunner{outcomes: []core.Outcome{
		core.NewOutcome("", core.StatusPassed, 0),
	}}
	e := newTestEngine(t, runner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cases := []testcase.TestCase{
		{ID: "TC-1", Title: "A", Steps: []testcase.Step{{Action: "Tap 'A'", ExpectedResult: "A shown"}}},
		{ID: "TC-2", Title: "B", Steps: []testcase.Step{{Action: "Tap 'B'", ExpectedResult: "B shown"}}},
	}
	sc := scenario.Scenario{ID: "scenario_0001", CaseIDs: []string{"TC-1", "TC-2"}}

	result := e.RunScenario(ctx, sc, cases, nil)

	assert.Len(t, result.Outcomes, 1, "cancellation stops after the in-flight case")
}

func TestWriteSummary(t *testing.T) {
	e := newTestEngine(t, &scriptedRunner{outcomes: []core.Outcome{core.NewOutcome("", core.StatusPassed, 0)}})

	require.NoError(t, e.WriteSummary(ScenarioResult{ScenarioID: "scenario_0001", Passed: 2}))

	data, err := os.ReadFile(filepath.Join(e.cfg.ArtifactsDir, "scenario_summary.json"))
	require.NoError(t, err)
	var got ScenarioResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "scenario_0001", got.ScenarioID)
	assert.Equal(t, 2, got.Passed)
}

func TestReportSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	r := NewReport(dir)
	r.RecordAttempt("TC-1", 1, "failed", []string{"a.log"})
	r.RecordAttempt("TC-1", 2, "passed", []string{"b.png"})

	reloaded := NewReport(dir)
	entry := reloaded.Entry("TC-1")
	require.NotNil(t, entry)
	assert.Equal(t, "passed", entry.Status)
	assert.Equal(t, 2, entry.Attempts)
	assert.Equal(t, []string{"a.log", "b.png"}, entry.Artifacts)
	require.Len(t, entry.History, 2)
}

func TestReportToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "automation_report.json"), []byte("{broken"), 0o644))

	r := NewReport(dir)
	assert.Empty(t, r.Entries())
	assert.NotNil(t, r.RecordAttempt("TC-9", 1, "failed", nil))
}
