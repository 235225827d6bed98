// Package engine drives the synthesize/execute/diagnose/record attempt loop
// for one test case at a time.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/config"
	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/diagnose"
	"github.com/nguyenopenclaw/qa-automator/pkg/driverx"
	"github.com/nguyenopenclaw/qa-automator/pkg/graph"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/memory"
	"github.com/nguyenopenclaw/qa-automator/pkg/scenario"
	"github.com/nguyenopenclaw/qa-automator/pkg/segment"
	"github.com/nguyenopenclaw/qa-automator/pkg/synth"
	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// FlowRunner abstracts flow execution so the loop can be tested without a
// device attached.
type FlowRunner interface {
	RunFlow(ctx context.Context, flowText string, opts driverx.RunOptions) core.Outcome
}

// Engine owns the stores and the per-case attempt loop. Single-threaded:
// one case, one attempt at a time.
type Engine struct {
	cfg      *config.Config
	runner   FlowRunner
	memory   *memory.Store
	graph    *graph.Store
	segments *segment.Store
	report   *Report
}

// New assembles an engine over the artifacts directory named in cfg.
func New(cfg *config.Config) *Engine {
	if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
		logger.Warn("cannot create artifacts dir %s: %v", cfg.ArtifactsDir, err)
	}

	graphStore := graph.NewStore(cfg.ArtifactsDir)
	segmentStore := segment.NewStore(cfg.ArtifactsDir)
	memoryStore := memory.NewStore(cfg.ArtifactsDir)
	memoryStore.AttachSegments(segmentStore)
	memoryStore.AttachFlowHints(flowHintAdapter{graph: graphStore})

	driver := &driverx.Driver{
		Bin:                  cfg.MaestroBin,
		Device:               cfg.Device,
		AppID:                cfg.AppID,
		AppPath:              cfg.AppPath,
		InstallTool:          cfg.InstallTool,
		SimulatorTarget:      cfg.SimulatorTarget,
		SkipDeeplink:         cfg.SkipDeeplink,
		ArtifactsDir:         cfg.ArtifactsDir,
		Timeout:              cfg.CommandTimeout(),
		InstallBeforeRun:     cfg.InstallBeforeRun,
		ReinstallPerScenario: cfg.ReinstallPerScenario,
		InstallOnce:          cfg.InstallOnce,
	}

	return &Engine{
		cfg:      cfg,
		runner:   driver,
		memory:   memoryStore,
		graph:    graphStore,
		segments: segmentStore,
		report:   NewReport(cfg.ArtifactsDir),
	}
}

// Memory exposes the recommendation store for read paths.
func (e *Engine) Memory() *memory.Store { return e.memory }

// Graph exposes the screen/flow graph store for read paths.
func (e *Engine) Graph() *graph.Store { return e.graph }

// Report exposes the attempt tracker.
func (e *Engine) Report() *Report { return e.report }

// SetRunner swaps the flow runner.
func (e *Engine) SetRunner(r FlowRunner) { e.runner = r }

// Suggest resolves a start-context recommendation for a case.
func (e *Engine) Suggest(tc testcase.TestCase, scenarioID string) memory.Suggestion {
	return e.memory.SuggestStart(memory.SuggestRequest{
		TestID:        tc.ID,
		ScenarioID:    scenarioID,
		Title:         tc.Title,
		Preconditions: tc.Preconditions,
		StepsText:     tc.StepsText(),
	})
}

// RunCase executes one case through the attempt loop: drafted, executed,
// then either passed or diagnosed and retried, up to the attempt ceiling.
// Ceiling breach marks the case problematic.
func (e *Engine) RunCase(ctx context.Context, tc testcase.TestCase, scenarioID string) core.Outcome {
	suggestion := e.Suggest(tc, scenarioID)
	if err := e.memory.RecordPlan(memory.PlanRecord{
		TestID:           tc.ID,
		ScenarioID:       scenarioID,
		RecommendedStart: suggestion.RecommendedStart,
		Confidence:       suggestion.Confidence,
		Notes:            strings.Join(suggestion.Rationale, "; "),
	}); err != nil {
		logger.Warn("record plan for %s: %v", tc.ID, err)
	}

	var outcome core.Outcome
	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		doc := synth.Synthesize(tc.Steps, synth.Options{AppID: e.cfg.AppID, ClearState: e.cfg.ClearState})
		if err := synth.EnsureAssertions(doc); err != nil {
			// Document-quality refusal: surfaced before any execution so it
			// never burns a device attempt.
			outcome = core.NewOutcome(tc.ID, core.StatusFailed, attempt)
			outcome.Failure = &core.FailureContext{
				Cause:          core.CauseMissingAssertions,
				Recommendation: "Add at least one concrete expected result so an assertVisible can be derived.",
			}
			e.report.RecordAttempt(tc.ID, attempt, outcome.StatusText, nil)
			e.recordOutcome(tc, scenarioID, outcome, core.NavigationContext{})
			return outcome
		}

		outcome = e.runner.RunFlow(ctx, doc.Render(), driverx.RunOptions{
			TestID:       tc.ID,
			Attempt:      attempt,
			ScenarioID:   scenarioID,
			IsOnboarding: tc.IsOnboarding,
			Screenshot:   true,
		})
		e.report.RecordAttempt(tc.ID, attempt, outcome.StatusText, outcome.Artifacts)

		nav := e.navigationFor(doc, tc.ID, attempt, outcome)
		outcome.Navigation = &nav
		e.recordOutcome(tc, scenarioID, outcome, nav)

		if outcome.Status.IsSuccess() {
			logger.Info("case %s passed on attempt %d", tc.ID, attempt)
			return outcome
		}
		if outcome.Failure != nil {
			logger.Info("case %s attempt %d failed: %s", tc.ID, attempt, outcome.Failure.Cause)
		}
	}

	e.report.MarkProblematic(tc.ID, "")
	final := core.NewOutcome(tc.ID, core.StatusProblematic, e.cfg.MaxAttempts)
	final.Failure = outcome.Failure
	final.Navigation = outcome.Navigation
	final.Artifacts = outcome.Artifacts
	return final
}

// navigationFor reconstructs the stop position for an attempt, pulling the
// per-step debug log when the driver left one behind.
func (e *Engine) navigationFor(doc *synth.Document, testID string, attempt int, outcome core.Outcome) core.NavigationContext {
	failedIdx, lastOKIdx := -1, -1
	var uiTexts []string

	if debugLog := e.debugLogPath(testID, attempt); debugLog != "" {
		data, err := os.ReadFile(debugLog)
		if err == nil {
			if pos, posErr := diagnose.ExtractStepPosition(data); posErr == nil {
				failedIdx = pos.FailedStepIndex
				lastOKIdx = pos.LastSuccessfulStepIndex
				uiTexts = pos.UITextCandidates
			}
		}
	}
	if failedIdx < 0 && outcome.Status == core.StatusPassed {
		// A pass stopped at the end of the document.
		lastOKIdx = len(doc.Commands) - 1
	}
	return diagnose.BuildNavigationContext(doc, failedIdx, lastOKIdx, uiTexts)
}

func (e *Engine) debugLogPath(testID string, attempt int) string {
	path := filepath.Join(e.cfg.ArtifactsDir, "debug", testID, fmt.Sprintf("attempt-%d", attempt), "commands.json")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// recordOutcome folds an attempt into the stores. The memory write and the
// graph write are two independent calls: a graph rejection (unconfirmed
// evidence) never rolls back the observation.
func (e *Engine) recordOutcome(tc testcase.TestCase, scenarioID string, outcome core.Outcome, nav core.NavigationContext) {
	failureCause := ""
	if outcome.Failure != nil {
		failureCause = outcome.Failure.Cause
	}
	screenshot := lastScreenshot(outcome.Artifacts)

	if err := e.memory.RecordObservation(memory.ObservationRecord{
		TestID:       tc.ID,
		ScenarioID:   scenarioID,
		Title:        tc.Title,
		Status:       outcome.Status,
		Attempt:      outcome.Attempt,
		LocationHint: nav.CurrentScreen,
		FailureCause: failureCause,
		Navigation: &memory.NavigationUpdate{
			CurrentScreen: nav.CurrentScreen,
			NextScreen:    nav.NextScreen,
			ActionHint:    nav.ActionHint,
			Elements:      nav.Elements,
			Screenshot:    screenshot,
		},
	}); err != nil {
		logger.Warn("record observation for %s: %v", tc.ID, err)
	}

	result := e.graph.RecordScreenTransition(graph.TransitionRecord{
		ScenarioID:    scenarioID,
		TestID:        tc.ID,
		CurrentScreen: nav.CurrentScreen,
		NextScreen:    nav.NextScreen,
		ActionHint:    nav.ActionHint,
		Elements:      nav.Elements,
		Description:   tc.Title,
		Status:        outcome.Status,
		Screenshot:    screenshot,
		Attempt:       outcome.Attempt,
	})
	if result.Skipped != "" {
		logger.Debug("graph update for %s skipped: %s", tc.ID, result.Skipped)
	}
}

// ScenarioResult summarizes one scenario run.
type ScenarioResult struct {
	ScenarioID  string         `json:"scenario_id"`
	Passed      int            `json:"passed"`
	Failed      int            `json:"failed"`
	Problematic int            `json:"problematic"`
	Outcomes    []core.Outcome `json:"outcomes"`
}

// RunScenario executes every still-pending case of a scenario in order.
func (e *Engine) RunScenario(ctx context.Context, sc scenario.Scenario, all []testcase.TestCase, tested []string) ScenarioResult {
	result := ScenarioResult{ScenarioID: sc.ID}
	for _, tc := range scenario.PendingCases(sc, tested, all) {
		outcome := e.RunCase(ctx, tc, sc.ID)
		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Status {
		case core.StatusPassed:
			result.Passed++
		case core.StatusProblematic:
			result.Problematic++
		default:
			result.Failed++
		}
		if ctx.Err() != nil {
			break
		}
	}
	return result
}

// WriteSummary writes a machine-readable scenario summary next to the report.
func (e *Engine) WriteSummary(result ScenarioResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(e.cfg.ArtifactsDir, "scenario_summary.json")
	return os.WriteFile(path, data, 0o644)
}

func lastScreenshot(artifacts []string) string {
	for i := len(artifacts) - 1; i >= 0; i-- {
		if strings.HasSuffix(artifacts[i], ".png") {
			return artifacts[i]
		}
	}
	return ""
}
