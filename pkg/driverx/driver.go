package driverx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/diagnose"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
)

// DefaultTimeout bounds every driver subprocess invocation.
const DefaultTimeout = 120 * time.Second

// Driver shells out to the Maestro CLI for flow execution, app lifecycle and
// screenshot capture. All invocations block with a per-command timeout; a
// timeout is a classified, retryable failure rather than a crash.
type Driver struct {
	Bin             string
	Device          string
	AppID           string
	AppPath         string
	InstallTool     string // "maestro" or "xcrun"
	SimulatorTarget string
	SkipDeeplink    string
	ArtifactsDir    string
	FlowsDir        string
	Timeout         time.Duration

	InstallBeforeRun     bool
	ReinstallPerScenario bool
	InstallOnce          bool

	lastScenarioID string
	installDone    bool
}

// RunOptions qualify a single flow execution.
type RunOptions struct {
	TestID       string
	Attempt      int
	ScenarioID   string
	IsOnboarding bool
	Screenshot   bool
}

func (d *Driver) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return DefaultTimeout
}

func (d *Driver) bin() string {
	if d.Bin != "" {
		return d.Bin
	}
	return "maestro"
}

// RunFlow writes the flow document to disk and executes it. Environment
// failures (missing binary, install failure) come back as failed outcomes
// with a fixed remediation so they never consume an attempt ambiguously.
func (d *Driver) RunFlow(ctx context.Context, flowText string, opts RunOptions) core.Outcome {
	testID := opts.TestID
	if testID == "" {
		testID = "anon-" + uuid.NewString()[:8]
	}

	if failure := d.EnsureInstalled(ctx, testID, opts.ScenarioID); failure != nil {
		return *failure
	}
	if !opts.IsOnboarding {
		d.skipOnboarding(ctx, testID)
	}

	flowPath, err := d.writeFlow(testID, flowText)
	if err != nil {
		outcome := core.NewOutcome(testID, core.StatusFailed, opts.Attempt)
		outcome.Failure = &core.FailureContext{
			Cause:          core.CauseUnknownFailure,
			Recommendation: "Ensure the artifacts directory is writable.",
			LogExcerpt:     err.Error(),
		}
		return outcome
	}

	logFile := filepath.Join(d.logDir(), fmt.Sprintf("%s-attempt-%d.log", testID, opts.Attempt))

	args := d.baseArgs()
	args = append(args, "test", flowPath)
	stdout, stderr, runErr := d.execute(ctx, d.bin(), args)
	writeLog(logFile, stdout+"\n"+stderr)

	if runErr != nil {
		outcome := core.NewOutcome(testID, core.StatusFailed, opts.Attempt)
		outcome.Artifacts = []string{logFile}
		switch {
		case errors.Is(runErr, errExecTimeout):
			msg := fmt.Sprintf("maestro command timed out after %s", d.timeout())
			writeLog(logFile, msg+"\n"+stdout+"\n"+stderr)
			failure := diagnose.Classify(stdout, firstNonEmpty(stderr, msg), logFile)
			outcome.Failure = &failure
		case errors.Is(runErr, errExecNotFound):
			msg := "maestro binary not found: " + d.bin()
			writeLog(logFile, msg)
			failure := diagnose.Classify("", msg, logFile)
			outcome.Failure = &failure
		case isExitError(runErr):
			if shot := d.Screenshot(ctx, testID, opts.Attempt); shot != "" {
				outcome.Artifacts = append(outcome.Artifacts, shot)
			}
			failure := diagnose.Classify(stdout, stderr, logFile)
			outcome.Failure = &failure
		default:
			failure := diagnose.Classify(stdout, firstNonEmpty(stderr, runErr.Error()), logFile)
			outcome.Failure = &failure
		}
		return outcome
	}

	outcome := core.NewOutcome(testID, core.StatusPassed, opts.Attempt)
	outcome.Artifacts = []string{logFile}
	if opts.Screenshot {
		if shot := d.Screenshot(ctx, testID, opts.Attempt); shot != "" {
			outcome.Artifacts = append(outcome.Artifacts, shot)
		}
	}
	return outcome
}

// Screenshot captures the current device screen. Best effort: any failure
// returns an empty path.
func (d *Driver) Screenshot(ctx context.Context, testID string, attempt int) string {
	shotsDir := filepath.Join(d.ArtifactsDir, "screenshots", testID)
	if err := os.MkdirAll(shotsDir, 0o755); err != nil {
		return ""
	}
	shotPath := filepath.Join(shotsDir, fmt.Sprintf("attempt-%d.png", attempt))

	args := d.baseArgs()
	args = append(args, "screenshot", shotPath)
	if _, _, err := d.execute(ctx, d.bin(), args); err != nil {
		return ""
	}
	return shotPath
}

// skipOnboarding fires the configured deeplink so regular cases start past
// the first-launch funnel. Failures are logged and ignored.
func (d *Driver) skipOnboarding(ctx context.Context, testID string) {
	if d.SkipDeeplink == "" {
		return
	}
	args := d.baseArgs()
	args = append(args, "open", "--url", d.SkipDeeplink)
	stdout, stderr, err := d.execute(ctx, d.bin(), args)
	if err != nil {
		body := strings.TrimSpace(stdout + "\n" + stderr)
		if body == "" {
			body = "failed to trigger deeplink"
		}
		writeLog(filepath.Join(d.logDir(), testID+"-skip-onboarding.log"), body)
		logger.Warn("skip-onboarding deeplink failed for %s: %v", testID, err)
	}
}

func (d *Driver) writeFlow(testID, flowText string) (string, error) {
	flowsDir := d.FlowsDir
	if flowsDir == "" {
		flowsDir = filepath.Join(d.ArtifactsDir, "flows")
	}
	if err := os.MkdirAll(flowsDir, 0o755); err != nil {
		return "", err
	}
	flowPath := filepath.Join(flowsDir, testID+".yaml")
	if err := os.WriteFile(flowPath, []byte(flowText), 0o644); err != nil {
		return "", err
	}
	return flowPath, nil
}

func (d *Driver) baseArgs() []string {
	var args []string
	if d.Device != "" {
		args = append(args, "--device", d.Device)
	}
	return args
}

func (d *Driver) logDir() string {
	dir := filepath.Join(d.ArtifactsDir, "logs")
	os.MkdirAll(dir, 0o755)
	return dir
}

var (
	errExecTimeout  = errors.New("driver command timed out")
	errExecNotFound = errors.New("driver executable not found")
)

// execute runs one subprocess to completion under the command timeout,
// returning captured stdout/stderr and a normalized error.
func (d *Driver) execute(ctx context.Context, name string, args []string) (string, string, error) {
	runCtx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return stdout.String(), stderr.String(), errExecTimeout
	}
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) {
			return stdout.String(), stderr.String(), errExecNotFound
		}
		return stdout.String(), stderr.String(), err
	}
	return stdout.String(), stderr.String(), nil
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}

func writeLog(path, body string) {
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		logger.Warn("cannot write driver log %s: %v", path, err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
