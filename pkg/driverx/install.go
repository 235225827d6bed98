package driverx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/diagnose"
)

var boundarySafeRe = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

// EnsureInstalled makes sure the app is on the device before a run. With
// per-scenario reinstall enabled, crossing a scenario boundary triggers a
// clean uninstall+install so onboarding state resets; otherwise the app is
// installed once (or per test). A nil return means ready to run.
func (d *Driver) EnsureInstalled(ctx context.Context, testID, scenarioID string) *core.Outcome {
	if !d.InstallBeforeRun {
		return nil
	}

	if d.ReinstallPerScenario {
		boundaryID := strings.TrimSpace(scenarioID)
		if boundaryID == "" {
			boundaryID = "test:" + testID
		}
		if boundaryID == d.lastScenarioID {
			return nil
		}
		if failure := d.reinstallForBoundary(ctx, testID, boundaryID); failure != nil {
			return failure
		}
		d.lastScenarioID = boundaryID
		d.installDone = true
		return nil
	}

	if d.InstallOnce && d.installDone {
		return nil
	}

	logName := testID + "-app-install.log"
	if d.InstallOnce {
		logName = "app-install.log"
	}
	logFile := filepath.Join(d.logDir(), logName)

	name, args := d.installCmd()
	stdout, stderr, err := d.execute(ctx, name, args)
	output := joinOutput(stdout, stderr)
	writeLog(logFile, output)

	if failure := d.installFailure(testID, logFile, output, err); failure != nil {
		return failure
	}
	d.installDone = true
	return nil
}

// reinstallForBoundary uninstalls then installs the app. The uninstall leg
// is best effort; only the install result decides success.
func (d *Driver) reinstallForBoundary(ctx context.Context, testID, boundaryID string) *core.Outcome {
	safeBoundary := boundarySafeRe.ReplaceAllString(boundaryID, "_")
	logFile := filepath.Join(d.logDir(), safeBoundary+"-app-reinstall.log")

	uninstallName, uninstallArgs := d.uninstallCmd()
	uStdout, uStderr, uErr := d.execute(ctx, uninstallName, uninstallArgs)
	uninstallOutput := joinOutput(uStdout, uStderr)
	if uErr != nil {
		uninstallOutput = fmt.Sprintf("uninstall step failed: %v\n%s", uErr, uninstallOutput)
	}

	installName, installArgs := d.installCmd()
	iStdout, iStderr, iErr := d.execute(ctx, installName, installArgs)

	body := fmt.Sprintf("scenario_boundary=%s\n%s\n%s", boundaryID, uninstallOutput, joinOutput(iStdout, iStderr))
	writeLog(logFile, body)

	if failure := d.installFailure(testID, logFile, body, iErr); failure != nil {
		if isExitError(iErr) {
			// Non-zero install exit on a boundary gets the scenario-scoped hint.
			failure.Failure.Recommendation = "Verify app_path and connected simulator/device, then retry scenario."
		}
		return failure
	}
	return nil
}

// installFailure converts an install invocation result into a structured
// environment failure. nil means the install succeeded.
func (d *Driver) installFailure(testID, logFile, output string, err error) *core.Outcome {
	var cause, recommendation string
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errExecNotFound):
		cause = core.CauseInstallerNotFound
		recommendation = "Install required CLI (xcrun/maestro) or adjust the app install tool setting."
		output = fmt.Sprintf("install backend executable not found for tool '%s'\n%s", d.installTool(), output)
		writeLog(logFile, output)
	case errors.Is(err, errExecTimeout):
		cause = core.CauseInstallTimeout
		recommendation = "Ensure simulator/device is booted and app artifact is accessible, then retry."
		output = fmt.Sprintf("app install timed out after %s\n%s", d.timeout(), output)
		writeLog(logFile, output)
	default:
		cause = core.CauseInstallFailed
		recommendation = fmt.Sprintf("Verify installer backend '%s', app_path, and connected simulator/device.", d.installTool())
	}

	outcome := core.NewOutcome(testID, core.StatusFailed, 1)
	outcome.Artifacts = []string{logFile}
	outcome.Failure = &core.FailureContext{
		Cause:          cause,
		Recommendation: recommendation,
		LogExcerpt:     diagnose.TrimExcerpt(output),
		LogPath:        logFile,
	}
	return &outcome
}

func (d *Driver) installTool() string {
	tool := strings.ToLower(strings.TrimSpace(d.InstallTool))
	if tool == "xcrun" {
		return "xcrun"
	}
	return "maestro"
}

func (d *Driver) simulatorTarget() string {
	target := strings.TrimSpace(d.SimulatorTarget)
	if target == "" {
		return "booted"
	}
	return target
}

func (d *Driver) installCmd() (string, []string) {
	if d.installTool() == "xcrun" {
		return "xcrun", []string{"simctl", "install", d.simulatorTarget(), d.AppPath}
	}
	args := d.baseArgs()
	args = append(args, "install", d.AppPath)
	return d.bin(), args
}

func (d *Driver) uninstallCmd() (string, []string) {
	if d.installTool() == "xcrun" {
		return "xcrun", []string{"simctl", "uninstall", d.simulatorTarget(), d.AppID}
	}
	args := d.baseArgs()
	args = append(args, "uninstall", d.AppID)
	return d.bin(), args
}

func joinOutput(stdout, stderr string) string {
	if stdout == "" && stderr == "" {
		return ""
	}
	return strings.TrimSpace(stdout + "\n" + stderr)
}
