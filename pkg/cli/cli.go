// Package cli provides the command-line interface for qa-automator.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/config"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to workspace config.yaml",
		EnvVars: []string{"QA_AUTOMATOR_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "artifacts",
		Usage:   "Artifacts directory (logs, stores, screenshots)",
		EnvVars: []string{"QA_AUTOMATOR_ARTIFACTS"},
	},
	&cli.StringFlag{
		Name:    "app-id",
		Usage:   "Bundle/application id of the app under test",
		EnvVars: []string{"QA_AUTOMATOR_APP_ID"},
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"udid"},
		Usage:   "Device ID to run on",
		EnvVars: []string{"MAESTRO_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "maestro-bin",
		Usage:   "Path to the Maestro executable",
		EnvVars: []string{"MAESTRO_BIN"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"QA_AUTOMATOR_VERBOSE"},
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "qa-automator",
		Usage:   "Adaptive mobile UI test automation with navigation memory",
		Version: Version,
		Description: `qa-automator turns exported test cases into Maestro flows, runs them,
diagnoses failures, and remembers where in the app each case starts and
fails so retries begin from a better context.

Examples:
  qa-automator scenarios cases.json
  qa-automator plan --case TC-101 cases.json
  qa-automator synthesize --case TC-101 cases.json
  qa-automator run cases.json
  qa-automator diagnose artifacts/logs/TC-101-attempt-1.log
  qa-automator summary`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			planCommand,
			synthesizeCommand,
			diagnoseCommand,
			scenariosCommand,
			summaryCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the workspace configuration and applies flag
// overrides on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, err
	}

	if v := c.String("artifacts"); v != "" {
		cfg.ArtifactsDir = v
	}
	if v := c.String("app-id"); v != "" {
		cfg.AppID = v
	}
	if v := c.String("device"); v != "" {
		cfg.Device = v
	}
	if v := c.String("maestro-bin"); v != "" {
		cfg.MaestroBin = v
	}

	if err := os.MkdirAll(cfg.ArtifactsDir, 0o755); err != nil {
		return nil, err
	}
	logPath := filepath.Join(cfg.ArtifactsDir, "qa-automator.log")
	if err := logger.Init(logPath, c.Bool("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot open log file: %v\n", err)
	}
	return cfg, nil
}

// resolveCases loads test cases from the positional argument or the
// configured path.
func resolveCases(c *cli.Context, cfg *config.Config) ([]testcase.TestCase, string, error) {
	casesPath := c.Args().First()
	if casesPath == "" {
		casesPath = cfg.CasesPath
	}
	if casesPath == "" {
		return nil, "", fmt.Errorf("no test cases file: pass a path or set casesPath in config")
	}
	cases, err := testcase.LoadFile(casesPath)
	if err != nil {
		return nil, "", fmt.Errorf("load test cases: %w", err)
	}
	return cases, casesPath, nil
}

func loadTested(cfg *config.Config) []string {
	if cfg.TestedPath == "" {
		return nil
	}
	return testcase.LoadTested(cfg.TestedPath)
}
