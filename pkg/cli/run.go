package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/engine"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/scenario"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run the next pending scenario (or a specific one)",
	ArgsUsage: "[cases.json]",
	Description: `Groups exported test cases into scenarios, picks the next one with
pending cases, and runs each case through the attempt loop. Results are
folded into the navigation memory, the screen graph and the attempt report.

Examples:
  qa-automator run cases.json
  qa-automator run --scenario scenario_0003 cases.json
  qa-automator run --case TC-101 cases.json`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "Run this scenario id instead of the next pending one",
		},
		&cli.StringFlag{
			Name:  "case",
			Usage: "Run a single case id",
		},
	},
	Action: runAction,
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	cases, casesPath, err := resolveCases(c, cfg)
	if err != nil {
		return err
	}
	tested := loadTested(cfg)

	cache := scenario.NewCache(casesPath, cfg.TestedPath, cfg.CustomScenarioPath,
		cfg.MaxCasesPerScenario, cfg.TargetRootSuite, cfg.ArtifactsDir)
	scenarios, err := cache.LoadOrRebuild(cases, tested)
	if err != nil {
		return fmt.Errorf("build scenarios: %w", err)
	}
	custom, err := cache.LoadCustom()
	if err != nil {
		return err
	}
	cases = scenario.InjectCustomCases(cases, custom)

	eng := engine.New(cfg)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if caseID := c.String("case"); caseID != "" {
		for _, tc := range cases {
			if tc.ID == caseID {
				outcome := eng.RunCase(ctx, tc, c.String("scenario"))
				fmt.Printf("%s: %s (attempt %d)\n", outcome.TestID, outcome.StatusText, outcome.Attempt)
				if outcome.Failure != nil {
					fmt.Printf("  cause: %s\n  hint: %s\n", outcome.Failure.Cause, outcome.Failure.Recommendation)
				}
				return nil
			}
		}
		return fmt.Errorf("case %s not found in %s", caseID, casesPath)
	}

	var target scenario.Scenario
	var ok bool
	if id := c.String("scenario"); id != "" {
		target, ok = scenario.ByID(scenarios, id)
		if !ok {
			return fmt.Errorf("scenario %s not found", id)
		}
	} else {
		target, ok = scenario.NextPending(scenarios, tested, cases)
		if !ok {
			fmt.Println("No pending scenarios.")
			return nil
		}
	}
	cache.WriteCurrent(&target)

	logger.Info("running scenario %s (%d cases)", target.ID, target.CasesCount)
	result := eng.RunScenario(ctx, target, cases, tested)
	if err := eng.WriteSummary(result); err != nil {
		logger.Warn("cannot write scenario summary: %v", err)
	}

	fmt.Printf("Scenario %s: %d passed, %d failed, %d problematic\n",
		result.ScenarioID, result.Passed, result.Failed, result.Problematic)
	return ctx.Err()
}
