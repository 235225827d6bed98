package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/scenario"
)

var scenariosCommand = &cli.Command{
	Name:      "scenarios",
	Usage:     "List the grouped scenarios and their pending counts",
	ArgsUsage: "[cases.json]",
	Action:    scenariosAction,
}

func scenariosAction(c *cli.Context) error {
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

	testedSet := make(map[string]bool, len(tested))
	for _, id := range tested {
		testedSet[id] = true
	}
	pending := make(map[string]bool, len(cases))
	for _, tc := range cases {
		if !testedSet[tc.ID] {
			pending[tc.ID] = true
		}
	}

	for _, sc := range scenarios {
		marker := " "
		if sc.IsOnboarding {
			marker = "O"
		}
		fmt.Printf("%s %-16s %-8s %2d cases, %2d pending  %s\n",
			marker, sc.ID, sc.Priority, sc.CasesCount, sc.PendingCount(pending), sc.Title)
	}
	return nil
}
