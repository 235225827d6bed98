package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/synth"
)

var synthesizeCommand = &cli.Command{
	Name:      "synthesize",
	Usage:     "Render the flow document for a test case without running it",
	ArgsUsage: "[cases.json]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "case",
			Usage: "Test case id to synthesize",
		},
		&cli.StringFlag{
			Name:  "normalize",
			Usage: "Normalize an existing flow file instead of synthesizing",
		},
		&cli.BoolFlag{
			Name:  "check",
			Usage: "Only verify the document passes the assertion gate",
		},
	},
	Action: synthesizeAction,
}

func synthesizeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	opts := synth.Options{AppID: cfg.AppID, ClearState: cfg.ClearState}

	if flowPath := c.String("normalize"); flowPath != "" {
		data, err := os.ReadFile(flowPath)
		if err != nil {
			return err
		}
		normalized, err := synth.Normalize(string(data), opts)
		if err != nil {
			return err
		}
		fmt.Print(normalized)
		return nil
	}

	caseID := c.String("case")
	if caseID == "" {
		return fmt.Errorf("either --case or --normalize is required")
	}
	cases, casesPath, err := resolveCases(c, cfg)
	if err != nil {
		return err
	}
	for _, tc := range cases {
		if tc.ID != caseID {
			continue
		}
		doc := synth.Synthesize(tc.Steps, opts)
		if err := synth.EnsureAssertions(doc); err != nil {
			return fmt.Errorf("document for %s rejected: %w", caseID, err)
		}
		if c.Bool("check") {
			fmt.Printf("%s: ok (%d commands, %d assertions)\n", caseID, len(doc.Commands), len(doc.Assertions()))
			return nil
		}
		fmt.Print(doc.Render())
		return nil
	}
	return fmt.Errorf("case %s not found in %s", caseID, casesPath)
}
