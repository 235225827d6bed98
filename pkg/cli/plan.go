package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/engine"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
)

var planCommand = &cli.Command{
	Name:      "plan",
	Usage:     "Suggest a start context for a test case",
	ArgsUsage: "[cases.json]",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "case",
			Usage:    "Test case id to plan for",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "scenario",
			Usage: "Scenario id the case belongs to",
		},
	},
	Action: planAction,
}

func planAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	cases, casesPath, err := resolveCases(c, cfg)
	if err != nil {
		return err
	}

	caseID := c.String("case")
	eng := engine.New(cfg)
	for _, tc := range cases {
		if tc.ID != caseID {
			continue
		}
		suggestion := eng.Suggest(tc, c.String("scenario"))
		out, err := json.MarshalIndent(suggestion, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}
	return fmt.Errorf("case %s not found in %s", caseID, casesPath)
}
