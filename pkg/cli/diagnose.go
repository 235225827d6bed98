package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/diagnose"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/synth"
)

var diagnoseCommand = &cli.Command{
	Name:      "diagnose",
	Usage:     "Classify a failed run from its log file",
	ArgsUsage: "<log-file>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "debug-log",
			Usage: "Per-step debug log (commands.json) for step-position extraction",
		},
		&cli.StringFlag{
			Name:  "flow",
			Usage: "Flow file to reconstruct navigation context against",
		},
	},
	Action: diagnoseAction,
}

func diagnoseAction(c *cli.Context) error {
	_, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	logPath := c.Args().First()
	if logPath == "" {
		return fmt.Errorf("log file argument is required")
	}
	data, err := os.ReadFile(logPath)
	if err != nil {
		return err
	}

	out := map[string]interface{}{
		"failure_context": diagnose.Classify(string(data), "", logPath),
	}

	failedIdx, lastOKIdx := -1, -1
	var uiTexts []string
	if debugPath := c.String("debug-log"); debugPath != "" {
		debugData, err := os.ReadFile(debugPath)
		if err != nil {
			return err
		}
		pos, err := diagnose.ExtractStepPosition(debugData)
		if err != nil {
			return fmt.Errorf("parse debug log: %w", err)
		}
		out["step_position"] = pos
		failedIdx, lastOKIdx = pos.FailedStepIndex, pos.LastSuccessfulStepIndex
		uiTexts = pos.UITextCandidates
	}

	if flowPath := c.String("flow"); flowPath != "" {
		flowData, err := os.ReadFile(flowPath)
		if err != nil {
			return err
		}
		doc, err := synth.Parse(string(flowData))
		if err != nil {
			return fmt.Errorf("parse flow: %w", err)
		}
		out["navigation_context"] = diagnose.BuildNavigationContext(doc, failedIdx, lastOKIdx, uiTexts)
	}

	rendered, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))
	return nil
}
