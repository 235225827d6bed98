package cli

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/nguyenopenclaw/qa-automator/pkg/engine"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
)

var summaryCommand = &cli.Command{
	Name:  "summary",
	Usage: "Print the navigation memory and attempt report summary",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "report",
			Usage: "Include per-test attempt history",
		},
	},
	Action: summaryAction,
}

func summaryAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	eng := engine.New(cfg)
	out := map[string]interface{}{
		"memory": eng.Memory().Summarize(),
	}
	if c.Bool("report") {
		out["tests"] = eng.Report().Entries()
	}

	rendered, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(rendered))
	return nil
}
