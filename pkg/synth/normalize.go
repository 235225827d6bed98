package synth

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
)

// Parse reads a rendered flow document back into its command form. The
// header before the first --- separator carries the app id; commands follow
// as a YAML sequence.
func Parse(text string) (*Document, error) {
	header, body := splitDocument(text)

	doc := &Document{}
	if strings.TrimSpace(header) != "" {
		var meta struct {
			AppID string `yaml:"appId"`
		}
		if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
			return nil, core.ErrInvalidDocument.WithCause(err)
		}
		doc.AppID = meta.AppID
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(body), &root); err != nil {
		return nil, core.ErrInvalidDocument.WithCause(err)
	}
	if len(root.Content) == 0 {
		return doc, nil
	}
	seq := root.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, core.ErrInvalidDocument.WithMessage("flow body is not a command sequence")
	}

	for _, item := range seq.Content {
		cmd, err := parseCommandNode(item)
		if err != nil {
			return nil, err
		}
		doc.Commands = append(doc.Commands, cmd)
	}
	return doc, nil
}

func parseCommandNode(node *yaml.Node) (Command, error) {
	switch node.Kind {
	case yaml.ScalarNode:
		// Bare commands such as waitForAnimation.
		name := strings.TrimSpace(node.Value)
		if !IsKnownCommand(name) {
			return Command{}, core.ErrInvalidDocument.WithMessage(fmt.Sprintf("unknown command %q", name))
		}
		return Command{Type: CommandType(name)}, nil

	case yaml.MappingNode:
		if len(node.Content) < 2 {
			return Command{}, core.ErrInvalidDocument.WithMessage("empty command mapping")
		}
		name := node.Content[0].Value
		value := node.Content[1]
		if !IsKnownCommand(name) {
			return Command{}, core.ErrInvalidDocument.WithMessage(fmt.Sprintf("unknown command %q", name))
		}
		cmd := Command{Type: CommandType(name)}
		if cmd.Type == CmdLaunchApp {
			launch, err := parseLaunchNode(value)
			if err != nil {
				return Command{}, err
			}
			cmd.Launch = launch
			return cmd, nil
		}
		if value.Kind == yaml.ScalarNode {
			cmd.Target = value.Value
			return cmd, nil
		}
		// Structured command arguments keep only the primary target.
		var fields map[string]string
		if err := value.Decode(&fields); err == nil {
			for _, key := range []string{"id", "text", "element"} {
				if v, ok := fields[key]; ok {
					cmd.Target = v
					break
				}
			}
		}
		return cmd, nil

	default:
		return Command{}, core.ErrInvalidDocument.WithMessage("unsupported command node")
	}
}

func parseLaunchNode(node *yaml.Node) (*LaunchOptions, error) {
	launch := &LaunchOptions{}
	if node.Kind == yaml.ScalarNode {
		return launch, nil
	}
	var raw struct {
		ClearState    bool                   `yaml:"clearState"`
		ClearKeychain bool                   `yaml:"clearKeychain"`
		StopApp       bool                   `yaml:"stopApp"`
		Permissions   map[string]interface{} `yaml:"permissions"`
	}
	if err := node.Decode(&raw); err != nil {
		return nil, core.ErrInvalidDocument.WithCause(err)
	}
	launch.ClearState = raw.ClearState
	launch.ClearKeychain = raw.ClearKeychain
	launch.StopApp = raw.StopApp
	if v, ok := raw.Permissions["all"]; ok {
		if s, ok := v.(string); ok && s == "deny" {
			launch.DenyAll = true
		}
	}
	return launch, nil
}

// Normalize rewrites raw flow text so it carries the expected header and the
// standard launch options. Every launchApp keeps its position in the command
// sequence with its options replaced by the standard block; a flow without
// one gets it inserted at the head. All other commands survive as written,
// in their original order.
func Normalize(text string, opts Options) (string, error) {
	doc, err := Parse(text)
	if err != nil {
		return "", err
	}
	if doc.AppID == "" {
		doc.AppID = opts.AppID
	}

	replaced := false
	for i := range doc.Commands {
		if doc.Commands[i].Type != CmdLaunchApp {
			continue
		}
		launch := DefaultLaunchOptions(opts.ClearState)
		doc.Commands[i].Launch = &launch
		replaced = true
	}
	if !replaced {
		launch := DefaultLaunchOptions(opts.ClearState)
		doc.Commands = append([]Command{{Type: CmdLaunchApp, Launch: &launch}}, doc.Commands...)
	}
	return doc.Render(), nil
}

func splitDocument(text string) (header, body string) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n")
		}
	}
	return "", text
}
