package synth

import (
	"regexp"
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// Options control document synthesis.
type Options struct {
	AppID      string
	ClearState bool
}

// Multi-language action keyword sets, evaluated in a fixed priority order.
var (
	tapTokens    = []string{"тап", "tap", "нажм", "клик", "click", "press"}
	inputTokens  = []string{"введ", "input", "enter", "заполн", "type"}
	scrollTokens = []string{"пролист", "scroll", "swipe", "свайп"}
	navTokens    = []string{"открыт", "экран", "переход", "open", "navigate", "displayed"}
)

// Common verbs that carry an implicit target.
var commonTargets = []struct {
	token  string
	target string
}{
	{"продолж", "Continue"},
	{"continue", "Continue"},
	{"назад", "Back"},
	{"back", "Back"},
}

const maxInlineExpected = 120

// Synthesize converts test-case steps into a flow document prefixed with the
// fixed app-launch command. Known command names pass through; prose steps go
// through ordered keyword heuristics; short concrete expected results are
// promoted into assertions while longer prose degrades to evidence capture.
func Synthesize(steps []testcase.Step, opts Options) *Document {
	doc := &Document{AppID: opts.AppID}
	launch := DefaultLaunchOptions(opts.ClearState)
	doc.Commands = append(doc.Commands, Command{Type: CmdLaunchApp, Launch: &launch})

	for _, step := range steps {
		doc.Commands = append(doc.Commands, stepCommands(step)...)
	}
	return doc
}

func stepCommands(step testcase.Step) []Command {
	action := strings.TrimSpace(step.Action)
	payload := strings.TrimSpace(step.Payload)
	expected := strings.TrimSpace(step.ExpectedResult)
	var cmds []Command

	if IsKnownCommand(action) {
		cmds = append(cmds, passthroughCommand(CommandType(action), payload)...)
	} else {
		cmds = append(cmds, heuristicCommands(action, payload, expected)...)
	}

	// Promote a compact expected result into an assertion when practical.
	if line := firstNonEmptyLine(expected); line != "" {
		if len(line) <= maxInlineExpected && !IsPlaceholderTarget(line) {
			cmds = append(cmds, Command{Type: CmdAssertVisible, Target: line})
		} else {
			cmds = append(cmds, evidenceCommand("expected: "+truncate(line, 200)))
		}
	}

	if len(cmds) == 0 {
		cmds = append(cmds, evidenceCommand("unmapped step"))
	}
	return cmds
}

func passthroughCommand(cmd CommandType, payload string) []Command {
	switch cmd {
	case CmdLaunchApp:
		// The synthesized launch prefix already covers app start.
		return nil
	case CmdWaitForAnimation:
		return []Command{{Type: cmd}}
	default:
		if payload == "" {
			return []Command{evidenceCommand("empty-known-command")}
		}
		if cmd.IsAssertion() && IsPlaceholderTarget(payload) {
			return []Command{evidenceCommand("placeholder assertion: " + payload)}
		}
		return []Command{{Type: cmd, Target: payload}}
	}
}

func heuristicCommands(action, payload, expected string) []Command {
	lower := strings.ToLower(action)
	candidate := extractQuoted(action)
	if candidate == "" {
		candidate = extractParenthesized(action)
	}

	switch {
	case containsAny(lower, tapTokens):
		target := candidate
		if target == "" {
			target = inferCommonTarget(lower)
		}
		if target == "" {
			return []Command{evidenceCommand("tap action not mapped: " + action)}
		}
		return []Command{{Type: CmdTapOn, Target: target}}

	case containsAny(lower, inputTokens):
		text := payload
		if text == "" {
			text = candidate
		}
		if text == "" {
			return []Command{evidenceCommand("input action not mapped: " + action)}
		}
		return []Command{{Type: CmdInputText, Target: text}}

	case containsAny(lower, scrollTokens):
		target := candidate
		if target == "" {
			target = firstNonEmptyLine(expected)
		}
		if target == "" || IsPlaceholderTarget(target) {
			return []Command{{Type: CmdWaitForAnimation}}
		}
		return []Command{{Type: CmdScrollUntil, Target: target}}

	case containsAny(lower, navTokens):
		// State-like prose usually names the expected screen; assert it.
		if candidate != "" && !IsPlaceholderTarget(candidate) {
			return []Command{{Type: CmdAssertVisible, Target: candidate}}
		}
		if line := firstNonEmptyLine(action); line != "" {
			return []Command{evidenceCommand(line)}
		}
		return nil

	default:
		if action != "" {
			return []Command{evidenceCommand(action)}
		}
		return nil
	}
}

// EnsureAssertions refuses documents with no true assertion command so a
// pass can never be screenshot-only.
func EnsureAssertions(doc *Document) error {
	if !doc.HasAssertions() {
		return core.ErrMissingAssertions
	}
	return nil
}

var (
	quotedRe        = regexp.MustCompile(`["'«](.+?)["'»]`)
	parenthesizedRe = regexp.MustCompile(`\(([^)]+)\)`)
)

func extractQuoted(source string) string {
	match := quotedRe.FindStringSubmatch(source)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func extractParenthesized(source string) string {
	match := parenthesizedRe.FindStringSubmatch(source)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

func inferCommonTarget(lower string) string {
	for _, ct := range commonTargets {
		if strings.Contains(lower, ct.token) {
			return ct.target
		}
	}
	return ""
}

func containsAny(haystack string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(haystack, token) {
			return true
		}
	}
	return false
}

func firstNonEmptyLine(source string) string {
	for _, line := range strings.Split(source, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
