package diagnose

import (
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/synth"
)

// BuildNavigationContext reconstructs where inside the app flow an attempt
// stopped, from the command document plus the observed step position. The
// document's assertion targets stand in for screen names: the nearest
// assertion at or before the cursor is the current screen, its predecessor
// the previous one, and the nearest assertion after it the next goal.
func BuildNavigationContext(doc *synth.Document, failedIdx, lastOKIdx int, uiTexts []string) core.NavigationContext {
	ctx := core.NavigationContext{Elements: uiTexts}
	if doc == nil || len(doc.Commands) == 0 {
		return ctx
	}

	type anchor struct {
		index  int
		screen string
	}
	var anchors []anchor
	chainSeen := make(map[string]bool)
	for i, cmd := range doc.Commands {
		if !cmd.Type.IsAssertion() || synth.IsPlaceholderTarget(cmd.Target) {
			continue
		}
		anchors = append(anchors, anchor{index: i, screen: cmd.Target})
		low := strings.ToLower(cmd.Target)
		if !chainSeen[low] {
			chainSeen[low] = true
			ctx.ScreenChain = append(ctx.ScreenChain, cmd.Target)
		}
	}

	cursor := len(doc.Commands) - 1
	if failedIdx >= 0 {
		cursor = failedIdx
	} else if lastOKIdx >= 0 {
		cursor = lastOKIdx
	}
	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(doc.Commands) {
		cursor = len(doc.Commands) - 1
	}

	current := -1
	for i, a := range anchors {
		if a.index <= cursor {
			current = i
		}
	}
	if current >= 0 {
		ctx.CurrentScreen = anchors[current].screen
		if current > 0 {
			ctx.FromScreen = anchors[current-1].screen
		}
	}
	for _, a := range anchors {
		if a.index > cursor {
			ctx.NextScreen = a.screen
			break
		}
	}

	for i := cursor; i >= 0; i-- {
		cmd := doc.Commands[i]
		if cmd.Type.IsInteraction() && cmd.Target != "" {
			ctx.ActionHint = string(cmd.Type) + ":" + cmd.Target
			break
		}
	}
	return ctx
}
