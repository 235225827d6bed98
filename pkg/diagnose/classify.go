package diagnose

import (
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
)

const excerptMaxChars = 4000

// causeRule matches combined driver output against a failure cause. Rules
// are evaluated in order; the first match wins. A rule matches when all of
// allOf appear and, if anyOf is non-empty, at least one of those appears.
type causeRule struct {
	cause          string
	allOf          []string
	anyOf          []string
	recommendation string
}

var causeRules = []causeRule{
	{
		cause: core.CauseTimeout,
		anyOf: []string{"timed out", "timeout"},
		recommendation: "Add waitForAnimationToEnd/extendedWaitUntil before next assertion or tap, " +
			"then retry.",
	},
	{
		cause: core.CauseElementNotFound,
		allOf: []string{"element", "not found"},
		recommendation: "Update selector text/id to match current screen and use scrollUntilVisible " +
			"before interacting. If testcase text is in another language, trust screenshot " +
			"labels (often English UI) as source of truth for selector names.",
	},
	{
		cause: core.CauseAssertionFailed,
		allOf: []string{"assert", "failed"},
		recommendation: "Verify expected state transition; add sync step before assertion and adjust " +
			"assertVisible/assertNotVisible.",
	},
	{
		cause:          core.CauseInvalidYAML,
		allOf:          []string{"yaml"},
		anyOf:          []string{"parse", "invalid"},
		recommendation: "Rewrite step into valid Maestro command syntax; do not use raw prose as YAML keys.",
	},
	{
		cause:          core.CauseBinaryNotFound,
		allOf:          []string{"binary not found"},
		recommendation: "Install Maestro CLI or set MAESTRO_BIN to a valid executable path.",
	},
}

const unknownRecommendation = "Inspect failed command in log excerpt, add synchronization, and prefer stable selectors."

// Classify maps raw driver output to a failure cause with a fixed
// remediation and a tail excerpt of the combined log.
func Classify(stdout, stderr, logPath string) core.FailureContext {
	var parts []string
	for _, part := range []string{stdout, stderr} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	combined := strings.TrimSpace(strings.Join(parts, "\n"))
	lower := strings.ToLower(combined)

	ctx := core.FailureContext{
		Cause:          core.CauseUnknownFailure,
		Recommendation: unknownRecommendation,
		LogExcerpt:     TrimExcerpt(combined),
		LogPath:        logPath,
	}
	for _, rule := range causeRules {
		if rule.matches(lower) {
			ctx.Cause = rule.cause
			ctx.Recommendation = rule.recommendation
			break
		}
	}
	return ctx
}

func (r causeRule) matches(lower string) bool {
	for _, token := range r.allOf {
		if !strings.Contains(lower, token) {
			return false
		}
	}
	if len(r.anyOf) == 0 {
		return true
	}
	for _, token := range r.anyOf {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// TrimExcerpt keeps the tail of the log where the failing command usually is.
func TrimExcerpt(content string) string {
	if len(content) <= excerptMaxChars {
		return content
	}
	return content[len(content)-excerptMaxChars:]
}
