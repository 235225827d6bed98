package diagnose

import (
	"strings"
	"testing"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
)

func TestClassifyCauses(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		stderr string
		cause  string
	}{
		{"timeout", "command timed out after 120s", "", core.CauseTimeout},
		{"element", "Element not found: Text matching 'Continue'", "", core.CauseElementNotFound},
		{"assertion", "", "Assertion is false: assertVisible failed", core.CauseAssertionFailed},
		{"yaml", "", "Invalid YAML: could not parse flow", core.CauseInvalidYAML},
		{"binary", "", "maestro binary not found: /usr/local/bin/maestro", core.CauseBinaryNotFound},
		{"unknown", "something exploded", "", core.CauseUnknownFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := Classify(tt.stdout, tt.stderr, "run.log")
			if ctx.Cause != tt.cause {
				t.Errorf("expected cause %s, got %s", tt.cause, ctx.Cause)
			}
			if ctx.Recommendation == "" {
				t.Error("every classification carries a remediation")
			}
			if ctx.LogPath != "run.log" {
				t.Errorf("log path lost: %q", ctx.LogPath)
			}
		})
	}
}

func TestClassifyRuleOrder(t *testing.T) {
	// A timed-out wait for a missing element classifies as timeout, the
	// earlier rule.
	ctx := Classify("Element not found after timeout", "", "")
	if ctx.Cause != core.CauseTimeout {
		t.Errorf("expected timeout to win over element_not_found, got %s", ctx.Cause)
	}
}

func TestTrimExcerptKeepsTail(t *testing.T) {
	head := strings.Repeat("a", excerptMaxChars)
	content := head + "TAIL"
	got := TrimExcerpt(content)
	if len(got) != excerptMaxChars {
		t.Fatalf("expected %d chars, got %d", excerptMaxChars, len(got))
	}
	if !strings.HasSuffix(got, "TAIL") {
		t.Error("excerpt must keep the end of the log")
	}
	if TrimExcerpt("short") != "short" {
		t.Error("short content must pass through unchanged")
	}
}
