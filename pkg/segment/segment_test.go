package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenopenclaw/qa-automator/pkg/scoring"
)

func TestRecordFansOutToAllScopes(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	store.Record(Event{
		Kind:         "observation",
		TestID:       "TC-10",
		ScenarioID:   "scenario_0001",
		StartContext: "Dashboard",
		FailureCause: "element_not_found",
		Status:       "failed",
		Attempt:      2,
	})

	assert.Equal(t, 4, store.Count())
	for _, name := range []string{
		"case-TC-10.json",
		"scenario-scenario_0001.json",
		"start-context-Dashboard.json",
		"failure-cause-element_not_found.json",
		"catalog.json",
	} {
		_, err := os.Stat(filepath.Join(root, "segments", name))
		assert.NoError(t, err, name)
	}
}

func TestRecordSkipsEmptyScopes(t *testing.T) {
	store := NewStore(t.TempDir())

	store.Record(Event{Kind: "plan", TestID: "TC-11", StartContext: "Login"})

	assert.Equal(t, 2, store.Count())
}

func TestAppendEventMaintainsStats(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.AppendEvent(TypeCase, "TC-20", Event{
		Kind:         "plan",
		StartContext: "Login",
	}))
	require.NoError(t, store.AppendEvent(TypeCase, "TC-20", Event{
		Kind:         "observation",
		StartContext: "Dashboard",
		Status:       "passed",
		Attempt:      3,
	}))
	require.NoError(t, store.AppendEvent(TypeCase, "TC-20", Event{
		Kind:         "observation",
		StartContext: "Dashboard",
		FailureCause: "timeout",
		Status:       "failed",
		Attempt:      1,
	}))

	seg := store.loadSegment(TypeCase, "TC-20")
	require.Len(t, seg.Events, 3)

	// A pass outweighs both the plan and the later failed retry.
	best, _ := seg.Stats.StartScores.Top()
	assert.Equal(t, "Dashboard", best)
	assert.Equal(t, map[string]int{"timeout": 1}, seg.Stats.FailureCauses)
	assert.Equal(t, map[string]int{"passed": 1, "failed": 1}, seg.Stats.StatusCounts)
	assert.Equal(t, 3, seg.Stats.AttemptMax)
}

func TestEventLogIsBounded(t *testing.T) {
	store := NewStore(t.TempDir())

	for i := 0; i < maxEventsPerSegment+5; i++ {
		require.NoError(t, store.AppendEvent(TypeCase, "TC-30", Event{
			Kind:  "observation",
			Notes: fmt.Sprintf("event-%d", i),
		}))
	}

	seg := store.loadSegment(TypeCase, "TC-30")
	require.Len(t, seg.Events, maxEventsPerSegment)
	assert.Equal(t, "event-5", seg.Events[0].Notes)
	assert.Equal(t, fmt.Sprintf("event-%d", maxEventsPerSegment+4), seg.Events[len(seg.Events)-1].Notes)
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Login Screen", "Login_Screen"},
		{"  padded  ", "padded"},
		{"a/b\\c:d", "a_b_c_d"},
		{"ok_key-1.v2", "ok_key-1.v2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeKey(tt.in), tt.in)
	}

	assert.Len(t, sanitizeKey(fmt.Sprintf("%0200d", 1)), 80)
}

func TestAppendEventIgnoresUnusableKey(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.AppendEvent(TypeCase, "   ", Event{Kind: "plan"}))

	assert.Equal(t, 0, store.Count())
}

func TestCatalogSurvivesReload(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)
	store.Record(Event{
		Kind:         "observation",
		TestID:       "TC-40",
		ScenarioID:   "scenario_0002",
		StartContext: "Orders",
		Status:       "passed",
	})

	reloaded := NewStore(root)
	assert.Equal(t, 3, reloaded.Count())

	hints := reloaded.AggregateHints("TC-40", "scenario_0002")
	assert.Equal(t, "Orders", hints.BestStart)
}

func TestAggregateHintsMergesCaseAndScenario(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.AppendEvent(TypeCase, "TC-50", Event{
		Kind:         "observation",
		StartContext: "Login",
		FailureCause: "timeout",
		Status:       "failed",
	}))
	require.NoError(t, store.AppendEvent(TypeScenario, "scenario_0003", Event{
		Kind:         "observation",
		StartContext: "Dashboard",
		FailureCause: "element_not_found",
		Status:       "passed",
	}))
	require.NoError(t, store.AppendEvent(TypeScenario, "scenario_0003", Event{
		Kind:         "observation",
		FailureCause: "element_not_found",
		Status:       "failed",
	}))

	hints := store.AggregateHints("TC-50", "scenario_0003")
	assert.Equal(t, "Dashboard", hints.BestStart)
	assert.Equal(t, []string{"element_not_found", "timeout"}, hints.TopFailures)
}

func TestAggregateHintsUnknownScopes(t *testing.T) {
	store := NewStore(t.TempDir())

	hints := store.AggregateHints("TC-none", "scenario_none")
	assert.Empty(t, hints.BestStart)
	assert.Empty(t, hints.TopFailures)
}

func TestEvictionDropsLeastRecentSegment(t *testing.T) {
	store := NewStore(t.TempDir())

	for i := 0; i <= maxSegments; i++ {
		require.NoError(t, store.AppendEvent(TypeFailureCause, fmt.Sprintf("cause-%04d", i), Event{
			Kind: "observation",
			Time: fmt.Sprintf("2026-01-01T00:%02d:%02dZ", i/60, i%60),
		}))
	}

	assert.Equal(t, maxSegments, store.Count())
	_, err := os.Stat(filepath.Join(store.root, segmentFile(TypeFailureCause, "cause-0000")))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(store.root, segmentFile(TypeFailureCause, fmt.Sprintf("cause-%04d", maxSegments))))
	assert.NoError(t, err)
}

func TestSegmentStatsMapsAreBounded(t *testing.T) {
	store := NewStore(t.TempDir())

	for i := 0; i < scoring.MaxEntries+4; i++ {
		require.NoError(t, store.AppendEvent(TypeCase, "TC-60", Event{
			Kind:         "observation",
			Status:       fmt.Sprintf("status-%02d", i),
			FailureCause: fmt.Sprintf("cause-%02d", i),
		}))
	}
	require.NoError(t, store.AppendEvent(TypeCase, "TC-60", Event{
		Kind:         "observation",
		Status:       "failed",
		FailureCause: "timeout",
	}))
	require.NoError(t, store.AppendEvent(TypeCase, "TC-60", Event{
		Kind:         "observation",
		Status:       "failed",
		FailureCause: "timeout",
	}))

	seg := store.loadSegment(TypeCase, "TC-60")
	assert.LessOrEqual(t, len(seg.Stats.FailureCauses), scoring.MaxEntries)
	assert.LessOrEqual(t, len(seg.Stats.StatusCounts), scoring.MaxEntries)
	assert.Equal(t, 2, seg.Stats.FailureCauses["timeout"])
	assert.Equal(t, 2, seg.Stats.StatusCounts["failed"])
}
