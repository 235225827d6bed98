package graph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
)

func writeScreenshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	return path
}

func TestUpsertScreenCanonicalization(t *testing.T) {
	s := NewStore(t.TempDir())

	first := s.UpsertScreen("Login", UpsertOptions{})
	second := s.UpsertScreen(" login ", UpsertOptions{})
	third := s.UpsertScreen("LOGIN", UpsertOptions{})

	assert.Equal(t, first, second, "re-phrased names must resolve to one identity")
	assert.Equal(t, first, third)
	assert.Equal(t, 1, s.ScreenCount())

	screen := s.ScreenByID(first)
	require.NotNil(t, screen)
	assert.Equal(t, "Login", screen.Name)
	assert.Equal(t, []string{"Login", "login", "LOGIN"}, screen.Aliases)
	assert.Equal(t, 3, screen.Stats.Seen)
}

func TestUpsertScreenBlankName(t *testing.T) {
	s := NewStore(t.TempDir())
	assert.Empty(t, s.UpsertScreen("   ", UpsertOptions{}))
	assert.Zero(t, s.ScreenCount())
}

func TestRecordScreenTransitionGate(t *testing.T) {
	shot := writeScreenshot(t)
	denied := false

	tests := []struct {
		name string
		rec  TransitionRecord
	}{
		{"failed status", TransitionRecord{
			ScenarioID: "scenario_0001", CurrentScreen: "Login", NextScreen: "Home",
			Status: core.StatusFailed, Screenshot: shot,
		}},
		{"explicitly denied", TransitionRecord{
			ScenarioID: "scenario_0001", CurrentScreen: "Login", NextScreen: "Home",
			Status: core.StatusPassed, Confirmed: &denied, Screenshot: shot,
		}},
		{"missing screenshot", TransitionRecord{
			ScenarioID: "scenario_0001", CurrentScreen: "Login", NextScreen: "Home",
			Status: core.StatusPassed, Screenshot: filepath.Join(t.TempDir(), "nope.png"),
		}},
		{"screenshot is a directory", TransitionRecord{
			ScenarioID: "scenario_0001", CurrentScreen: "Login", NextScreen: "Home",
			Status: core.StatusPassed, Screenshot: t.TempDir(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			s := NewStore(root)
			result := s.RecordScreenTransition(tt.rec)

			assert.False(t, result.Recorded)
			assert.Equal(t, core.CauseUnconfirmedTransition, result.Skipped)
			assert.Zero(t, s.ScreenCount(), "unconfirmed evidence must not create screens")
			_, err := os.Stat(filepath.Join(root, "graph", "catalog.json"))
			assert.True(t, os.IsNotExist(err), "unconfirmed evidence must not touch store files")
		})
	}
}

func TestRecordScreenTransitionConfirmed(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root)
	shot := writeScreenshot(t)

	result := s.RecordScreenTransition(TransitionRecord{
		ScenarioID:    "scenario_0001",
		TestID:        "TC-101",
		CurrentScreen: "Login",
		NextScreen:    "Dashboard",
		ActionHint:    "tapOn:Sign In",
		Elements:      []string{"Sign In", "Forgot password"},
		Description:   "Login smoke",
		Status:        core.StatusPassed,
		Screenshot:    shot,
		Attempt:       2,
	})

	require.True(t, result.Recorded)
	assert.Equal(t, "screen_0001", result.FromScreenID)
	assert.Equal(t, "screen_0002", result.ToScreenID)
	assert.Equal(t, "flow_0001", result.FlowID)

	from := s.ScreenByName("Login")
	require.NotNil(t, from)
	assert.Contains(t, from.Elements, "Sign In")
	require.Len(t, from.Transitions, 1)
	assert.Equal(t, result.ToScreenID, from.Transitions[0].ToScreenID)
	assert.Equal(t, "tapOn:Sign In", from.Transitions[0].Via)
	assert.Equal(t, shot, from.LastShot)
	assert.Equal(t, 2, from.Stats.AttemptMax)

	// A second store instance sees the persisted state.
	reloaded := NewStore(root)
	assert.Equal(t, 2, reloaded.ScreenCount())
	require.NotNil(t, reloaded.ScreenByName("dashboard"))
}

func TestFlowChainExtendsOnlyOnNewTail(t *testing.T) {
	s := NewStore(t.TempDir())
	shot := writeScreenshot(t)

	base := TransitionRecord{ScenarioID: "scenario_0001", Status: core.StatusPassed, Screenshot: shot}

	rec1 := base
	rec1.CurrentScreen, rec1.NextScreen = "Login", "Dashboard"
	s.RecordScreenTransition(rec1)

	// The from screen equals the chain tail, so it is not duplicated.
	rec2 := base
	rec2.CurrentScreen, rec2.NextScreen = "Dashboard", "Profile"
	s.RecordScreenTransition(rec2)

	hints, ok := s.CollectFlowHints("scenario_0001")
	require.True(t, ok)
	assert.Equal(t, []string{"Login", "Dashboard", "Profile"}, hints.ScreenChain)

	flow := s.flows["flow_0001"]
	require.NotNil(t, flow)
	require.Len(t, flow.Transitions, 2)
	assert.ElementsMatch(t, []string{"screen_0001", "screen_0002", "screen_0003"}, flow.Screens)

	// Replaying a known edge bumps its count rather than adding a new one.
	s.RecordScreenTransition(rec2)
	require.Len(t, flow.Transitions, 2)
	assert.Equal(t, 2, flow.Transitions[1].Count)
}

func TestCollectFlowHintsUnknownScenario(t *testing.T) {
	s := NewStore(t.TempDir())
	_, ok := s.CollectFlowHints("scenario_9999")
	assert.False(t, ok)
}
