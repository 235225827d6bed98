package scenario

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

func sampleCases(n int) []testcase.TestCase {
	var cases []testcase.TestCase
	for i := 1; i <= n; i++ {
		cases = append(cases, testcase.TestCase{
			ID:        fmt.Sprintf("TC-%03d", i),
			Title:     fmt.Sprintf("Case %d", i),
			Priority:  "medium",
			SuitePath: "Mobile App / Checkout",
			Steps:     []testcase.Step{{Action: "tapOn", Payload: "Next", ExpectedResult: "Next screen"}},
		})
	}
	return cases
}

func newTestCache(t *testing.T, customPath string) *Cache {
	t.Helper()
	dir := t.TempDir()
	casesPath := filepath.Join(dir, "cases.json")
	require.NoError(t, os.WriteFile(casesPath, []byte(`[{"id":"TC-001"}]`), 0o644))
	return NewCache(casesPath, "", customPath, 5, "Mobile App", filepath.Join(dir, "artifacts"))
}

func TestGroupChunksAndSorts(t *testing.T) {
	cases := sampleCases(12)
	cases[0].Priority = "low"
	cases[11].Priority = "high"
	cases[3].IsOnboarding = true

	scenarios := Group(cases, 5, "Mobile App")

	// One onboarding bucket (1 case) plus three chunks of the 11 regular cases.
	require.Len(t, scenarios, 4)
	assert.Equal(t, "scenario_0001", scenarios[0].ID)
	assert.True(t, scenarios[0].IsOnboarding)
	assert.Equal(t, []string{"TC-004"}, scenarios[0].CaseIDs)

	// High priority sorts first inside the regular bucket.
	assert.Equal(t, "TC-012", scenarios[1].CaseIDs[0])
	// Low priority lands last.
	last := scenarios[3].CaseIDs
	assert.Equal(t, "TC-001", last[len(last)-1])

	for _, s := range scenarios[1:] {
		assert.LessOrEqual(t, s.CasesCount, 5)
		assert.False(t, s.IsOnboarding)
	}
	assert.Contains(t, scenarios[1].Title, "Mobile App / Checkout - batch")
}

func TestGroupFiltersByTargetRoot(t *testing.T) {
	cases := sampleCases(3)
	cases[2].SuitePath = "Web App / Checkout"
	scenarios := Group(cases, 5, "Mobile App")
	require.Len(t, scenarios, 1)
	assert.Equal(t, 2, scenarios[0].CasesCount)
}

func TestSourceHashChangesWithInputs(t *testing.T) {
	c := newTestCache(t, "")
	base := c.SourceHash()

	c.MaxPerScenario = 7
	assert.NotEqual(t, base, c.SourceHash(), "parameter change must invalidate")
	c.MaxPerScenario = 5
	assert.Equal(t, base, c.SourceHash())

	require.NoError(t, os.WriteFile(c.CasesPath, []byte(`[{"id":"TC-002"}]`), 0o644))
	assert.NotEqual(t, base, c.SourceHash(), "content change must invalidate")
}

func TestLoadOrRebuildUsesCache(t *testing.T) {
	c := newTestCache(t, "")
	cases := sampleCases(4)

	first, err := c.LoadOrRebuild(cases, nil)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// A second call with an unchanged source must serve the persisted
	// grouping even if the in-memory case list differs.
	second, err := c.LoadOrRebuild(sampleCases(8), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Invalidate and observe the rebuild.
	require.NoError(t, os.WriteFile(c.CasesPath, []byte(`[{"id":"TC-changed"}]`), 0o644))
	third, err := c.LoadOrRebuild(sampleCases(8), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, len(third))
}

func TestLoadOrRebuildInjectsCustomScenarioAtHead(t *testing.T) {
	dir := t.TempDir()
	customPath := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(customPath, []byte(`{
		"id": "custom_login",
		"title": "Custom login walk",
		"cases": [{"title": "Open login", "steps": [{"action": "tapOn", "payload": "Login"}]}]
	}`), 0o644))

	c := newTestCache(t, customPath)
	scenarios, err := c.LoadOrRebuild(sampleCases(2), nil)
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	head := scenarios[0]
	assert.Equal(t, "custom_login", head.ID)
	assert.Equal(t, "high", head.Priority)
	assert.Equal(t, []string{"custom_login_case_001"}, head.CaseIDs)

	// Upsert is idempotent: a cache hit must not duplicate the head.
	again, err := c.LoadOrRebuild(sampleCases(2), nil)
	require.NoError(t, err)
	count := 0
	for _, s := range again {
		if s.ID == "custom_login" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCustomScenarioRejectsEmptyCases(t *testing.T) {
	dir := t.TempDir()
	customPath := filepath.Join(dir, "custom.json")
	require.NoError(t, os.WriteFile(customPath, []byte(`{"id": "custom", "cases": []}`), 0o644))

	c := newTestCache(t, customPath)
	_, err := c.LoadOrRebuild(sampleCases(1), nil)
	assert.Error(t, err)
}

func TestNextPendingSkipsTestedScenarios(t *testing.T) {
	cases := sampleCases(6)
	scenarios := Group(cases, 3, "Mobile App")
	require.Len(t, scenarios, 2)

	tested := scenarios[0].CaseIDs
	next, ok := NextPending(scenarios, tested, cases)
	require.True(t, ok)
	assert.Equal(t, scenarios[1].ID, next.ID)

	var all []string
	for _, s := range scenarios {
		all = append(all, s.CaseIDs...)
	}
	_, ok = NextPending(scenarios, all, cases)
	assert.False(t, ok)
}

func TestPendingCasesPreservesOrder(t *testing.T) {
	cases := sampleCases(4)
	scenarios := Group(cases, 4, "Mobile App")
	require.Len(t, scenarios, 1)

	pending := PendingCases(scenarios[0], []string{"TC-002"}, cases)
	require.Len(t, pending, 3)
	assert.Equal(t, "TC-001", pending[0].ID)
	assert.Equal(t, "TC-003", pending[1].ID)
}

func TestInjectCustomCasesSkipsDuplicates(t *testing.T) {
	cases := sampleCases(2)
	custom := &CustomScenario{
		Scenario: Scenario{ID: "user_flow"},
		Cases: []testcase.TestCase{
			{ID: "TC-001", Title: "Already exported"},
			{ID: "user_flow_case_001", Title: "New custom case"},
		},
	}

	merged := InjectCustomCases(cases, custom)
	require.Len(t, merged, 3)
	assert.Equal(t, "user_flow_case_001", merged[2].ID)

	assert.Len(t, InjectCustomCases(cases, nil), 2)
}
