package testcase

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
)

func TestLoadFlatList(t *testing.T) {
	data := []byte(`[
		{"id": "TC-1", "title": "Login works", "priority": "high",
		 "steps": [{"action": "Tap 'Login'", "expected_result": "Dashboard is displayed"}]},
		{"id": "TC-2", "title": "Logout works"}
	]`)

	cases, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}
	if cases[0].ID != "TC-1" || cases[0].Priority != "high" {
		t.Errorf("unexpected first case: %+v", cases[0])
	}
	if len(cases[0].Steps) != 1 || cases[0].Steps[0].ExpectedResult != "Dashboard is displayed" {
		t.Errorf("unexpected steps: %+v", cases[0].Steps)
	}
	if cases[1].Priority != "medium" {
		t.Errorf("missing priority should default to medium, got %q", cases[1].Priority)
	}
}

func TestLoadSuiteTreeBuildsSuitePaths(t *testing.T) {
	data := []byte(`{
		"suites": [
			{"title": "Regression", "suites": [
				{"title": "Auth", "cases": [{"id": "TC-10", "title": "Sign in"}]}
			], "cases": [{"id": "TC-11", "title": "Smoke"}]},
			{"title": "Onboarding", "cases": [{"id": "TC-12", "title": "First launch onboarding"}]}
		]
	}`)

	cases, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	paths := map[string]string{}
	for _, c := range cases {
		paths[c.ID] = c.SuitePath
	}
	want := map[string]string{
		"TC-10": "Regression / Auth",
		"TC-11": "Regression",
		"TC-12": "Onboarding",
	}
	if !reflect.DeepEqual(paths, want) {
		t.Errorf("suite paths = %v, want %v", paths, want)
	}
}

func TestLoadSingleCaseObject(t *testing.T) {
	cases, err := Load([]byte(`{"id": "TC-20", "title": "Solo"}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cases) != 1 || cases[0].ID != "TC-20" {
		t.Fatalf("expected the object itself as a case, got %+v", cases)
	}
}

func TestLoadRejectsBrokenJSON(t *testing.T) {
	if _, err := Load([]byte(`{"cases": [`)); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestStepFieldAliases(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Step
	}{
		{
			name: "canonical",
			data: `{"action": "Tap", "payload": "Login", "expected_result": "ok"}`,
			want: Step{Action: "Tap", Payload: "Login", ExpectedResult: "ok"},
		},
		{
			name: "type and value",
			data: `{"type": "input", "value": "user@example.com"}`,
			want: Step{Action: "input", Payload: "user@example.com"},
		},
		{
			name: "text and camelCase expected",
			data: `{"action": "Enter code", "text": "1234", "expectedResult": "Code accepted"}`,
			want: Step{Action: "Enter code", Payload: "1234", ExpectedResult: "Code accepted"},
		},
		{
			name: "data alias",
			data: `{"action": "Fill", "data": "note"}`,
			want: Step{Action: "Fill", Payload: "note"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cases, err := Load([]byte(`[{"id": "TC-x", "steps": [` + tt.data + `]}]`))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if got := cases[0].Steps[0]; got != tt.want {
				t.Errorf("step = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestOnboardingDetection(t *testing.T) {
	data := []byte(`[
		{"id": "TC-30", "title": "Complete onboarding flow"},
		{"id": "TC-31", "title": "Pay invoice", "tags": ["Onboarding"]},
		{"id": "TC-32", "title": "Pay invoice", "tags": [{"title": "Smoke"}]}
	]`)

	cases, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cases[0].IsOnboarding {
		t.Error("title mention should mark onboarding")
	}
	if !cases[1].IsOnboarding {
		t.Error("tag should mark onboarding regardless of casing")
	}
	if cases[2].IsOnboarding {
		t.Error("unrelated case marked onboarding")
	}
	if got := cases[2].Tags; len(got) != 1 || got[0] != "smoke" {
		t.Errorf("object tags should lower-case titles, got %v", got)
	}
}

func TestNumericIDAndAliases(t *testing.T) {
	cases, err := Load([]byte(`[{"case_id": 421, "title": "Numeric id"}]`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cases[0].ID != "421" {
		t.Errorf("id = %q, want 421", cases[0].ID)
	}
}

func TestRootSuite(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "Ungrouped"},
		{"Regression", "Regression"},
		{"Regression / Auth / Login", "Regression"},
	}
	for _, tt := range tests {
		c := TestCase{SuitePath: tt.path}
		if got := c.RootSuite(); got != tt.want {
			t.Errorf("RootSuite(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestStepsText(t *testing.T) {
	c := TestCase{Steps: []Step{
		{Action: "Open app"},
		{Action: "  "},
		{Action: "Tap 'Login'"},
	}}
	if got := c.StepsText(); got != "Open app; Tap 'Login'" {
		t.Errorf("StepsText = %q", got)
	}
}

func TestPriorityRank(t *testing.T) {
	order := []string{"high", "Medium", "low", "critical"}
	for i := 1; i < len(order); i++ {
		if PriorityRank(order[i-1]) >= PriorityRank(order[i]) {
			t.Errorf("rank(%q) should be below rank(%q)", order[i-1], order[i])
		}
	}
}

func TestLoadTested(t *testing.T) {
	dir := t.TempDir()

	mapPath := filepath.Join(dir, "tested-map.json")
	if err := os.WriteFile(mapPath, []byte(`{"TC-1": true, "TC-2": false, "TC-3": true}`), 0o644); err != nil {
		t.Fatal(err)
	}
	ids := LoadTested(mapPath)
	sort.Strings(ids)
	if !reflect.DeepEqual(ids, []string{"TC-1", "TC-3"}) {
		t.Errorf("map form = %v", ids)
	}

	listPath := filepath.Join(dir, "tested-list.json")
	if err := os.WriteFile(listPath, []byte(`["TC-4", "TC-5"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := LoadTested(listPath); !reflect.DeepEqual(got, []string{"TC-4", "TC-5"}) {
		t.Errorf("list form = %v", got)
	}

	if got := LoadTested(filepath.Join(dir, "missing.json")); got != nil {
		t.Errorf("missing file should yield nil, got %v", got)
	}
}
