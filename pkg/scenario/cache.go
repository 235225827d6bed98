package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// Cache persists grouped scenarios next to the source export and reuses
// them while the stored content hash matches.
type Cache struct {
	CasesPath          string
	TestedPath         string
	CustomScenarioPath string
	MaxPerScenario     int
	TargetRoot         string

	scenariosPath string
	currentPath   string
}

// cacheFile is the on-disk shape of scenarios.json.
type cacheFile struct {
	SourceHash  string     `json:"source_hash"`
	SourceFile  string     `json:"source_file"`
	TotalCases  int        `json:"total_cases"`
	TestedCases int        `json:"tested_cases"`
	Total       int        `json:"scenarios_total"`
	Scenarios   []Scenario `json:"scenarios"`
}

// NewCache builds a cache rooted next to the cases file, writing the current
// scenario snapshot under artifactsDir.
func NewCache(casesPath, testedPath, customPath string, maxPerScenario int, targetRoot string, artifactsDir string) *Cache {
	return &Cache{
		CasesPath:          casesPath,
		TestedPath:         testedPath,
		CustomScenarioPath: customPath,
		MaxPerScenario:     maxPerScenario,
		TargetRoot:         targetRoot,
		scenariosPath:      filepath.Join(filepath.Dir(casesPath), "scenarios.json"),
		currentPath:        filepath.Join(artifactsDir, "current_scenario.json"),
	}
}

// SourceHash digests the source bytes together with every grouping
// parameter, so any change forces a rebuild.
func (c *Cache) SourceHash() string {
	digest := sha256.New()
	if data, err := os.ReadFile(c.CasesPath); err == nil { //#nosec G304 -- user-provided export
		digest.Write(data)
	}
	digest.Write([]byte(strconv.Itoa(c.MaxPerScenario)))
	digest.Write([]byte(c.TargetRoot))
	if c.CustomScenarioPath != "" {
		if data, err := os.ReadFile(c.CustomScenarioPath); err == nil { //#nosec G304
			digest.Write([]byte(c.CustomScenarioPath))
			digest.Write(data)
		}
	}
	return hex.EncodeToString(digest.Sum(nil))
}

// LoadOrRebuild returns cached scenarios when the stored hash matches the
// current source hash, otherwise regroups and persists. The custom scenario,
// when configured, is upserted at the head either way.
func (c *Cache) LoadOrRebuild(cases []testcase.TestCase, tested []string) ([]Scenario, error) {
	hash := c.SourceHash()
	custom, err := c.loadCustomScenario()
	if err != nil {
		return nil, err
	}

	if cached := c.loadCached(hash); cached != nil {
		logger.Debug("scenario: cache hit for hash %.12s", hash)
		if custom != nil {
			cached = upsertCustom(cached, *custom)
		}
		return cached, nil
	}

	scenarios := Group(cases, c.MaxPerScenario, c.TargetRoot)
	if custom != nil {
		scenarios = upsertCustom(scenarios, *custom)
	}
	payload := cacheFile{
		SourceHash:  hash,
		SourceFile:  c.CasesPath,
		TotalCases:  len(cases),
		TestedCases: len(tested),
		Total:       len(scenarios),
		Scenarios:   scenarios,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode scenarios: %w", err)
	}
	if err := os.WriteFile(c.scenariosPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("persist scenarios: %w", err)
	}
	logger.Info("scenario: rebuilt %d scenarios (hash %.12s)", len(scenarios), hash)
	return scenarios, nil
}

func (c *Cache) loadCached(hash string) []Scenario {
	data, err := os.ReadFile(c.scenariosPath) //#nosec G304 -- cache-internal path
	if err != nil {
		return nil
	}
	var payload cacheFile
	if json.Unmarshal(data, &payload) != nil {
		return nil
	}
	if payload.SourceHash != hash || payload.Scenarios == nil {
		return nil
	}
	return payload.Scenarios
}

// NextPending returns the first scenario that still has untested cases.
func NextPending(scenarios []Scenario, tested []string, all []testcase.TestCase) (Scenario, bool) {
	pending := pendingSet(tested, all)
	for _, s := range scenarios {
		if s.PendingCount(pending) > 0 {
			return s, true
		}
	}
	return Scenario{}, false
}

// ByID finds a scenario by id.
func ByID(scenarios []Scenario, id string) (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return Scenario{}, false
}

// PendingCases expands a scenario into its still-untested cases, in order.
func PendingCases(s Scenario, tested []string, all []testcase.TestCase) []testcase.TestCase {
	pending := pendingSet(tested, all)
	byID := make(map[string]testcase.TestCase, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	var out []testcase.TestCase
	for _, id := range s.CaseIDs {
		if c, ok := byID[id]; ok && pending[id] {
			out = append(out, c)
		}
	}
	return out
}

func pendingSet(tested []string, all []testcase.TestCase) map[string]bool {
	done := make(map[string]bool, len(tested))
	for _, id := range tested {
		done[id] = true
	}
	pending := make(map[string]bool, len(all))
	for _, c := range all {
		if !done[c.ID] {
			pending[c.ID] = true
		}
	}
	return pending
}

// WriteCurrent snapshots the scenario being worked on for outside observers.
func (c *Cache) WriteCurrent(s *Scenario) {
	if c.currentPath == "" {
		return
	}
	payload := struct {
		UpdatedAt     string    `json:"updated_at"`
		Scenario      *Scenario `json:"scenario"`
		ScenariosPath string    `json:"scenarios_path"`
	}{
		UpdatedAt:     time.Now().UTC().Format(time.RFC3339),
		Scenario:      s,
		ScenariosPath: c.scenariosPath,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.currentPath), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(c.currentPath, data, 0o644); err != nil {
		logger.Warn("scenario: write current snapshot: %v", err)
	}
}
