// Package graph persists the screen/flow model of the application under
// test. Screens are canonicalized by normalized name, transitions are
// recorded only for confirmed evidence, and flows accumulate the ordered
// screen chain seen for each scenario.
package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Bounded inventory sizes. Oldest entries are dropped on overflow.
const (
	maxAliases     = 12
	maxElements    = 40
	maxTransitions = 24
	maxScreenshots = 10
)

// Store is the screen/flow graph backed by one JSON file per entity plus a
// catalog for identity resolution. It assumes a single in-process writer.
type Store struct {
	root    string
	catalog catalog

	screens map[string]*Screen // screen id -> screen
	flows   map[string]*Flow   // flow id -> flow
}

type catalog struct {
	NextScreenID int               `json:"next_screen_id"`
	NextFlowID   int               `json:"next_flow_id"`
	Screens      map[string]string `json:"screens"` // normalized name -> screen id
	Flows        map[string]string `json:"flows"`   // flow key -> flow id
}

// NewStore loads the graph under root/graph. Missing or corrupt files are
// treated as no data.
func NewStore(root string) *Store {
	s := &Store{
		root: filepath.Join(root, "graph"),
		catalog: catalog{
			NextScreenID: 1,
			NextFlowID:   1,
			Screens:      map[string]string{},
			Flows:        map[string]string{},
		},
		screens: map[string]*Screen{},
		flows:   map[string]*Flow{},
	}
	s.load()
	return s
}

func (s *Store) load() {
	var cat catalog
	if readJSON(filepath.Join(s.root, "catalog.json"), &cat) {
		if cat.Screens == nil {
			cat.Screens = map[string]string{}
		}
		if cat.Flows == nil {
			cat.Flows = map[string]string{}
		}
		if cat.NextScreenID < 1 {
			cat.NextScreenID = 1
		}
		if cat.NextFlowID < 1 {
			cat.NextFlowID = 1
		}
		s.catalog = cat
	}
	for _, id := range s.catalog.Screens {
		var screen Screen
		if readJSON(filepath.Join(s.root, "screens", id+".json"), &screen) && screen.ID != "" {
			s.screens[screen.ID] = &screen
		}
	}
	for _, id := range s.catalog.Flows {
		var flow Flow
		if readJSON(filepath.Join(s.root, "flows", id+".json"), &flow) && flow.ID != "" {
			s.flows[flow.ID] = &flow
		}
	}
}

func (s *Store) saveCatalog() error {
	return writeJSON(filepath.Join(s.root, "catalog.json"), s.catalog)
}

func (s *Store) saveScreen(screen *Screen) error {
	return writeJSON(filepath.Join(s.root, "screens", screen.ID+".json"), screen)
}

func (s *Store) saveFlow(flow *Flow) error {
	return writeJSON(filepath.Join(s.root, "flows", flow.ID+".json"), flow)
}

// normalizeName collapses whitespace, trims and case-folds a screen label so
// re-phrased variants resolve to one identity.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func readJSON(path string, v interface{}) bool {
	data, err := os.ReadFile(path) //#nosec G304 -- paths are store-internal
	if err != nil {
		return false
	}
	return json.Unmarshal(data, v) == nil
}

func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// appendBounded appends value to list, dropping the oldest entry on overflow.
func appendBounded(list []string, value string, max int) []string {
	list = append(list, value)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

// mergeUnique appends trimmed values not already present verbatim. Exact
// match on purpose: aliases keep the distinct spellings a screen was seen
// under while the catalog key does the case folding.
func mergeUnique(list []string, values []string, max int) []string {
	seen := make(map[string]bool, len(list))
	for _, item := range list {
		seen[item] = true
	}
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" || seen[value] {
			continue
		}
		seen[value] = true
		list = append(list, value)
	}
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}
