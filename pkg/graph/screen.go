package graph

import (
	"fmt"

	"github.com/nguyenopenclaw/qa-automator/pkg/core"
	"github.com/nguyenopenclaw/qa-automator/pkg/logger"
)

// Screen is a named, assertable state of the application under test.
// Identity is keyed by the normalized name; surface-text variants accumulate
// in Aliases. Screens are never deleted.
type Screen struct {
	ID          string       `json:"screen_id"`
	Name        string       `json:"name"`
	Aliases     []string     `json:"aliases,omitempty"`
	Elements    []string     `json:"elements,omitempty"`
	Transitions []Transition `json:"transitions,omitempty"`
	Stats       ScreenStats  `json:"stats"`
	Screenshots []string     `json:"screenshots,omitempty"`
	LastShot    string       `json:"last_screenshot,omitempty"`
	LastSeenAt  string       `json:"last_seen_at"`
}

// Transition is a confirmed (to, via) edge owned by the source screen.
type Transition struct {
	ToScreenID string `json:"to_screen_id"`
	Via        string `json:"via,omitempty"`
	Count      int    `json:"count"`
	LastSeen   string `json:"last_seen"`
}

// ScreenStats counts confirmed sightings per outcome.
type ScreenStats struct {
	Seen       int `json:"seen"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	AttemptMax int `json:"attempt_max,omitempty"`
}

// UpsertOptions carry the optional evidence attached to a sighting.
type UpsertOptions struct {
	Elements   []string
	Status     core.Status
	HasStatus  bool
	Screenshot string // Already-confirmed screenshot path, may be empty
	Attempt    int
}

// UpsertScreen resolves a screen by normalized name, creating it on first
// sighting, and merges the new evidence. Returns the screen id, or the empty
// string when name is blank.
func (s *Store) UpsertScreen(name string, opts UpsertOptions) string {
	norm := normalizeName(name)
	if norm == "" {
		return ""
	}

	id, ok := s.catalog.Screens[norm]
	screen := s.screens[id]
	if !ok || screen == nil {
		id = fmt.Sprintf("screen_%04d", s.catalog.NextScreenID)
		s.catalog.NextScreenID++
		s.catalog.Screens[norm] = id
		screen = &Screen{ID: id, Name: name}
		s.screens[id] = screen
	}

	screen.Aliases = mergeUnique(screen.Aliases, []string{name}, maxAliases)
	screen.Elements = mergeUnique(screen.Elements, opts.Elements, maxElements)
	screen.Stats.Seen++
	if opts.HasStatus {
		if opts.Status == core.StatusPassed {
			screen.Stats.Passed++
		} else {
			screen.Stats.Failed++
		}
	}
	if opts.Attempt > screen.Stats.AttemptMax {
		screen.Stats.AttemptMax = opts.Attempt
	}
	if opts.Screenshot != "" {
		screen.Screenshots = appendBounded(screen.Screenshots, opts.Screenshot, maxScreenshots)
		screen.LastShot = opts.Screenshot
	}
	screen.LastSeenAt = nowUTC()

	if err := s.saveScreen(screen); err != nil {
		logger.Warn("graph: persist screen %s: %v", id, err)
	}
	if err := s.saveCatalog(); err != nil {
		logger.Warn("graph: persist catalog: %v", err)
	}
	return id
}

// AddTransition records a (to, via) edge on the from screen, bumping the
// count of a matching edge or appending a new one (bounded).
func (s *Store) AddTransition(fromID, toID, via string) {
	screen := s.screens[fromID]
	if screen == nil || toID == "" || fromID == toID {
		return
	}
	for i := range screen.Transitions {
		t := &screen.Transitions[i]
		if t.ToScreenID == toID && t.Via == via {
			t.Count++
			t.LastSeen = nowUTC()
			if err := s.saveScreen(screen); err != nil {
				logger.Warn("graph: persist screen %s: %v", fromID, err)
			}
			return
		}
	}
	screen.Transitions = append(screen.Transitions, Transition{
		ToScreenID: toID,
		Via:        via,
		Count:      1,
		LastSeen:   nowUTC(),
	})
	if len(screen.Transitions) > maxTransitions {
		screen.Transitions = screen.Transitions[len(screen.Transitions)-maxTransitions:]
	}
	if err := s.saveScreen(screen); err != nil {
		logger.Warn("graph: persist screen %s: %v", fromID, err)
	}
}

// ScreenByID returns the screen for an id, or nil.
func (s *Store) ScreenByID(id string) *Screen {
	return s.screens[id]
}

// ScreenByName resolves a screen via normalized-name lookup, or nil.
func (s *Store) ScreenByName(name string) *Screen {
	id, ok := s.catalog.Screens[normalizeName(name)]
	if !ok {
		return nil
	}
	return s.screens[id]
}

// ScreenCount returns the number of known screens.
func (s *Store) ScreenCount() int {
	return len(s.screens)
}
