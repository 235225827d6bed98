// Package scenario groups raw test cases into bounded-size scenarios and
// caches the grouping keyed by a content hash of the source plus parameters.
package scenario

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nguyenopenclaw/qa-automator/pkg/testcase"
)

// Scenario is one bounded batch of cases sharing a root suite and an
// onboarding marker. Created once per grouping run and never mutated except
// for pending-count recomputation.
type Scenario struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Priority     string   `json:"priority"`
	IsOnboarding bool     `json:"is_onboarding"`
	CasesCount   int      `json:"cases_count"`
	TotalSteps   int      `json:"total_steps"`
	CaseIDs      []string `json:"case_ids"`
}

// PendingCount returns how many of the scenario's cases are still untested.
func (s Scenario) PendingCount(pending map[string]bool) int {
	n := 0
	for _, id := range s.CaseIDs {
		if pending[id] {
			n++
		}
	}
	return n
}

// Group buckets cases under the target root suite by onboarding-vs-not,
// sorts each bucket by (priority rank, id) and chunks into scenarios of at
// most maxPerScenario cases. Deterministic and idempotent.
func Group(cases []testcase.TestCase, maxPerScenario int, targetRoot string) []Scenario {
	if maxPerScenario < 1 {
		maxPerScenario = 1
	}
	grouped := map[string][]testcase.TestCase{}
	for _, c := range cases {
		root := c.RootSuite()
		// An empty target root disables root filtering.
		if targetRoot != "" && !strings.EqualFold(strings.TrimSpace(root), strings.TrimSpace(targetRoot)) {
			continue
		}
		marker := "regular"
		if c.IsOnboarding {
			marker = "onboarding"
		}
		key := root + "::" + marker
		grouped[key] = append(grouped[key], c)
	}

	keys := make([]string, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var scenarios []Scenario
	index := 1
	for _, key := range keys {
		bucket := grouped[key]
		sort.Slice(bucket, func(i, j int) bool {
			ri, rj := testcase.PriorityRank(bucket[i].Priority), testcase.PriorityRank(bucket[j].Priority)
			if ri != rj {
				return ri < rj
			}
			return bucket[i].ID < bucket[j].ID
		})
		for offset := 0; offset < len(bucket); offset += maxPerScenario {
			end := offset + maxPerScenario
			if end > len(bucket) {
				end = len(bucket)
			}
			chunk := bucket[offset:end]
			scenarios = append(scenarios, buildScenario(chunk, index))
			index++
		}
	}
	return scenarios
}

func buildScenario(chunk []testcase.TestCase, index int) Scenario {
	ids := make([]string, 0, len(chunk))
	steps := 0
	onboarding := false
	for _, c := range chunk {
		ids = append(ids, c.ID)
		steps += len(c.Steps)
		onboarding = onboarding || c.IsOnboarding
	}
	suitePath := "Ungrouped"
	if len(chunk) > 0 && chunk[0].SuitePath != "" {
		suitePath = chunk[0].SuitePath
	}
	return Scenario{
		ID:           fmt.Sprintf("scenario_%04d", index),
		Title:        fmt.Sprintf("%s - batch %d", suitePath, index),
		Priority:     chunkPriority(chunk),
		IsOnboarding: onboarding,
		CasesCount:   len(chunk),
		TotalSteps:   steps,
		CaseIDs:      ids,
	}
}

func chunkPriority(chunk []testcase.TestCase) string {
	seen := map[string]bool{}
	for _, c := range chunk {
		seen[strings.ToLower(c.Priority)] = true
	}
	for _, p := range []string{"high", "medium", "low"} {
		if seen[p] {
			return p
		}
	}
	return "undefined"
}
