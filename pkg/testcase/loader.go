package testcase

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// LoadFile reads a Qase-exported JSON document and returns normalized cases.
// Accepts a flat case list, a {cases, suites} object, or a single case.
func LoadFile(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided export file
	if err != nil {
		return nil, fmt.Errorf("read test cases: %w", err)
	}
	return Load(data)
}

// Load parses Qase-exported JSON content.
func Load(data []byte) ([]TestCase, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse test cases: %w", err)
	}
	items := extractCaseItems(raw)
	cases := make([]TestCase, 0, len(items))
	for _, item := range items {
		cases = append(cases, normalizeCase(item))
	}
	return cases, nil
}

type rawCase struct {
	item      map[string]interface{}
	suitePath string
}

func extractCaseItems(raw interface{}) []rawCase {
	switch v := raw.(type) {
	case []interface{}:
		var out []rawCase
		for _, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, rawCase{item: m})
			}
		}
		return out
	case map[string]interface{}:
		var out []rawCase
		if direct, ok := v["cases"].([]interface{}); ok {
			for _, item := range direct {
				if m, ok := item.(map[string]interface{}); ok {
					out = append(out, rawCase{item: m})
				}
			}
		}
		if suites, ok := v["suites"].([]interface{}); ok {
			for _, suite := range suites {
				collectFromSuite(suite, nil, &out)
			}
		}
		// Treat the object itself as a case when it looks like one.
		if len(out) == 0 {
			for _, key := range []string{"id", "title", "steps"} {
				if _, ok := v[key]; ok {
					out = append(out, rawCase{item: v})
					break
				}
			}
		}
		return out
	default:
		return nil
	}
}

func collectFromSuite(node interface{}, parents []string, out *[]rawCase) {
	m, ok := node.(map[string]interface{})
	if !ok {
		return
	}
	path := parents
	if title := strings.TrimSpace(stringField(m, "title")); title != "" {
		path = append(append([]string{}, parents...), title)
	}
	if cases, ok := m["cases"].([]interface{}); ok {
		for _, item := range cases {
			if c, ok := item.(map[string]interface{}); ok {
				*out = append(*out, rawCase{item: c, suitePath: strings.Join(path, " / ")})
			}
		}
	}
	if suites, ok := m["suites"].([]interface{}); ok {
		for _, suite := range suites {
			collectFromSuite(suite, path, out)
		}
	}
}

func normalizeCase(rc rawCase) TestCase {
	item := rc.item
	id := firstNonEmpty(stringField(item, "id"), stringField(item, "case_id"), stringField(item, "public_id"))

	var tags []string
	if rawTags, ok := item["tags"].([]interface{}); ok {
		for _, tag := range rawTags {
			switch t := tag.(type) {
			case string:
				tags = append(tags, strings.ToLower(t))
			case map[string]interface{}:
				if title := stringField(t, "title"); title != "" {
					tags = append(tags, strings.ToLower(title))
				}
			}
		}
	}

	title := stringField(item, "title")
	onboarding := containsString(tags, "onboarding") ||
		strings.Contains(strings.ToLower(title), "onboarding")

	var steps []Step
	if rawSteps, ok := item["steps"].([]interface{}); ok {
		for _, rs := range rawSteps {
			data, err := json.Marshal(rs)
			if err != nil {
				continue
			}
			var step Step
			if json.Unmarshal(data, &step) == nil {
				steps = append(steps, step)
			}
		}
	}

	priority := stringField(item, "priority")
	if priority == "" {
		priority = "medium"
	}

	return TestCase{
		ID:             id,
		Title:          title,
		Priority:       priority,
		Preconditions:  stringField(item, "preconditions"),
		Postconditions: stringField(item, "postconditions"),
		Steps:          steps,
		Tags:           tags,
		IsOnboarding:   onboarding,
		SuitePath:      strings.TrimSpace(rc.suitePath),
	}
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
	default:
		return ""
	}
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

// LoadTested reads the tested-case registry: either a {id: bool} map or a
// plain id list. A missing file means nothing has been tested yet.
func LoadTested(path string) []string {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided registry file
	if err != nil || len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	var asMap map[string]bool
	if json.Unmarshal(data, &asMap) == nil && len(asMap) > 0 {
		var ids []string
		for id, done := range asMap {
			if done {
				ids = append(ids, id)
			}
		}
		return ids
	}
	var asList []string
	if json.Unmarshal(data, &asList) == nil {
		return asList
	}
	return nil
}
