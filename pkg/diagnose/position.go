package diagnose

import (
	"encoding/json"
	"strings"
)

const (
	maxUITextChars = 90
	maxUITextWords = 10
	maxUITexts     = 40
)

// StepPosition locates the failing step inside an executed flow. Indexes are
// zero-based positions into the command sequence; -1 means not observed.
type StepPosition struct {
	FailedStepIndex         int      `json:"failed_step_index"`
	LastSuccessfulStepIndex int      `json:"last_successful_step_index"`
	RetryFromStepIndex      int      `json:"retry_from_step_index"`
	FailedSelector          string   `json:"failed_selector,omitempty"`
	UITextCandidates        []string `json:"ui_text_candidates,omitempty"`
}

// stepEntry mirrors one record of the driver's per-command debug log.
type stepEntry struct {
	Command  map[string]json.RawMessage `json:"command"`
	Metadata struct {
		Status    string  `json:"status"`
		Hierarchy *UINode `json:"hierarchy,omitempty"`
	} `json:"metadata"`
}

// UINode is one node of a captured view hierarchy snapshot.
type UINode struct {
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	Children   []UINode               `json:"children,omitempty"`
}

// ExtractStepPosition walks the ordered per-step debug log. The first failed
// step fixes the failure index; passes before it advance the last-successful
// index; the retry index resumes right after the last pass but never past
// the failure itself.
func ExtractStepPosition(debugLog []byte) (StepPosition, error) {
	pos := StepPosition{
		FailedStepIndex:         -1,
		LastSuccessfulStepIndex: -1,
		RetryFromStepIndex:      0,
	}

	var entries []stepEntry
	if err := json.Unmarshal(debugLog, &entries); err != nil {
		return pos, err
	}

	for i, entry := range entries {
		switch strings.ToLower(entry.Metadata.Status) {
		case "completed", "passed":
			if pos.FailedStepIndex < 0 {
				pos.LastSuccessfulStepIndex = i
			}
		case "failed":
			if pos.FailedStepIndex < 0 {
				pos.FailedStepIndex = i
				pos.FailedSelector = commandSelector(entry.Command)
				if entry.Metadata.Hierarchy != nil {
					pos.UITextCandidates = ExtractUIText(entry.Metadata.Hierarchy)
				}
			}
		}
	}

	pos.RetryFromStepIndex = pos.LastSuccessfulStepIndex + 1
	if pos.FailedStepIndex >= 0 && pos.RetryFromStepIndex > pos.FailedStepIndex {
		pos.RetryFromStepIndex = pos.FailedStepIndex
	}
	return pos, nil
}

// commandSelector digs the interaction selector out of a command record.
func commandSelector(command map[string]json.RawMessage) string {
	for _, raw := range command {
		var payload map[string]interface{}
		if err := json.Unmarshal(raw, &payload); err != nil {
			var scalar string
			if json.Unmarshal(raw, &scalar) == nil {
				return scalar
			}
			continue
		}
		if sel := selectorFromPayload(payload); sel != "" {
			return sel
		}
	}
	return ""
}

func selectorFromPayload(payload map[string]interface{}) string {
	for _, key := range []string{"text", "id"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	if nested, ok := payload["selector"].(map[string]interface{}); ok {
		for _, key := range []string{"textRegex", "idRegex", "text", "id"} {
			if v, ok := nested[key].(string); ok && v != "" {
				return v
			}
		}
	}
	return ""
}

// ExtractUIText collects short visible text fragments from a hierarchy
// snapshot, de-duplicated case-insensitively and bounded so the result stays
// small enough to feed back into a retry prompt.
func ExtractUIText(root *UINode) []string {
	seen := make(map[string]bool)
	var ordered []string

	var walk func(node *UINode)
	walk = func(node *UINode) {
		if node == nil || len(ordered) >= maxUITexts {
			return
		}
		for _, key := range []string{"accessibilityText", "text", "label", "value"} {
			raw, ok := node.Attributes[key]
			if !ok {
				continue
			}
			value := strings.TrimSpace(toString(raw))
			if value == "" {
				continue
			}
			low := strings.ToLower(value)
			if len(value) > maxUITextChars || len(strings.Fields(low)) > maxUITextWords {
				continue
			}
			if !seen[low] {
				seen[low] = true
				ordered = append(ordered, value)
				if len(ordered) >= maxUITexts {
					return
				}
			}
		}
		for i := range node.Children {
			walk(&node.Children[i])
		}
	}

	walk(root)
	return ordered
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}
