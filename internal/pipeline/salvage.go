package pipeline

import (
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/model"
)

var (
	arrayPattern  = regexp.MustCompile(`(?s)\[.*?\]`)
	objectPattern = regexp.MustCompile(`(?s)\{.*?\}`)
)

// stripFences removes a leading code-fence marker and a trailing fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```", "json"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
			break
		}
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// ParseItems recovers the structured payload from generative model output.
// Models reliably produce near-JSON wrapped in prose or fences, so strategies
// run in order of decreasing strictness: decode the fence-stripped text
// directly, then the last array literal, then the last object literal. When
// nothing decodes the head of the output is logged and nil is returned; a
// formatting slip costs one table, never the document.
func ParseItems(raw string) []model.TestItem {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	cleaned := stripFences(raw)

	if items, ok := decodeItems(cleaned); ok {
		return items
	}
	if matches := arrayPattern.FindAllString(cleaned, -1); len(matches) > 0 {
		if items, ok := decodeItems(matches[len(matches)-1]); ok {
			return items
		}
	}
	if matches := objectPattern.FindAllString(cleaned, -1); len(matches) > 0 {
		if items, ok := decodeItems(matches[len(matches)-1]); ok {
			return items
		}
	}

	zap.L().Warn("unparseable extraction output", zap.String("head", head(raw, 100)))
	return nil
}

// decodeItems accepts an item array, an {"items": [...]} wrapper, or a bare
// single item.
func decodeItems(data string) ([]model.TestItem, bool) {
	var items []model.TestItem
	if err := json.Unmarshal([]byte(data), &items); err == nil {
		return items, true
	}

	var wrapper struct {
		Items []model.TestItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(data), &wrapper); err == nil && len(wrapper.Items) > 0 {
		return wrapper.Items, true
	}

	var single model.TestItem
	if err := json.Unmarshal([]byte(data), &single); err == nil && single.ItemName != "" {
		return []model.TestItem{single}, true
	}

	return nil, false
}

func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
