package agents

import (
	"strings"
)

// extractJSON pulls the JSON object out of a model response, tolerating
// markdown fences and surrounding prose. Returns the empty string when no
// object is present.
func extractJSON(response string) string {
	s := strings.TrimSpace(response)

	// Strip a fenced block if the whole response is wrapped in one
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
