package ingest

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// parseFrontMatter splits optional YAML front matter from a markdown
// document. Returns the metadata (nil when absent) and the body. A
// malformed front-matter block is left in the body untouched.
func parseFrontMatter(content string) (map[string]interface{}, string) {
	firstNL := strings.Index(content, "\n")
	if firstNL < 0 || strings.TrimSpace(content[:firstNL]) != "---" {
		return nil, content
	}
	rest := content[firstNL+1:]

	// Scan for the closing delimiter line
	metaEnd := -1
	bodyStart := -1
	offset := 0
	for offset <= len(rest) {
		var line string
		var next int
		if nl := strings.Index(rest[offset:], "\n"); nl < 0 {
			line = rest[offset:]
			next = len(rest) + 1
		} else {
			line = rest[offset : offset+nl]
			next = offset + nl + 1
		}
		if strings.TrimSpace(line) == "---" {
			metaEnd = offset
			bodyStart = next
			break
		}
		offset = next
	}
	if metaEnd < 0 {
		return nil, content
	}

	var meta map[string]interface{}
	if err := yaml.Unmarshal([]byte(rest[:metaEnd]), &meta); err != nil || meta == nil {
		return nil, content
	}

	if bodyStart > len(rest) {
		return meta, ""
	}
	return meta, rest[bodyStart:]
}

// titleFromContent extracts the first markdown H1 heading, if any
func titleFromContent(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
