package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/responsum/internal/models"
)

// formatPassages formats retrieved passages as markdown
func formatPassages(query string, entries []models.ScoredEntry) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Passages for \"%s\" (%d results)\n\n", query, len(entries)))

	if len(entries) == 0 {
		sb.WriteString("No passages found.\n")
		return sb.String()
	}

	for i, scored := range entries {
		sb.WriteString(fmt.Sprintf("### %d. %s (segment %d)\n", i+1, scored.Entry.DocumentTitle, scored.Entry.SegmentIndex))
		sb.WriteString(fmt.Sprintf("**Document:** %s\n", scored.Entry.DocumentID))
		sb.WriteString(fmt.Sprintf("**Score:** %.4f\n\n", scored.Score))
		sb.WriteString(scored.Entry.Text)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String()
}

// formatDocument formats a single document as markdown
func formatDocument(doc *models.Document) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# %s\n\n", doc.Title))
	sb.WriteString(fmt.Sprintf("**ID:** %s\n", doc.ID))
	sb.WriteString(fmt.Sprintf("**Source:** %s\n", doc.SourceType))
	if doc.SourcePath != "" {
		sb.WriteString(fmt.Sprintf("**Path:** %s\n", doc.SourcePath))
	}
	sb.WriteString(fmt.Sprintf("**Segments:** %d\n", doc.SegmentCount))
	sb.WriteString(fmt.Sprintf("**Updated:** %s\n\n", doc.UpdatedAt.Format(time.RFC3339)))

	sb.WriteString("## Content\n\n")
	sb.WriteString(doc.ContentMarkdown)
	sb.WriteString("\n\n")

	if len(doc.Metadata) > 0 {
		sb.WriteString("## Metadata\n\n```json\n")
		metadataJSON, _ := json.MarshalIndent(doc.Metadata, "", "  ")
		sb.WriteString(string(metadataJSON))
		sb.WriteString("\n```\n")
	}

	return sb.String()
}

// formatStats formats corpus statistics as markdown
func formatStats(docCount int, bySource map[string]int, indexStats models.IndexStats) string {
	var sb strings.Builder
	sb.WriteString("## Corpus Statistics\n\n")
	sb.WriteString(fmt.Sprintf("**Documents:** %d\n", docCount))
	sb.WriteString(fmt.Sprintf("**Indexed segments:** %d\n", indexStats.Entries))
	sb.WriteString(fmt.Sprintf("**Embedding dimension:** %d\n\n", indexStats.Dimension))

	if len(bySource) > 0 {
		sb.WriteString("### By source type\n\n")
		for sourceType, count := range bySource {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", sourceType, count))
		}
	}

	return sb.String()
}
