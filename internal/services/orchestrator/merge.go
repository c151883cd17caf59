package orchestrator

import (
	"sort"

	"github.com/ternarybob/responsum/internal/models"
	"github.com/ternarybob/responsum/internal/services/retriever"
)

// MergePassages combines per-query search results into one synthesis
// context: best score wins for segments found by multiple queries, spans
// overlapping a higher-scored passage in the same document are dropped, and
// the result is capped to maxPassages.
func MergePassages(results []models.SearchResult, maxPassages int) []models.ScoredEntry {
	best := make(map[string]models.ScoredEntry)
	for _, result := range results {
		for _, scored := range result.Entries {
			id := scored.Entry.SegmentID
			if existing, ok := best[id]; !ok || scored.Score > existing.Score {
				best[id] = scored
			}
		}
	}

	merged := make([]models.ScoredEntry, 0, len(best))
	for _, scored := range best {
		merged = append(merged, scored)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		if merged[i].Entry.DocumentID != merged[j].Entry.DocumentID {
			return merged[i].Entry.DocumentID < merged[j].Entry.DocumentID
		}
		return merged[i].Entry.SegmentIndex < merged[j].Entry.SegmentIndex
	})

	merged = retriever.DeduplicateSpans(merged)

	if maxPassages > 0 && len(merged) > maxPassages {
		merged = merged[:maxPassages]
	}
	return merged
}
