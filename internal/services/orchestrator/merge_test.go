package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ternarybob/responsum/internal/models"
)

func TestMergePassages(t *testing.T) {
	t.Run("Best score wins for segments found by multiple queries", func(t *testing.T) {
		results := []models.SearchResult{
			{Entries: []models.ScoredEntry{scoredEntry("doc_a", 0, 0, 100, 0.7)}},
			{Entries: []models.ScoredEntry{scoredEntry("doc_a", 0, 0, 100, 0.9)}},
		}
		merged := MergePassages(results, 8)
		require.Len(t, merged, 1)
		require.InDelta(t, 0.9, merged[0].Score, 1e-9)
	})

	t.Run("Sorted by score with deterministic tie-breaks", func(t *testing.T) {
		results := []models.SearchResult{
			{Entries: []models.ScoredEntry{
				scoredEntry("doc_b", 0, 0, 100, 0.8),
				scoredEntry("doc_a", 1, 500, 600, 0.8),
				scoredEntry("doc_a", 0, 200, 300, 0.8),
			}},
		}
		merged := MergePassages(results, 8)
		require.Len(t, merged, 3)
		require.Equal(t, "doc_a:0", merged[0].Entry.SegmentID)
		require.Equal(t, "doc_a:1", merged[1].Entry.SegmentID)
		require.Equal(t, "doc_b:0", merged[2].Entry.SegmentID)
	})

	t.Run("Overlapping spans in the same document collapse to the winner", func(t *testing.T) {
		results := []models.SearchResult{
			{Entries: []models.ScoredEntry{
				scoredEntry("doc_a", 0, 0, 150, 0.9),
				scoredEntry("doc_a", 1, 100, 250, 0.8),
			}},
		}
		merged := MergePassages(results, 8)
		require.Len(t, merged, 1)
		require.Equal(t, "doc_a:0", merged[0].Entry.SegmentID)
	})

	t.Run("Capped to maxPassages", func(t *testing.T) {
		results := []models.SearchResult{
			{Entries: []models.ScoredEntry{
				scoredEntry("doc_a", 0, 0, 100, 0.9),
				scoredEntry("doc_b", 0, 0, 100, 0.8),
				scoredEntry("doc_c", 0, 0, 100, 0.7),
			}},
		}
		merged := MergePassages(results, 2)
		require.Len(t, merged, 2)
		require.Equal(t, "doc_a:0", merged[0].Entry.SegmentID)
	})

	t.Run("Empty input yields empty output", func(t *testing.T) {
		require.Empty(t, MergePassages(nil, 8))
		require.Empty(t, MergePassages([]models.SearchResult{}, 8))
	})
}
