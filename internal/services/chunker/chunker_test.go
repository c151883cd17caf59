package chunker

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/models"
)

func newTestChunker(maxWords, overlapWords int) *Service {
	return NewService(&common.ChunkingConfig{
		MaxWords:     maxWords,
		OverlapWords: overlapWords,
	}, arbor.NewLogger())
}

func testDoc(content string) *models.Document {
	return &models.Document{ID: "doc_test", Title: "Test", ContentMarkdown: content}
}

func TestChunker_Chunk(t *testing.T) {
	t.Run("Whitespace-only content yields no segments", func(t *testing.T) {
		c := newTestChunker(10, 2)
		segments, err := c.Chunk(testDoc("   \n\t  \n"))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if len(segments) != 0 {
			t.Errorf("Expected no segments, got %d", len(segments))
		}
	})

	t.Run("Missing document ID is rejected", func(t *testing.T) {
		c := newTestChunker(10, 2)
		if _, err := c.Chunk(&models.Document{ContentMarkdown: "Hello world."}); err == nil {
			t.Error("Expected error for document without ID")
		}
	})

	t.Run("Short content produces one segment covering everything", func(t *testing.T) {
		c := newTestChunker(100, 10)
		content := "First sentence here. Second sentence follows."
		segments, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if len(segments) != 1 {
			t.Fatalf("Expected 1 segment, got %d", len(segments))
		}
		seg := segments[0]
		if seg.Start != 0 || seg.End != len([]rune(content)) {
			t.Errorf("Segment should span full content, got [%d,%d)", seg.Start, seg.End)
		}
		if seg.Text != content {
			t.Errorf("Segment text mismatch: %q", seg.Text)
		}
		if seg.ID != "doc_test:0" {
			t.Errorf("Unexpected segment ID: %s", seg.ID)
		}
	})

	t.Run("Chunking is deterministic", func(t *testing.T) {
		c := newTestChunker(8, 3)
		content := buildSentences(20)
		first, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		second, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Error("Two runs over the same content produced different segments")
		}
	})

	t.Run("Segments cover all content contiguously", func(t *testing.T) {
		c := newTestChunker(8, 3)
		content := buildSentences(25)
		runes := []rune(content)

		segments, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if len(segments) < 2 {
			t.Fatalf("Expected multiple segments, got %d", len(segments))
		}

		if segments[0].Start != 0 {
			t.Errorf("First segment should start at 0, got %d", segments[0].Start)
		}
		if segments[len(segments)-1].End != len(runes) {
			t.Errorf("Last segment should end at %d, got %d", len(runes), segments[len(segments)-1].End)
		}

		for i, seg := range segments {
			if seg.Text != string(runes[seg.Start:seg.End]) {
				t.Errorf("Segment %d text does not equal content[%d:%d)", i, seg.Start, seg.End)
			}
			if seg.Index != i {
				t.Errorf("Segment %d has index %d", i, seg.Index)
			}
			if i > 0 {
				prev := segments[i-1]
				// Overlap reaches back into the previous segment but never
				// past its start, and never leaves a gap.
				if seg.Start > prev.End {
					t.Errorf("Gap between segment %d (end %d) and %d (start %d)", i-1, prev.End, i, seg.Start)
				}
				if seg.Start < prev.Start {
					t.Errorf("Segment %d starts before segment %d", i, i-1)
				}
				if seg.End <= prev.End {
					t.Errorf("Segment %d makes no forward progress", i)
				}
			}
		}
	})

	t.Run("Word budget includes the overlap", func(t *testing.T) {
		c := newTestChunker(10, 4)
		segments, err := c.Chunk(testDoc(buildSentences(30)))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		for i, seg := range segments {
			words := len(strings.Fields(seg.Text))
			if words > c.MaxWords() {
				t.Errorf("Segment %d has %d words, budget is %d", i, words, c.MaxWords())
			}
		}
	})

	t.Run("Oversized sentence is split at word boundaries", func(t *testing.T) {
		c := newTestChunker(5, 0)
		// One long "sentence" with no terminators
		content := strings.Repeat("word ", 17)
		segments, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if len(segments) != 4 {
			t.Fatalf("Expected 4 segments for 17 words at budget 5, got %d", len(segments))
		}
		total := 0
		for _, seg := range segments {
			total += len(strings.Fields(seg.Text))
		}
		if total != 17 {
			t.Errorf("Expected 17 words across segments, got %d", total)
		}
	})

	t.Run("Abbreviations do not split mid-token", func(t *testing.T) {
		c := newTestChunker(100, 0)
		content := "We shipped v1.2 yesterday. It fixed the regression."
		segments, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if len(segments) != 1 {
			t.Fatalf("Expected 1 segment, got %d", len(segments))
		}
		if segments[0].Text != content {
			t.Errorf("Content altered by chunking: %q", segments[0].Text)
		}
	})

	t.Run("Blank line terminates a markdown block", func(t *testing.T) {
		c := newTestChunker(6, 0)
		content := "# Heading without terminator\n\nBody sentence one two three four five six seven."
		segments, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		if len(segments) < 2 {
			t.Fatalf("Expected heading and body in separate segments, got %d", len(segments))
		}
		if !strings.HasPrefix(segments[0].Text, "# Heading") {
			t.Errorf("First segment should carry the heading: %q", segments[0].Text)
		}
	})

	t.Run("Overlap disabled when configured to zero", func(t *testing.T) {
		c := newTestChunker(6, 0)
		content := buildSentences(12)
		segments, err := c.Chunk(testDoc(content))
		if err != nil {
			t.Fatalf("Chunk failed: %v", err)
		}
		for i := 1; i < len(segments); i++ {
			if segments[i].Start != segments[i-1].End {
				t.Errorf("Segment %d should start exactly at previous end", i)
			}
		}
	})
}

func TestChunker_ConfigClamping(t *testing.T) {
	t.Run("Overlap at or above budget is halved", func(t *testing.T) {
		c := newTestChunker(10, 10)
		if c.OverlapWords() != 5 {
			t.Errorf("Expected overlap clamped to 5, got %d", c.OverlapWords())
		}
	})

	t.Run("Negative overlap becomes zero", func(t *testing.T) {
		c := newTestChunker(10, -3)
		if c.OverlapWords() != 0 {
			t.Errorf("Expected overlap 0, got %d", c.OverlapWords())
		}
	})

	t.Run("Non-positive budget gets default", func(t *testing.T) {
		c := newTestChunker(0, 0)
		if c.MaxWords() != 500 {
			t.Errorf("Expected default budget 500, got %d", c.MaxWords())
		}
	})
}

// buildSentences produces n distinct three-word sentences
func buildSentences(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteString(fmt.Sprintf("Sentence number %d. ", i))
	}
	return strings.TrimSpace(sb.String())
}
