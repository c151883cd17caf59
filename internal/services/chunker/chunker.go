package chunker

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/models"
)

// Service splits document content into bounded, overlapping segments.
// Splitting is deterministic and sentence-aware: segment boundaries fall on
// sentence ends except when a single sentence exceeds the word budget, in
// which case it is split at word boundaries. Every rune of the input is
// covered by at least one segment, and each segment's Text equals the
// content slice [Start:End) in runes.
type Service struct {
	maxWords     int
	overlapWords int
	logger       arbor.ILogger
}

// NewService creates a chunker with the configured word budget and overlap
func NewService(config *common.ChunkingConfig, logger arbor.ILogger) *Service {
	maxWords := config.MaxWords
	if maxWords <= 0 {
		maxWords = 500
	}
	overlapWords := config.OverlapWords
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= maxWords {
		overlapWords = maxWords / 2
	}

	return &Service{
		maxWords:     maxWords,
		overlapWords: overlapWords,
		logger:       logger,
	}
}

// unit is one indivisible piece of text: a sentence, or a word-bounded slice
// of an oversized sentence. Units tile the input contiguously.
type unit struct {
	start int // rune offset, inclusive
	end   int // rune offset, exclusive
	words int
}

// Chunk splits a document's content into segments. Whitespace-only content
// yields no segments.
func (s *Service) Chunk(doc *models.Document) ([]models.Segment, error) {
	if doc == nil || doc.ID == "" {
		return nil, fmt.Errorf("document with ID is required")
	}

	runes := []rune(doc.ContentMarkdown)
	if len(strings.TrimSpace(doc.ContentMarkdown)) == 0 {
		return nil, nil
	}

	units := s.splitUnits(runes)

	var segments []models.Segment
	i := 0
	for i < len(units) {
		// Overlap: walk back over preceding units up to the overlap budget
		overlapStart := i
		overlap := 0
		for overlapStart > 0 && overlap+units[overlapStart-1].words <= s.overlapWords {
			overlap += units[overlapStart-1].words
			overlapStart--
		}

		// Greedily take units until the word budget (overlap included) is
		// spent; always take at least one.
		words := overlap
		j := i
		for j < len(units) {
			if j > i && words+units[j].words > s.maxWords {
				break
			}
			words += units[j].words
			j++
		}

		start := units[overlapStart].start
		end := units[j-1].end
		index := len(segments)

		segments = append(segments, models.Segment{
			ID:         fmt.Sprintf("%s:%d", doc.ID, index),
			DocumentID: doc.ID,
			Index:      index,
			Start:      start,
			End:        end,
			Text:       string(runes[start:end]),
		})

		i = j
	}

	s.logger.Debug().
		Str("document_id", doc.ID).
		Int("segments", len(segments)).
		Int("content_runes", len(runes)).
		Msg("Chunked document")

	return segments, nil
}

// MaxWords returns the configured per-segment word budget
func (s *Service) MaxWords() int {
	return s.maxWords
}

// OverlapWords returns the effective overlap budget
func (s *Service) OverlapWords() int {
	return s.overlapWords
}

// splitUnits tiles the input into sentence units; sentences over the word
// budget are further split at word boundaries.
func (s *Service) splitUnits(runes []rune) []unit {
	var units []unit

	start := 0
	for start < len(runes) {
		end := sentenceEnd(runes, start)
		words := countWords(runes[start:end])
		if words > s.maxWords {
			units = append(units, s.splitOversized(runes, start, end)...)
		} else if words > 0 {
			units = append(units, unit{start: start, end: end, words: words})
		} else if len(units) > 0 {
			// Trailing whitespace-only run attaches to the previous unit so
			// coverage stays contiguous.
			units[len(units)-1].end = end
		}
		start = end
	}

	return units
}

// sentenceEnd returns the rune offset one past the end of the sentence
// starting at from, including its terminator and any following whitespace.
// A blank line also terminates a sentence, which keeps markdown blocks
// (headings, list items, code fences) from gluing together.
func sentenceEnd(runes []rune, from int) int {
	i := from
	for i < len(runes) {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			// Terminator only counts when followed by whitespace or EOF,
			// so "v1.2" or "e.g." stay intact mid-token.
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				i++
				break
			}
		}
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			i++
			break
		}
		i++
	}

	// Absorb trailing whitespace into this sentence
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return i
}

// splitOversized splits the sentence [start,end) into word-bounded units of
// at most maxWords words each.
func (s *Service) splitOversized(runes []rune, start, end int) []unit {
	var units []unit

	i := start
	for i < end {
		words := 0
		j := i
		for j < end && words < s.maxWords {
			// Skip leading whitespace of the next word
			for j < end && unicode.IsSpace(runes[j]) {
				j++
			}
			if j >= end {
				break
			}
			for j < end && !unicode.IsSpace(runes[j]) {
				j++
			}
			words++
		}
		// Absorb trailing whitespace
		for j < end && unicode.IsSpace(runes[j]) {
			j++
		}
		if words == 0 {
			if len(units) > 0 {
				units[len(units)-1].end = end
			}
			break
		}
		units = append(units, unit{start: i, end: j, words: words})
		i = j
	}

	return units
}

func countWords(runes []rune) int {
	return len(strings.Fields(string(runes)))
}
