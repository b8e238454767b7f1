// Package extract turns raw document text into typed, positioned entity
// mentions. Extraction strategies are interchangeable behind the Extractor
// interface: a rule-based strategy that works offline and a model-backed
// strategy that calls an external AI provider.
package extract

import (
	"context"
	"strings"

	"github.com/iou-concept/kompas/pkg/common"
)

// Extractor produces the entity mentions found in a document.
//
// Implementations must return an empty slice (not an error) for empty text,
// keep overlapping matches of different types, and keep duplicate mentions
// of the same surface form as separate entries; collapsing duplicates into
// one entity is the resolver's job.
type Extractor interface {
	Extract(ctx context.Context, text string, documentID string) ([]common.Mention, error)
}

// contextRadius bounds the snippet stored around each mention.
const contextRadius = 50

// Canonicalize normalizes a surface form into the merge key used by the
// resolver: lowercase, trimmed, inner whitespace collapsed.
func Canonicalize(surface string) string {
	s := strings.ToLower(strings.TrimSpace(surface))
	return strings.Join(strings.Fields(s), " ")
}

func contextWindow(text string, start, end int) string {
	from := start - contextRadius
	if from < 0 {
		from = 0
	}
	to := end + contextRadius
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}
