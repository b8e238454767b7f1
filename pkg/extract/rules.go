package extract

import (
	"context"
	"regexp"
	"sort"

	"github.com/iou-concept/kompas/pkg/common"
)

const (
	orgConfidence      = 0.90
	lawConfidence      = 0.95
	locationConfidence = 0.85
)

// Dutch government organization patterns. The full match is the surface form.
var orgPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Provincie\s+[\p{L}-]+`),
	regexp.MustCompile(`(?i)Gemeente\s+[\p{L}-]+`),
	regexp.MustCompile(`(?i)Ministerie\s+van\s+[A-Z][\p{L} ]+`),
	regexp.MustCompile(`(?i)Waterschap\s+[\p{L}-]+`),
	regexp.MustCompile(`(?i)Rijksdienst\s+voor\s+[A-Z][\p{L} ]+`),
}

// Dutch laws and regulations recognized by name.
var knownLaws = []string{
	"Wet open overheid", "Woo", "Algemene verordening gegevensbescherming",
	"AVG", "GDPR", "Archiefwet", "Omgevingswet", "Wet ruimtelijke ordening",
	"Wet milieubeheer", "Algemene wet bestuursrecht", "Awb",
}

// Dutch provinces and major cities.
var knownLocations = []string{
	"Flevoland", "Noord-Holland", "Zuid-Holland", "Utrecht", "Gelderland",
	"Overijssel", "Drenthe", "Friesland", "Groningen", "Zeeland",
	"Noord-Brabant", "Limburg",
	"Amsterdam", "Rotterdam", "Den Haag", "Eindhoven",
	"Tilburg", "Almere", "Lelystad",
}

type listPattern struct {
	canonical string
	re        *regexp.Regexp
}

func compileList(names []string) []listPattern {
	out := make([]listPattern, 0, len(names))
	for _, name := range names {
		out = append(out, listPattern{
			canonical: Canonicalize(name),
			re:        regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`),
		})
	}
	return out
}

// RuleExtractor is the pattern-based extraction strategy. It recognizes
// Dutch government organizations, laws, and locations without any external
// provider, so the pipeline keeps functioning when no model is configured.
type RuleExtractor struct {
	laws      []listPattern
	locations []listPattern
}

// NewRuleExtractor builds a rule extractor with the default pattern tables.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{
		laws:      compileList(knownLaws),
		locations: compileList(knownLocations),
	}
}

// Extract scans the text with every pattern table. Overlapping matches of
// different types are all kept: a location embedded in an organization name
// yields both mentions.
func (e *RuleExtractor) Extract(ctx context.Context, text string, documentID string) ([]common.Mention, error) {
	if text == "" {
		return []common.Mention{}, nil
	}

	mentions := make([]common.Mention, 0)

	for _, re := range orgPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			surface := text[loc[0]:loc[1]]
			mentions = append(mentions, common.Mention{
				Type:       common.EntityOrganization,
				Surface:    surface,
				Canonical:  Canonicalize(surface),
				Confidence: orgConfidence,
				Context:    contextWindow(text, loc[0], loc[1]),
				Offset:     loc[0],
			})
		}
	}

	for _, lp := range e.laws {
		for _, loc := range lp.re.FindAllStringIndex(text, -1) {
			mentions = append(mentions, common.Mention{
				Type:       common.EntityLaw,
				Surface:    text[loc[0]:loc[1]],
				Canonical:  lp.canonical,
				Confidence: lawConfidence,
				Context:    contextWindow(text, loc[0], loc[1]),
				Offset:     loc[0],
			})
		}
	}

	for _, lp := range e.locations {
		for _, loc := range lp.re.FindAllStringIndex(text, -1) {
			mentions = append(mentions, common.Mention{
				Type:       common.EntityLocation,
				Surface:    text[loc[0]:loc[1]],
				Canonical:  lp.canonical,
				Confidence: locationConfidence,
				Context:    contextWindow(text, loc[0], loc[1]),
				Offset:     loc[0],
			})
		}
	}

	sort.SliceStable(mentions, func(i, j int) bool {
		return mentions[i].Offset < mentions[j].Offset
	})

	return mentions, nil
}
