package extract

import (
	"context"
	"testing"

	"github.com/iou-concept/kompas/pkg/common"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "lowercases", in: "Gemeente Utrecht", want: "gemeente utrecht"},
		{name: "trims", in: "  Woo  ", want: "woo"},
		{name: "collapses whitespace", in: "Wet\t open   overheid", want: "wet open overheid"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRuleExtractorEmptyText(t *testing.T) {
	got, err := NewRuleExtractor().Extract(context.Background(), "", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", got)
	}
}

func TestRuleExtractorOrganizations(t *testing.T) {
	text := "De Gemeente Utrecht overlegt met de Provincie Flevoland en het Ministerie van Binnenlandse Zaken."
	got, err := NewRuleExtractor().Extract(context.Background(), text, "doc-1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	byCanonical := map[string]common.Mention{}
	for _, m := range got {
		if m.Type == common.EntityOrganization {
			byCanonical[m.Canonical] = m
		}
	}
	for _, want := range []string{"gemeente utrecht", "provincie flevoland", "ministerie van binnenlandse zaken"} {
		m, ok := byCanonical[want]
		if !ok {
			t.Errorf("missing organization %q in %v", want, byCanonical)
			continue
		}
		if m.Confidence != 0.90 {
			t.Errorf("%s: expected confidence 0.90, got %v", want, m.Confidence)
		}
		if m.Context == "" {
			t.Errorf("%s: missing context window", want)
		}
	}
}

func TestRuleExtractorLawsAndLocations(t *testing.T) {
	text := "Volgens de Woo en de Omgevingswet moet Utrecht documenten openbaar maken."
	got, err := NewRuleExtractor().Extract(context.Background(), text, "doc-1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	var laws, locations int
	for _, m := range got {
		switch m.Type {
		case common.EntityLaw:
			laws++
			if m.Confidence != 0.95 {
				t.Errorf("law %s: expected confidence 0.95, got %v", m.Canonical, m.Confidence)
			}
		case common.EntityLocation:
			locations++
			if m.Confidence != 0.85 {
				t.Errorf("location %s: expected confidence 0.85, got %v", m.Canonical, m.Confidence)
			}
		}
	}
	if laws != 2 {
		t.Errorf("expected 2 laws (Woo, Omgevingswet), got %d", laws)
	}
	if locations != 1 {
		t.Errorf("expected 1 location (Utrecht), got %d", locations)
	}
}

func TestRuleExtractorOverlapKept(t *testing.T) {
	// "Utrecht" is both part of the organization and a location on its own
	text := "De Gemeente Utrecht publiceert."
	got, err := NewRuleExtractor().Extract(context.Background(), text, "doc-1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	var hasOrg, hasLoc bool
	for _, m := range got {
		if m.Type == common.EntityOrganization && m.Canonical == "gemeente utrecht" {
			hasOrg = true
		}
		if m.Type == common.EntityLocation && m.Canonical == "utrecht" {
			hasLoc = true
		}
	}
	if !hasOrg || !hasLoc {
		t.Errorf("expected overlapping org and location mentions, got %+v", got)
	}
}

func TestRuleExtractorDuplicateMentions(t *testing.T) {
	text := "De Woo geldt. De Woo geldt nog steeds."
	got, err := NewRuleExtractor().Extract(context.Background(), text, "doc-1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	var offsets []int
	for _, m := range got {
		if m.Type == common.EntityLaw {
			offsets = append(offsets, m.Offset)
		}
	}
	if len(offsets) != 2 {
		t.Fatalf("expected both Woo mentions, got %d", len(offsets))
	}
	if offsets[0] >= offsets[1] {
		t.Errorf("mentions must be sorted by offset, got %v", offsets)
	}
}

func TestRuleExtractorSortedByOffset(t *testing.T) {
	text := "Amsterdam en Rotterdam vallen onder de AVG."
	got, err := NewRuleExtractor().Extract(context.Background(), text, "doc-1")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Offset < got[i-1].Offset {
			t.Fatalf("mentions out of order at %d: %+v", i, got)
		}
	}
}
