package graph

import (
	"math"
	"testing"

	"github.com/iou-concept/kompas/pkg/common"
)

func mention(id string, t common.EntityType, offset int) common.Mention {
	return common.Mention{
		Type:      t,
		Surface:   id,
		Canonical: id,
		Offset:    offset,
		Context:   "ctx-" + id,
		EntityID:  "e-" + id,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestInferStrength(t *testing.T) {
	inf := NewInferencer(InferencerConfig{})

	edges := inf.Infer([]common.Mention{
		mention("gemeente utrecht", common.EntityOrganization, 0),
		mention("omgevingswet", common.EntityLaw, 40),
	})
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(edges))
	}
	if !almostEqual(edges[0].Strength, 0.6) {
		t.Errorf("expected strength 0.6, got %v", edges[0].Strength)
	}
	if edges[0].Type != common.RelationSubjectTo {
		t.Errorf("expected SUBJECT_TO, got %s", edges[0].Type)
	}
}

func TestInferWindow(t *testing.T) {
	tests := []struct {
		name    string
		offsetB int
		want    int
	}{
		{name: "inside window", offsetB: 99, want: 1},
		{name: "at window boundary", offsetB: 100, want: 0},
		{name: "outside window", offsetB: 250, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inf := NewInferencer(InferencerConfig{})
			edges := inf.Infer([]common.Mention{
				mention("a", common.EntityOrganization, 0),
				mention("b", common.EntityLocation, tt.offsetB),
			})
			if len(edges) != tt.want {
				t.Errorf("expected %d edges, got %d", tt.want, len(edges))
			}
		})
	}
}

func TestInferSelfPair(t *testing.T) {
	inf := NewInferencer(InferencerConfig{})
	a := mention("a", common.EntityOrganization, 0)
	b := mention("a", common.EntityOrganization, 30)
	if edges := inf.Infer([]common.Mention{a, b}); len(edges) != 0 {
		t.Errorf("same entity should not pair with itself, got %d edges", len(edges))
	}
}

func TestInferTypeTable(t *testing.T) {
	inf := NewInferencer(InferencerConfig{})

	tests := []struct {
		name       string
		a, b       common.Mention
		wantType   common.RelationshipType
		wantSource string
	}{
		{
			name:       "person and organization",
			a:          mention("p", common.EntityPerson, 0),
			b:          mention("o", common.EntityOrganization, 10),
			wantType:   common.RelationWorksFor,
			wantSource: "e-p",
		},
		{
			name:       "reversed pair keeps table orientation",
			a:          mention("o", common.EntityOrganization, 0),
			b:          mention("p", common.EntityPerson, 10),
			wantType:   common.RelationWorksFor,
			wantSource: "e-p",
		},
		{
			name:       "same type",
			a:          mention("x", common.EntityConcept, 0),
			b:          mention("y", common.EntityConcept, 10),
			wantType:   common.RelationRelatedTo,
			wantSource: "e-x",
		},
		{
			name:       "no table entry",
			a:          mention("p", common.EntityPerson, 0),
			b:          mention("l", common.EntityLaw, 10),
			wantType:   common.RelationMentions,
			wantSource: "e-p",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges := inf.Infer([]common.Mention{tt.a, tt.b})
			if len(edges) != 1 {
				t.Fatalf("expected 1 edge, got %d", len(edges))
			}
			if edges[0].Type != tt.wantType {
				t.Errorf("expected %s, got %s", tt.wantType, edges[0].Type)
			}
			if edges[0].SourceID != tt.wantSource {
				t.Errorf("expected source %s, got %s", tt.wantSource, edges[0].SourceID)
			}
		})
	}
}

func TestInferUnresolvedMentionsSkipped(t *testing.T) {
	inf := NewInferencer(InferencerConfig{})
	a := mention("a", common.EntityOrganization, 0)
	b := mention("b", common.EntityLocation, 10)
	b.EntityID = ""
	if edges := inf.Infer([]common.Mention{a, b}); len(edges) != 0 {
		t.Errorf("unresolved mentions must not produce edges, got %d", len(edges))
	}
}
