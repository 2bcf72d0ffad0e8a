package namespace

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestScenarioB mirrors §8 Scenario B's namespace selection step: beginner
// experience on /api/coach/ask yields the base set plus fundamentals.
func TestScenarioB(t *testing.T) {
	s := New(DefaultRuleset())
	got := s.Select("/api/coach/ask", RequestShape{IsProgrammingQuestion: true}, UserShape{Experience: "beginner"})
	assert.Equal(t, []string{"strength-fundamentals", "squat-technique", "fundamentals"}, got)
}

func TestSelectIsPure(t *testing.T) {
	s := New(DefaultRuleset())
	req := RequestShape{IsProgrammingQuestion: true, MentionsHeatOrElevation: true}
	user := UserShape{Experience: "beginner", ActiveInjury: true}

	first := s.Select("/api/running/analyze", req, user)
	second := s.Select("/api/running/analyze", req, user)
	assert.Equal(t, first, second)
}

func TestSelectCapsAtFive(t *testing.T) {
	s := New(DefaultRuleset())
	req := RequestShape{IsProgrammingQuestion: true, MentionsHeatOrElevation: true, IsNutritionAdjacent: true}
	user := UserShape{Experience: "beginner", ActiveInjury: true}

	got := s.Select("/api/running/analyze", req, user)
	assert.LessOrEqual(t, len(got), 5)
}

func TestSelectEmptyShapesReturnsBaseSet(t *testing.T) {
	s := New(DefaultRuleset())
	got := s.Select("/api/coach/ask", RequestShape{}, UserShape{})
	assert.Equal(t, []string{"strength-fundamentals", "squat-technique"}, got)
}

func TestSelectUnknownEndpointReturnsGenericBaseSet(t *testing.T) {
	s := New(DefaultRuleset())
	got := s.Select("/api/unknown/thing", RequestShape{}, UserShape{})
	assert.Equal(t, []string{genericBaseSetA, genericBaseSetB}, got)
}

func TestInjuryAugmentationAdded(t *testing.T) {
	s := New(DefaultRuleset())
	got := s.Select("/api/coach/ask", RequestShape{}, UserShape{ActiveInjury: true})
	assert.Contains(t, got, "injury-management")
}
