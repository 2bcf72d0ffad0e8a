// Package namespace implements C4: a pure, deterministic mapping from an
// (endpoint, request-shape, user-shape) tuple to an ordered, capped list of
// knowledge-base partition names to query.
package namespace

import "sort"

const maxNamespaces = 5

// RequestShape carries the typed request fields the selector reads. Zero
// values are treated as "field not present" per §4.4's failure mode.
type RequestShape struct {
	IsProgrammingQuestion bool
	MentionsHeatOrElevation bool
	IsNutritionAdjacent   bool
}

// UserShape carries the typed user-profile fields the selector reads.
type UserShape struct {
	Experience      string // "beginner", "intermediate", "advanced"
	ActiveInjury    bool
	ActiveProgramType string
	PrimaryGoal     string
}

// Rule describes one endpoint's base set and static priority order for tie
// breaking when the cap trims augmented namespaces.
type Rule struct {
	BaseSet  []string
	Priority []string // full fixed priority order for this endpoint, base set first
}

// Ruleset is the static, startup-loaded table driving selection — data
// instead of scattered per-endpoint conditionals.
type Ruleset map[string]Rule

// augmentation predicates, in fixed evaluation order.
type augmentation struct {
	namespace string
	applies   func(RequestShape, UserShape) bool
}

var augmentations = []augmentation{
	{
		namespace: "injury-management",
		applies:   func(_ RequestShape, u UserShape) bool { return u.ActiveInjury },
	},
	{
		namespace: "fundamentals",
		applies: func(r RequestShape, u UserShape) bool {
			return r.IsProgrammingQuestion && u.Experience == "beginner"
		},
	},
	{
		namespace: "environment",
		applies:   func(r RequestShape, _ UserShape) bool { return r.MentionsHeatOrElevation },
	},
	{
		namespace: "nutrition",
		applies:   func(r RequestShape, _ UserShape) bool { return r.IsNutritionAdjacent },
	},
}

// DefaultRuleset is the built-in endpoint -> base-set table. Endpoints not
// present here fall back to a generic base set.
func DefaultRuleset() Ruleset {
	return Ruleset{
		"/api/coach/ask": {
			BaseSet:  []string{"strength-fundamentals", "squat-technique"},
			Priority: []string{"strength-fundamentals", "squat-technique", "fundamentals", "injury-management", "environment", "nutrition"},
		},
		"/api/program/generate": {
			BaseSet:  []string{"programming-principles", "periodization"},
			Priority: []string{"programming-principles", "periodization", "fundamentals", "injury-management", "nutrition", "environment"},
		},
		"/api/injury/analyze": {
			BaseSet:  []string{"injury-management", "rehab-protocols"},
			Priority: []string{"injury-management", "rehab-protocols", "fundamentals", "environment", "nutrition"},
		},
		"/api/running/analyze": {
			BaseSet:  []string{"running-mechanics", "pacing"},
			Priority: []string{"running-mechanics", "pacing", "environment", "injury-management", "fundamentals", "nutrition"},
		},
		"/api/workout/insights": {
			BaseSet:  []string{"progress-tracking", "exercise-library"},
			Priority: []string{"progress-tracking", "exercise-library", "fundamentals", "injury-management", "nutrition", "environment"},
		},
	}
}

const genericBaseSetA = "general-fitness"
const genericBaseSetB = "exercise-library"

func genericRule() Rule {
	return Rule{
		BaseSet:  []string{genericBaseSetA, genericBaseSetB},
		Priority: []string{genericBaseSetA, genericBaseSetB, "fundamentals", "injury-management", "nutrition", "environment"},
	}
}

// Selector selects partitions for each endpoint from a fixed Ruleset. It
// holds no mutable state and is safe for concurrent use.
type Selector struct {
	rules Ruleset
}

// New builds a Selector over rules.
func New(rules Ruleset) *Selector {
	return &Selector{rules: rules}
}

// Select returns the ordered, capped partition list for endpoint. Given
// identical inputs it always returns byte-identical output; malformed or
// empty shapes fall back to the endpoint's base set.
func (s *Selector) Select(endpoint string, req RequestShape, user UserShape) []string {
	rule, ok := s.rules[endpoint]
	if !ok {
		rule = genericRule()
	}

	selected := make(map[string]bool, len(rule.BaseSet))
	ordered := append([]string(nil), rule.BaseSet...)
	for _, ns := range rule.BaseSet {
		selected[ns] = true
	}

	for _, aug := range augmentations {
		if selected[aug.namespace] {
			continue
		}
		if aug.applies(req, user) {
			selected[aug.namespace] = true
			ordered = append(ordered, aug.namespace)
		}
	}

	if len(ordered) <= maxNamespaces {
		return ordered
	}

	priorityIndex := make(map[string]int, len(rule.Priority))
	for i, ns := range rule.Priority {
		priorityIndex[ns] = i
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		pi, iok := priorityIndex[ordered[i]]
		pj, jok := priorityIndex[ordered[j]]
		if !iok {
			pi = len(rule.Priority)
		}
		if !jok {
			pj = len(rule.Priority)
		}
		return pi < pj
	})
	return ordered[:maxNamespaces]
}
