package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/fitcore/aigateway/internal/namespace"
)

// salientUserShape is the fixed allow-list of user fields that feed the
// fingerprint — NOT the full profile, so unrelated profile changes don't
// fragment the retrieval-context cache.
type salientUserShape struct {
	Experience        string `json:"experience"`
	ActiveProgramType string `json:"active_program_type"`
	PrimaryGoal       string `json:"primary_goal"`
	ActiveInjury      bool   `json:"injury_flags"`
}

func toSalient(u namespace.UserShape) salientUserShape {
	return salientUserShape{
		Experience:        strings.ToLower(u.Experience),
		ActiveProgramType: strings.ToLower(u.ActiveProgramType),
		PrimaryGoal:       strings.ToLower(u.PrimaryGoal),
		ActiveInjury:      u.ActiveInjury,
	}
}

// canonicalForm is the normalized intermediate representation the
// fingerprinter hashes. Adding a new endpoint's request fields means
// extending RequestShape and this struct, never touching the hashing code
// itself.
type canonicalForm struct {
	Endpoint                string `json:"endpoint"`
	IsProgrammingQuestion   bool   `json:"is_programming_question"`
	MentionsHeatOrElevation bool   `json:"mentions_heat_or_elevation"`
	IsNutritionAdjacent     bool   `json:"is_nutrition_adjacent"`
	Query                   string `json:"query"`
	User                    salientUserShape `json:"user"`
}

// Fingerprint deterministically digests (endpoint, request, salient user
// shape). Keys are sorted explicitly by canonicalizeJSON after a map
// round-trip, not left to struct field order; string fields in the fixed
// normalized set are lowercased before hashing so differing input casing
// does not fragment the cache.
func Fingerprint(endpoint, query string, req namespace.RequestShape, user namespace.UserShape) string {
	cf := canonicalForm{
		Endpoint:                endpoint,
		IsProgrammingQuestion:   req.IsProgrammingQuestion,
		MentionsHeatOrElevation: req.MentionsHeatOrElevation,
		IsNutritionAdjacent:     req.IsNutritionAdjacent,
		Query:                   strings.ToLower(strings.TrimSpace(query)),
		User:                    toSalient(user),
	}
	// Marshal via a map round-trip to guarantee key-sorted JSON regardless
	// of struct field declaration order, matching the "canonicalize by
	// key-sorting" wording literally rather than relying on Go's struct
	// encoding order.
	raw, _ := json.Marshal(cf)
	var asMap map[string]interface{}
	_ = json.Unmarshal(raw, &asMap)
	canonical := canonicalizeJSON(asMap)

	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func canonicalizeJSON(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			b.Write(kb)
			b.WriteByte(':')
			b.WriteString(canonicalizeJSON(val[k]))
		}
		b.WriteByte('}')
		return b.String()
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
