package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/gateway"
	"github.com/fitcore/aigateway/internal/logging"
	"github.com/fitcore/aigateway/internal/monitoring"
	"github.com/fitcore/aigateway/internal/namespace"
	"github.com/fitcore/aigateway/internal/retrieval"
)

func monitoringDefaultRules() []monitoring.AlertRule {
	return monitoring.DefaultAlertRules()
}

type ratelimitResetRequest struct {
	Subject string `json:"subject"`
	Class   string `json:"class"`
}

// adminRatelimitResetHandler exposes C2's Reset operation over HTTP, gated to
// callers whose verified tier is admin. It bypasses quota enforcement (it is
// mounted outside the protected-route chain) but still runs token
// verification so the tier check means something.
func adminRatelimitResetHandler(gw *gateway.Gateway, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		mw := gw.Admission()
		if mw == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		principal := mw.ExtractPrincipal(r)
		if principal.Tier != collaborators.TierAdmin {
			w.WriteHeader(http.StatusForbidden)
			return
		}

		var req ratelimitResetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Subject == "" || req.Class == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		if err := gw.RateLimiter().Reset(r.Context(), req.Subject, collaborators.EndpointClass(req.Class)); err != nil {
			logger.Error("ratelimit reset failed", zap.String("subject", req.Subject), zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// retrievalParamsFor builds a retrieval.GetContextParams from a raw
// question string. A real handler would derive RequestShape/UserShape
// from the parsed request body and the caller's stored profile; this
// reference handler classifies the question with simple keyword checks
// so the binary is runnable standalone.
func retrievalParamsFor(question string) retrieval.GetContextParams {
	lower := strings.ToLower(question)
	return retrieval.GetContextParams{
		Endpoint: "/api/coach/ask",
		Query:    question,
		Request: namespace.RequestShape{
			IsProgrammingQuestion:   strings.Contains(lower, "program") || strings.Contains(lower, "how to"),
			MentionsHeatOrElevation: strings.Contains(lower, "heat") || strings.Contains(lower, "elevation"),
			IsNutritionAdjacent:     strings.Contains(lower, "eat") || strings.Contains(lower, "diet"),
		},
		MaxChunks: 5,
		UseCache:  true,
		TTL:       time.Hour,
	}
}
