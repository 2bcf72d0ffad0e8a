// Package admission implements C6: the HTTP middleware applied to every
// protected endpoint. It extracts the subject/tier, classifies the
// endpoint, consults the rate limiter, attaches quota headers, and
// short-circuits with 429 on denial.
package admission

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fitcore/aigateway/internal/collaborators"
	"github.com/fitcore/aigateway/internal/logging"
	"github.com/fitcore/aigateway/internal/ratelimit"
)

// Classifier maps a request path to an endpoint class. The mapping is a
// closed, static list decided at startup (§6).
type Classifier func(path string) collaborators.EndpointClass

// DefaultClassifier implements §6's illustrative classification: a fixed
// set of expensive paths, the exempt health/docs surface, and everything
// else general.
func DefaultClassifier() Classifier {
	expensive := map[string]bool{
		"/api/coach/ask":                        true,
		"/api/injury/analyze":                   true,
		"/api/running/analyze":                  true,
		"/api/workout/insights":                 true,
		"/api/chat/swap-exercise-enhanced":       true,
	}
	expensivePrefixes := []string{"/api/program/generate/"}
	exempt := map[string]bool{
		"/health": true, "/summary": true, "/alerts": true,
		"/docs": true, "/openapi.json": true,
	}
	return func(path string) collaborators.EndpointClass {
		if exempt[path] {
			return collaborators.ClassExempt
		}
		if expensive[path] {
			return collaborators.ClassExpensive
		}
		for _, prefix := range expensivePrefixes {
			if strings.HasPrefix(path, prefix) {
				return collaborators.ClassExpensive
			}
		}
		return collaborators.ClassGeneral
	}
}

// Telemetry receives a sample after every admission attempt, regardless of
// outcome, for C8 to aggregate.
type Telemetry interface {
	ObserveAdmission(tier collaborators.Tier, class collaborators.EndpointClass, allowed bool)
}

// Middleware is the composed C6 admission wrapper.
type Middleware struct {
	verifier   collaborators.TokenVerifier
	limiter    *ratelimit.Limiter
	classifier Classifier
	telemetry  Telemetry
	logger     *logging.Logger
}

// New builds a Middleware. telemetry and logger may both be nil; with no
// logger, Wrap neither logs nor attaches a correlation-scoped logger to the
// request context.
func New(verifier collaborators.TokenVerifier, limiter *ratelimit.Limiter, classifier Classifier, telemetry Telemetry, logger *logging.Logger) *Middleware {
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	return &Middleware{verifier: verifier, limiter: limiter, classifier: classifier, telemetry: telemetry, logger: logger}
}

type errorBody struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
	Tier       string `json:"tier"`
	Endpoint   string `json:"endpoint"`
	Remaining  int    `json:"remaining"`
}

// Wrap returns next guarded by admission control.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class := m.classifier(r.URL.Path)
		correlationID := r.Header.Get("X-Request-ID")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", correlationID)

		var reqLogger *logging.Logger
		if m.logger != nil {
			reqLogger = m.logger.WithCorrelationID(correlationID)
			r = r.WithContext(withLogger(r.Context(), reqLogger))
		}

		if class == collaborators.ClassExempt {
			next.ServeHTTP(w, r)
			return
		}

		principal := m.extractPrincipal(r)
		decision := m.limiter.Check(r.Context(), principal.Subject, class, principal.Tier)

		if m.telemetry != nil {
			defer func() {
				m.telemetry.ObserveAdmission(principal.Tier, class, decision.Allowed)
			}()
		}

		if !decision.Allowed {
			if reqLogger != nil {
				reqLogger.Warn("admission denied",
					zap.String("endpoint", r.URL.Path),
					zap.String("tier", string(principal.Tier)),
					zap.Int("retry_after_seconds", decision.RetryAfterSeconds),
				)
			}
			writeDenied(w, r.URL.Path, principal.Tier, decision)
			return
		}

		writeQuotaHeaders(w, principal.Tier, decision)
		next.ServeHTTP(w, r)
	})
}

// ExtractPrincipal applies the same token-verification-with-IP-fallback
// logic Wrap uses, for callers outside the protected-route chain (e.g. an
// admin endpoint that needs the caller's tier without enforcing quotas).
func (m *Middleware) ExtractPrincipal(r *http.Request) collaborators.Principal {
	return m.extractPrincipal(r)
}

func (m *Middleware) extractPrincipal(r *http.Request) collaborators.Principal {
	token := bearerToken(r)
	if token != "" && m.verifier != nil {
		if p, err := m.verifier.Verify(r.Context(), []byte(token)); err == nil {
			p.Tier = collaborators.NormalizeTier(string(p.Tier))
			return p
		}
	}
	return collaborators.Principal{Subject: "ip:" + clientIP(r), Tier: collaborators.TierFree}
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if strings.HasPrefix(auth, prefix) {
		return strings.TrimPrefix(auth, prefix)
	}
	return ""
}

// clientIP resolves the caller's address, preferring proxy-supplied
// headers in the order X-Forwarded-For, X-Real-IP, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func writeQuotaHeaders(w http.ResponseWriter, tier collaborators.Tier, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	w.Header().Set("X-RateLimit-Tier", string(tier))
}

func writeDenied(w http.ResponseWriter, endpoint string, tier collaborators.Tier, d ratelimit.Decision) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", d.RetryAfterSeconds))
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Tier", string(tier))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:      "Rate limit exceeded",
		Message:    fmt.Sprintf("Too many requests. Please retry after %d seconds.", d.RetryAfterSeconds),
		RetryAfter: d.RetryAfterSeconds,
		Tier:       string(tier),
		Endpoint:   endpoint,
		Remaining:  0,
	})
}
