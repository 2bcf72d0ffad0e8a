package monitoring

import (
	"fmt"
	"time"
)

// Alert is one currently-firing alert condition.
type Alert struct {
	ID      string  `json:"id"`
	Message string  `json:"message"`
	Value   float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// AlertRule evaluates a Snapshot and returns a firing Alert, or nil if the
// condition does not currently hold.
type AlertRule interface {
	ID() string
	Evaluate(snap Snapshot) *Alert
}

// denialRateRule fires when denials exceed a fraction of total admission
// attempts across all (tier, class) buckets.
type denialRateRule struct {
	threshold float64
}

func (r denialRateRule) ID() string { return "high_denial_rate" }

func (r denialRateRule) Evaluate(snap Snapshot) *Alert {
	var admitted, denied int64
	for _, b := range snap.Admission {
		admitted += b.Admitted
		denied += b.Denied
	}
	total := admitted + denied
	if total == 0 {
		return nil
	}
	rate := float64(denied) / float64(total)
	if rate > r.threshold {
		return &Alert{
			ID:        r.ID(),
			Message:   fmt.Sprintf("denial rate %.1f%% exceeds threshold %.1f%%", rate*100, r.threshold*100),
			Value:     rate,
			Threshold: r.threshold,
		}
	}
	return nil
}

// kvFailuresRule fires when the KV adapter has accumulated too many
// consecutive failures.
type kvFailuresRule struct {
	threshold int
}

func (r kvFailuresRule) ID() string { return "kv_consecutive_failures" }

func (r kvFailuresRule) Evaluate(snap Snapshot) *Alert {
	if snap.KV.ConsecutiveFailures > r.threshold {
		return &Alert{
			ID:        r.ID(),
			Message:   fmt.Sprintf("KV adapter has %d consecutive failures (threshold %d)", snap.KV.ConsecutiveFailures, r.threshold),
			Value:     float64(snap.KV.ConsecutiveFailures),
			Threshold: float64(r.threshold),
		}
	}
	return nil
}

// retrievalLatencyRule fires when any partition's p95 latency exceeds a
// threshold.
type retrievalLatencyRule struct {
	thresholdMS float64
}

func (r retrievalLatencyRule) ID() string { return "retrieval_p95_high" }

func (r retrievalLatencyRule) Evaluate(snap Snapshot) *Alert {
	for partition, p := range snap.Partitions {
		if p.P95LatencyMS > r.thresholdMS {
			return &Alert{
				ID:        r.ID(),
				Message:   fmt.Sprintf("partition %q p95 latency %.0fms exceeds %.0fms", partition, p.P95LatencyMS, r.thresholdMS),
				Value:     p.P95LatencyMS,
				Threshold: r.thresholdMS,
			}
		}
	}
	return nil
}

// DefaultAlertRules matches §4.8's illustrative predicates: denial rate
// over 20%, KV consecutive failures over 10, retrieval p95 over 2s.
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		denialRateRule{threshold: 0.20},
		kvFailuresRule{threshold: 10},
		retrievalLatencyRule{thresholdMS: float64((2 * time.Second).Milliseconds())},
	}
}

// Alerts evaluates rules against the current snapshot and returns every
// firing alert.
func (s *Surface) Alerts(rules []AlertRule) []Alert {
	snap := s.Snapshot()
	var firing []Alert
	for _, rule := range rules {
		if a := rule.Evaluate(snap); a != nil {
			firing = append(firing, *a)
		}
	}
	return firing
}
