// Package transform maps raw optimizer-service payloads into local result
// records.
//
// ToResult is a pure function and never fails: malformed or missing remote
// fields simply become absent local fields. Loose typing stops here — nothing
// past the transformer sees a map[string]any payload.
package transform

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/minimahq/minima/internal/model"
	"github.com/minimahq/minima/internal/remote"
)

// ToResult converts a remote payload into a local record owned by ownerID.
//
// Lifecycle status is inferred when the payload omits it: an explicit status
// field wins; otherwise a present optimal value implies completed; otherwise
// a present error implies failed; otherwise running.
func ToResult(p remote.Payload, ownerID uuid.UUID) model.OptimizationResult {
	res := model.OptimizationResult{
		OwnerID:     ownerID,
		OperationID: firstString(p, "operation_id", "id"),
		ProblemID:   strPtr(p, "problem_id"),

		BestParams:         floatSlice(p, "best_params"),
		OptimalValue:       floatPtr(p, "optimal_value"),
		Strategy:           strPtrKeys(p, "strategy_used", "strategy"),
		EvaluationsUsed:    intPtr(p, "evaluations_used"),
		ConvergenceHistory: floatSlice(p, "convergence_history"),
		ExecutionTime:      floatPtr(p, "execution_time"),
		Iterations:         intPtr(p, "iterations"),

		ErrorMessage: strPtr(p, "error"),

		UsedMetaLearning:  boolVal(p, "used_meta_learning"),
		MetaRunsLeveraged: intPtr(p, "meta_runs_leveraged"),

		Config:   mapVal(p, "config"),
		Insights: mapVal(p, "insights"),
		Domain:   strPtr(p, "domain"),
	}

	explicit := false
	if s := firstString(p, "status"); s != "" && model.ValidRunStatus(model.RunStatus(s)) {
		res.Status = model.RunStatus(s)
		explicit = true
	} else if res.OptimalValue != nil {
		res.Status = model.RunStatusCompleted
	} else if res.ErrorMessage != nil {
		res.Status = model.RunStatusFailed
	} else {
		res.Status = model.RunStatusRunning
	}

	if b, ok := p["success"].(bool); ok {
		res.Success = b
	} else {
		res.Success = res.Status == model.RunStatusCompleted && res.ErrorMessage == nil
	}

	if t := timePtr(p, "created_at"); t != nil {
		res.CreatedAt = *t
	}
	res.CompletedAt = timePtr(p, "completed_at")
	if res.CompletedAt == nil && !explicit && res.Status == model.RunStatusCompleted {
		// Status was freshly resolved to completed and the payload carries no
		// completion timestamp.
		now := time.Now().UTC()
		res.CompletedAt = &now
	}

	return res
}

func firstString(p remote.Payload, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func strPtr(p remote.Payload, key string) *string {
	if s, ok := p[key].(string); ok && s != "" {
		return &s
	}
	return nil
}

func strPtrKeys(p remote.Payload, keys ...string) *string {
	if s := firstString(p, keys...); s != "" {
		return &s
	}
	return nil
}

func floatPtr(p remote.Payload, key string) *float64 {
	if f, ok := asFloat(p[key]); ok {
		return &f
	}
	return nil
}

func intPtr(p remote.Payload, key string) *int {
	if f, ok := asFloat(p[key]); ok {
		n := int(f)
		return &n
	}
	return nil
}

func boolVal(p remote.Payload, key string) bool {
	b, _ := p[key].(bool)
	return b
}

func floatSlice(p remote.Payload, key string) []float64 {
	raw, ok := p[key].([]any)
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := asFloat(v); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mapVal(p remote.Payload, key string) map[string]any {
	if m, ok := p[key].(map[string]any); ok && len(m) > 0 {
		return m
	}
	return nil
}

func timePtr(p remote.Payload, key string) *time.Time {
	s, ok := p[key].(string)
	if !ok {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// asFloat accepts the numeric representations JSON decoding produces.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
