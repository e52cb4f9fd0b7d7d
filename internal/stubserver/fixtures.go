package stubserver

import (
	"fmt"
	"strings"

	"bossline/internal/domain"
)

// OwnersResponse is the body of GET /owners.
type OwnersResponse struct {
	Owners []string `json:"owners"`
}

const (
	ownerFrontend = "frontend-ecommerce"
	ownerBackend  = "backend-ecommerce"
)

// Every served owner reports the same confidence, kept away from the
// schema default of 0.5 so decode bugs show up in clients.
const ownerConfidence = 0.62

// Owners returns the registered owner names in registration order.
func Owners() []string {
	return []string{ownerFrontend, ownerBackend}
}

// Synthesize builds the answer for one ask from the canned owner material.
// merged_coverage and gaps are unions in first-seen order; by_owner keys
// equal each response's owner and every task_id matches.
func Synthesize(taskID string, payload domain.AskPayload) domain.SynthesizedAnswer {
	responses := []domain.OwnerResponse{
		frontendResponse(taskID, payload),
		backendResponse(taskID, payload),
	}

	merged := []string{}
	gaps := []string{}
	names := make([]string, 0, len(responses))
	byOwner := make(map[string]domain.OwnerResponse, len(responses))
	for _, r := range responses {
		merged = appendNew(merged, r.Coverage...)
		gaps = appendNew(gaps, r.Gaps...)
		names = append(names, r.Owner)
		byOwner[r.Owner] = r
	}

	return domain.SynthesizedAnswer{
		TaskID:         taskID,
		MergedCoverage: merged,
		Gaps:           gaps,
		Summary: fmt.Sprintf("Intent %s answered by %s.",
			payload.Intent, strings.Join(names, ", ")),
		ByOwner: byOwner,
	}
}

func frontendResponse(taskID string, payload domain.AskPayload) domain.OwnerResponse {
	gaps := []string{}
	if !criteriaMention(payload.AcceptanceCriteria, "a11y") {
		gaps = append(gaps, "accessibility review not explicitly covered")
	}
	return domain.OwnerResponse{
		Type:     domain.TypeResponse,
		TaskID:   taskID,
		Owner:    ownerFrontend,
		Coverage: []string{"design", "events", "cache"},
		Findings: []domain.Finding{
			{
				Area:    "ui",
				Summary: "Add admin form for the requested flow",
				Details: map[string]any{
					"components": []any{"AdminForm", "ItemRow", "StatusBadge"},
					"routes":     []any{"/admin/new"},
				},
			},
			{Area: "tests", Summary: "End-to-end flow: create then activate"},
		},
		Gaps: gaps,
		NextActions: []map[string]any{
			{"owner": "FE", "steps": []any{"scaffold form", "wire client", "add tests"}},
		},
		Confidence: ownerConfidence,
	}
}

func backendResponse(taskID string, payload domain.AskPayload) domain.OwnerResponse {
	gaps := []string{}
	for _, c := range payload.AcceptanceCriteria {
		lowered := strings.ToLower(c)
		if !strings.Contains(lowered, "a11y") && !strings.Contains(lowered, "stack") {
			gaps = append(gaps, "uncovered: "+c)
		}
	}
	return domain.OwnerResponse{
		Type:     domain.TypeResponse,
		TaskID:   taskID,
		Owner:    ownerBackend,
		Coverage: []string{"api", "data_model", "tests"},
		Findings: []domain.Finding{
			{
				Area:    "api",
				Summary: "New endpoints for the requested flow",
				Details: map[string]any{
					"endpoints": []any{
						"POST /items",
						"GET /items/{id}",
						"PATCH /items/{id}",
					},
				},
			},
			{Area: "data_model", Summary: "Tables for the new entities"},
		},
		Gaps: gaps,
		NextActions: []map[string]any{
			{"owner": "BE", "steps": []any{"write migrations", "implement service", "publish events"}},
		},
		Confidence: ownerConfidence,
	}
}

func criteriaMention(criteria []string, needle string) bool {
	for _, c := range criteria {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	return false
}

func appendNew(dst []string, values ...string) []string {
	for _, v := range values {
		seen := false
		for _, existing := range dst {
			if existing == v {
				seen = true
				break
			}
		}
		if !seen {
			dst = append(dst, v)
		}
	}
	return dst
}
