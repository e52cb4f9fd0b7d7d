package domain

import (
	"fmt"
	"strings"
)

// Intent classifies the kind of answer the caller wants from the boss.
type Intent string

const (
	IntentDesign   Intent = "design"
	IntentImplPlan Intent = "impl_plan"
	IntentRisk     Intent = "risk"
	IntentQA       Intent = "qa"
)

// DefaultIntent is used when the caller does not pick one.
const DefaultIntent = IntentImplPlan

func Intents() []Intent {
	return []Intent{IntentDesign, IntentImplPlan, IntentRisk, IntentQA}
}

func (i Intent) Valid() bool {
	switch i {
	case IntentDesign, IntentImplPlan, IntentRisk, IntentQA:
		return true
	}
	return false
}

// ParseIntent rejects anything outside the closed set.
func ParseIntent(s string) (Intent, error) {
	i := Intent(strings.TrimSpace(s))
	if !i.Valid() {
		return "", fmt.Errorf("invalid intent %q (want design|impl_plan|risk|qa)", s)
	}
	return i, nil
}

// AskPayload is the request body for POST /ask. Built immediately before
// submission and never mutated after.
type AskPayload struct {
	Question           string   `json:"question" minLength:"1"`
	Intent             Intent   `json:"intent" enum:"design,impl_plan,risk,qa"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

func (p AskPayload) Validate() error {
	if strings.TrimSpace(p.Question) == "" {
		return fmt.Errorf("question required")
	}
	if !p.Intent.Valid() {
		return fmt.Errorf("invalid intent %q", string(p.Intent))
	}
	seen := make(map[string]struct{}, len(p.AcceptanceCriteria))
	for _, c := range p.AcceptanceCriteria {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("acceptance criteria must be non-empty")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate acceptance criterion %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// TypeResponse is the literal carried by every OwnerResponse.
const TypeResponse = "RESPONSE"

type Finding struct {
	Area    string         `json:"area"`
	Summary string         `json:"summary"`
	Details map[string]any `json:"details,omitempty"`
}

// OwnerResponse is one domain agent's answer to a task. Owned by the
// backend, received read-only.
type OwnerResponse struct {
	Type        string           `json:"type"`
	TaskID      string           `json:"task_id"`
	Owner       string           `json:"owner"`
	Coverage    []string         `json:"coverage"`
	Findings    []Finding        `json:"findings"`
	Gaps        []string         `json:"gaps"`
	NextActions []map[string]any `json:"next_actions"`
	Confidence  float64          `json:"confidence" minimum:"0" maximum:"1"`
}

// SynthesizedAnswer is the merged result for one submission. It replaces
// any prior answer in client state and is never mutated after receipt.
type SynthesizedAnswer struct {
	TaskID         string                   `json:"task_id"`
	MergedCoverage []string                 `json:"merged_coverage"`
	Gaps           []string                 `json:"gaps"`
	Summary        string                   `json:"summary"`
	ByOwner        map[string]OwnerResponse `json:"by_owner"`
}

// ConnectionStatus reflects the outcome of the most recent owners fetch.
// The ask operation never sets it.
type ConnectionStatus string

const (
	StatusIdle ConnectionStatus = "idle"
	StatusOK   ConnectionStatus = "ok"
	StatusFail ConnectionStatus = "fail"
)
