// Package selftest drives the API client and criteria logic through
// deterministic in-memory transports and reports named pass/fail results.
// No scenario reaches a real network.
package selftest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"bossline/internal/boss"
	"bossline/internal/criteria"
	"bossline/internal/domain"
	"bossline/internal/session"
	"bossline/internal/transport"
)

// OKTransport returns a transport double reporting success, with data
// serialized as both the structured and the raw-text body.
func OKTransport(data any) transport.Func {
	return func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return &transport.Response{Status: http.StatusOK, StatusText: "OK", Body: b}, nil
	}
}

// FailTransport returns a transport double reporting failure with an
// empty body.
func FailTransport(status int, statusText string) transport.Func {
	return func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		return &transport.Response{Status: status, StatusText: statusText}, nil
	}
}

// Result is one named scenario outcome.
type Result struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return true
		}
	}
	return false
}

type scenario struct {
	name string
	run  func(ctx context.Context) error
}

// Run executes every scenario in order and never stops early.
func Run(ctx context.Context) []Result {
	scenarios := []scenario{
		{"owners default", ownersDefault},
		{"owners list", ownersList},
		{"owners failure", ownersFailure},
		{"ask shape", askShape},
		{"ask failure detail", askFailureDetail},
		{"criteria dedup", criteriaDedup},
		{"criteria union", criteriaUnion},
		{"single flight", singleFlight},
	}
	results := make([]Result, 0, len(scenarios))
	for _, sc := range scenarios {
		res := Result{Name: sc.name, Pass: true}
		if err := sc.run(ctx); err != nil {
			res.Pass = false
			res.Detail = err.Error()
		}
		results = append(results, res)
	}
	return results
}

func newClient(fn transport.Func) *boss.Client {
	return &boss.Client{
		APIBase:   "http://selftest.invalid",
		Transport: fn,
		Now:       func() time.Time { return time.Unix(1700000000, 0).UTC() },
	}
}

func ownersDefault(ctx context.Context) error {
	c := newClient(OKTransport(map[string]any{"ok": true}))
	owners, err := c.FetchOwners(ctx)
	if err != nil {
		return fmt.Errorf("missing owners field must not fail: %w", err)
	}
	if owners == nil || len(owners) != 0 {
		return fmt.Errorf("want empty list, got %v", owners)
	}
	return nil
}

func ownersList(ctx context.Context) error {
	want := []string{"frontend-ecommerce", "backend-ecommerce"}
	c := newClient(OKTransport(map[string]any{"owners": want}))
	owners, err := c.FetchOwners(ctx)
	if err != nil {
		return err
	}
	if !eqStrings(owners, want) {
		return fmt.Errorf("want %v, got %v", want, owners)
	}
	return nil
}

func ownersFailure(ctx context.Context) error {
	c := newClient(FailTransport(http.StatusNotFound, "Not Found"))
	_, err := c.FetchOwners(ctx)
	if err == nil {
		return fmt.Errorf("404 was swallowed")
	}
	var reqErr *boss.RequestError
	if !errors.As(err, &reqErr) {
		return fmt.Errorf("unexpected error type %T: %v", err, err)
	}
	if reqErr.Status != http.StatusNotFound || reqErr.StatusText != "Not Found" {
		return fmt.Errorf("status not carried: %+v", reqErr)
	}
	return nil
}

func askShape(ctx context.Context) error {
	supplied := domain.OwnerResponse{
		Type:        domain.TypeResponse,
		TaskID:      "t1",
		Owner:       "frontend-ecommerce",
		Coverage:    []string{"design"},
		Findings:    []domain.Finding{{Area: "ui", Summary: "Add admin form"}},
		Gaps:        []string{},
		NextActions: []map[string]any{{"owner": "FE"}},
		Confidence:  0.62,
	}
	canned := domain.SynthesizedAnswer{
		TaskID:         "t1",
		MergedCoverage: []string{"api", "design"},
		Gaps:           []string{},
		Summary:        "plan",
		ByOwner:        map[string]domain.OwnerResponse{"frontend-ecommerce": supplied},
	}
	c := newClient(OKTransport(canned))
	answer, err := c.Ask(ctx, domain.AskPayload{
		Question:           "Add an admin product form",
		Intent:             domain.IntentImplPlan,
		AcceptanceCriteria: []string{"a11y", "stacking"},
	})
	if err != nil {
		return err
	}
	if answer.TaskID != "t1" {
		return fmt.Errorf("task_id: %q", answer.TaskID)
	}
	if !eqStrings(answer.MergedCoverage, []string{"api", "design"}) {
		return fmt.Errorf("merged_coverage: %v", answer.MergedCoverage)
	}
	got, ok := answer.ByOwner["frontend-ecommerce"]
	if !ok {
		return fmt.Errorf("by_owner lost frontend-ecommerce: %v", answer.ByOwner)
	}
	if got.Type != supplied.Type || got.TaskID != supplied.TaskID || got.Owner != supplied.Owner {
		return fmt.Errorf("owner identity: %+v", got)
	}
	if !eqStrings(got.Coverage, supplied.Coverage) || got.Confidence != supplied.Confidence {
		return fmt.Errorf("owner fields: %+v", got)
	}
	if len(got.Findings) != 1 || got.Findings[0].Area != "ui" || got.Findings[0].Summary != "Add admin form" {
		return fmt.Errorf("findings: %+v", got.Findings)
	}
	return nil
}

func askFailureDetail(ctx context.Context) error {
	raw := `{"detail":"owner backend-ecommerce crashed"}`
	fn := func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		return &transport.Response{
			Status:     http.StatusInternalServerError,
			StatusText: "Internal Server Error",
			Body:       []byte(raw),
		}, nil
	}
	c := newClient(fn)
	_, err := c.Ask(ctx, domain.AskPayload{Question: "Add an admin product form", Intent: domain.IntentQA})
	if err == nil {
		return fmt.Errorf("failure was swallowed")
	}
	if err.Error() != raw {
		return fmt.Errorf("raw text not verbatim: %q", err.Error())
	}
	return nil
}

func criteriaDedup(ctx context.Context) error {
	set := []string{"a11y"}
	set = criteria.Add(set, "a11y")
	set = criteria.Add(set, "stacking")
	if !eqStrings(set, []string{"a11y", "stacking"}) {
		return fmt.Errorf("got %v", set)
	}
	return nil
}

func criteriaUnion(ctx context.Context) error {
	got := criteria.Union([]string{"a11y", "a11y"}, []string{"stacking", "a11y"})
	if !eqStrings(got, []string{"a11y", "stacking"}) {
		return fmt.Errorf("got %v", got)
	}
	return nil
}

func singleFlight(ctx context.Context) error {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var calls atomic.Int32
	answer := domain.SynthesizedAnswer{TaskID: "t1"}
	fn := func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		b, _ := json.Marshal(answer)
		return &transport.Response{Status: http.StatusOK, StatusText: "OK", Body: b}, nil
	}
	s := session.New(newClient(fn), nil)

	done := make(chan error, 1)
	go func() {
		_, err := s.Ask(ctx, session.AskOptions{Question: "Add an admin product form"})
		done <- err
	}()
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		close(release)
		return fmt.Errorf("first ask never reached the transport")
	}

	_, err := s.Ask(ctx, session.AskOptions{Question: "Add a checkout flow now"})
	if !errors.Is(err, session.ErrAskInFlight) {
		close(release)
		return fmt.Errorf("second ask not rejected: %v", err)
	}
	if n := calls.Load(); n != 1 {
		close(release)
		return fmt.Errorf("transport called %d times during flight", n)
	}

	close(release)
	if err := <-done; err != nil {
		return fmt.Errorf("first ask: %w", err)
	}
	if n := calls.Load(); n != 1 {
		return fmt.Errorf("transport calls after release: %d", n)
	}
	return nil
}

func eqStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
