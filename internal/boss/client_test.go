package boss_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"bossline/internal/boss"
	"bossline/internal/domain"
	"bossline/internal/transport"
)

func fixedNow() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

func okTransport(t *testing.T, body string, seen *transport.Request) transport.Func {
	t.Helper()
	return func(ctx context.Context, req transport.Request) (*transport.Response, error) {
		if seen != nil {
			*seen = req
		}
		return &transport.Response{Status: http.StatusOK, StatusText: "OK", Body: []byte(body)}, nil
	}
}

func TestFetchOwnersList(t *testing.T) {
	var seen transport.Request
	c := &boss.Client{
		APIBase:   "http://boss.local",
		Transport: okTransport(t, `{"owners":["frontend-ecommerce","backend-ecommerce"]}`, &seen),
		Now:       fixedNow,
	}
	owners, err := c.FetchOwners(context.Background())
	if err != nil {
		t.Fatalf("fetch owners: %v", err)
	}
	want := []string{"frontend-ecommerce", "backend-ecommerce"}
	if !reflect.DeepEqual(owners, want) {
		t.Fatalf("owners: %v", owners)
	}
	if seen.Method != http.MethodGet {
		t.Fatalf("method: %s", seen.Method)
	}
	wantURL := "http://boss.local/owners?ts=1700000000000"
	if seen.URL != wantURL {
		t.Fatalf("url: %s", seen.URL)
	}
}

func TestFetchOwnersMissingFieldDefaultsEmpty(t *testing.T) {
	c := &boss.Client{
		APIBase:   "http://boss.local",
		Transport: okTransport(t, `{"ok":true}`, nil),
		Now:       fixedNow,
	}
	owners, err := c.FetchOwners(context.Background())
	if err != nil {
		t.Fatalf("fetch owners: %v", err)
	}
	if owners == nil || len(owners) != 0 {
		t.Fatalf("want empty list, got %#v", owners)
	}
}

func TestFetchOwnersFailurePropagates(t *testing.T) {
	c := &boss.Client{
		APIBase: "http://boss.local",
		Transport: func(ctx context.Context, req transport.Request) (*transport.Response, error) {
			return &transport.Response{Status: http.StatusNotFound, StatusText: "Not Found"}, nil
		},
		Now: fixedNow,
	}
	_, err := c.FetchOwners(context.Background())
	if err == nil {
		t.Fatalf("404 swallowed")
	}
	var reqErr *boss.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type: %T", err)
	}
	if reqErr.Status != http.StatusNotFound || reqErr.StatusText != "Not Found" {
		t.Fatalf("status meta: %+v", reqErr)
	}
}

func askFixture() string {
	return `{
		"task_id": "t1",
		"merged_coverage": ["api", "design"],
		"gaps": [],
		"summary": "Plan for intent impl_plan.",
		"by_owner": {
			"frontend-ecommerce": {
				"type": "RESPONSE",
				"task_id": "t1",
				"owner": "frontend-ecommerce",
				"coverage": ["design"],
				"findings": [{"area": "ui", "summary": "Add admin form"}],
				"gaps": [],
				"next_actions": [{"owner": "FE", "steps": ["scaffold form"]}],
				"confidence": 0.62
			}
		}
	}`
}

func TestAskShape(t *testing.T) {
	var seen transport.Request
	c := &boss.Client{
		APIBase:   "http://boss.local/",
		Transport: okTransport(t, askFixture(), &seen),
		Now:       fixedNow,
	}
	payload := domain.AskPayload{
		Question:           "Add an admin product form",
		Intent:             domain.IntentImplPlan,
		AcceptanceCriteria: []string{"a11y", "stacking"},
	}
	answer, err := c.Ask(context.Background(), payload)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer.TaskID != "t1" {
		t.Fatalf("task_id: %s", answer.TaskID)
	}
	if !reflect.DeepEqual(answer.MergedCoverage, []string{"api", "design"}) {
		t.Fatalf("merged_coverage: %v", answer.MergedCoverage)
	}
	fe, ok := answer.ByOwner["frontend-ecommerce"]
	if !ok {
		t.Fatalf("by_owner missing frontend-ecommerce: %v", answer.ByOwner)
	}
	if fe.Type != domain.TypeResponse || fe.TaskID != "t1" || fe.Confidence != 0.62 {
		t.Fatalf("owner response: %+v", fe)
	}

	// request side
	if seen.Method != http.MethodPost || seen.URL != "http://boss.local/ask" {
		t.Fatalf("request: %s %s", seen.Method, seen.URL)
	}
	if ct := seen.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type: %s", ct)
	}
	var sent domain.AskPayload
	if err := json.Unmarshal(seen.Body, &sent); err != nil {
		t.Fatalf("sent body: %v", err)
	}
	if !reflect.DeepEqual(sent, payload) {
		t.Fatalf("sent payload: %+v", sent)
	}
}

func TestAskFailureCarriesRawText(t *testing.T) {
	raw := `{"detail":"owner frontend-ecommerce timed out"}`
	c := &boss.Client{
		APIBase: "http://boss.local",
		Transport: func(ctx context.Context, req transport.Request) (*transport.Response, error) {
			return &transport.Response{Status: http.StatusBadGateway, StatusText: "Bad Gateway", Body: []byte(raw)}, nil
		},
		Now: fixedNow,
	}
	_, err := c.Ask(context.Background(), domain.AskPayload{Question: "q", Intent: domain.IntentQA})
	if err == nil {
		t.Fatalf("failure swallowed")
	}
	var reqErr *boss.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error type: %T", err)
	}
	if reqErr.Error() != raw {
		t.Fatalf("raw text not surfaced verbatim: %q", reqErr.Error())
	}
	if reqErr.Status != http.StatusBadGateway {
		t.Fatalf("status: %d", reqErr.Status)
	}
}

func TestAskMissingFieldsDecodeToZeroValues(t *testing.T) {
	c := &boss.Client{
		APIBase:   "http://boss.local",
		Transport: okTransport(t, `{"summary":"partial"}`, nil),
		Now:       fixedNow,
	}
	answer, err := c.Ask(context.Background(), domain.AskPayload{Question: "q", Intent: domain.IntentQA})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if answer.TaskID != "" || answer.ByOwner != nil || answer.Summary != "partial" {
		t.Fatalf("decoded answer: %+v", answer)
	}
}

func TestClientAgainstHTTPServer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/owners":
			if r.URL.Query().Get("ts") == "" {
				t.Errorf("missing cache buster")
			}
			w.Write([]byte(`{"owners":["frontend-ecommerce"]}`))
		case "/ask":
			if ct := r.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content type: %s", ct)
			}
			w.Write([]byte(askFixture()))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	c := boss.New(ts.URL)
	c.Transport = transport.HTTP(ts.Client())

	owners, err := c.FetchOwners(context.Background())
	if err != nil || len(owners) != 1 {
		t.Fatalf("owners over http: %v %v", owners, err)
	}
	answer, err := c.Ask(context.Background(), domain.AskPayload{
		Question: "Add an admin product form",
		Intent:   domain.IntentImplPlan,
	})
	if err != nil || answer.TaskID != "t1" {
		t.Fatalf("ask over http: %+v %v", answer, err)
	}
}
