// Package stubserver is a deterministic local double of the boss backend.
// It serves the fixed /owners and /ask contract from canned owner material
// and contains no orchestration logic.
package stubserver

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bossline/internal/domain"
)

// Config for the stub handler.
type Config struct {
	// NewTaskID mints task ids; nil uses random UUIDs.
	NewTaskID func() string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"question is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope for handler failures.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// New returns an HTTP handler exposing the stub boss contract.
func New(cfg Config) (http.Handler, error) {
	newTaskID := cfg.NewTaskID
	if newTaskID == nil {
		newTaskID = uuid.NewString
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(requestLog)
	hcfg := huma.DefaultConfig("Bossline Stub Boss", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)

	registerOwners(api)
	registerAsk(api, newTaskID)

	return router, nil
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}

func registerOwners(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-owners",
		Method:      http.MethodGet,
		Path:        "/owners",
		Summary:     "List registered owner agents",
	}, func(ctx context.Context, _ *struct {
		TS string `query:"ts" doc:"cache buster, ignored"`
	}) (*struct {
		Body OwnersResponse `json:"body"`
	}, error) {
		return &struct {
			Body OwnersResponse `json:"body"`
		}{Body: OwnersResponse{Owners: Owners()}}, nil
	})
}

func registerAsk(api huma.API, newTaskID func() string) {
	huma.Register(api, huma.Operation{
		OperationID: "ask-boss",
		Method:      http.MethodPost,
		Path:        "/ask",
		Summary:     "Submit a question and receive a synthesized answer",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body domain.AskPayload `json:"body"`
	}) (*struct {
		Body domain.SynthesizedAnswer `json:"body"`
	}, error) {
		if err := input.Body.Validate(); err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
		}
		answer := Synthesize(newTaskID(), input.Body)
		return &struct {
			Body domain.SynthesizedAnswer `json:"body"`
		}{Body: answer}, nil
	})
}
