package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"bossline/internal/boss"
	"bossline/internal/criteria"
	"bossline/internal/domain"
	"bossline/internal/history"
)

// MinQuestionLen is the shortest question accepted for submission.
const MinQuestionLen = 8

var (
	ErrAskInFlight      = errors.New("ask already in flight")
	ErrQuestionTooShort = fmt.Errorf("question must be at least %d characters", MinQuestionLen)
)

// Session coordinates client state around the boss API: the connection
// status derived from owners fetches, the single-flight ask guard, the
// latest answer, and the journal of submissions.
type Session struct {
	Client *boss.Client
	Store  *history.Store // nil disables persistence
	Keep   int            // journal entries kept after each ask; 0 keeps all
	Now    func() time.Time

	mu     sync.Mutex
	asking bool
	status domain.ConnectionStatus
	owners []string
	last   *domain.SynthesizedAnswer
}

func New(client *boss.Client, store *history.Store) *Session {
	return &Session{
		Client: client,
		Store:  store,
		Now:    time.Now,
		status: domain.StatusIdle,
	}
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Status returns the connection status. Only RefreshOwners changes it.
func (s *Session) Status() domain.ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "" {
		return domain.StatusIdle
	}
	return s.status
}

// Owners returns the owner list from the most recent successful refresh.
func (s *Session) Owners() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.owners...)
}

// LastAnswer returns the answer of the most recent successful ask.
func (s *Session) LastAnswer() *domain.SynthesizedAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	answer := *s.last
	return &answer
}

// RefreshOwners fetches the owner list and derives the connection status
// from the outcome. The fetch error, if any, is returned unswallowed.
func (s *Session) RefreshOwners(ctx context.Context) ([]string, error) {
	owners, err := s.Client.FetchOwners(ctx)
	s.mu.Lock()
	if err != nil {
		s.status = domain.StatusFail
	} else {
		s.status = domain.StatusOK
		s.owners = owners
	}
	status := s.status
	s.mu.Unlock()
	if s.Store != nil {
		if stateErr := s.persistStatus(ctx, status); stateErr != nil && err == nil {
			err = fmt.Errorf("persist status: %w", stateErr)
		}
	}
	return owners, err
}

func (s *Session) persistStatus(ctx context.Context, status domain.ConnectionStatus) error {
	if err := s.Store.SetState(ctx, history.StateConnectionStatus, string(status)); err != nil {
		return err
	}
	return s.Store.SetState(ctx, history.StateLastCheckedAt, s.now().UTC().Format(time.RFC3339))
}

// AskOptions are parameters for one submission.
type AskOptions struct {
	Question string
	Intent   domain.Intent // empty picks the default
	Criteria []string
}

// Ask validates locally, builds the payload, submits it, then updates
// state and the journal, strictly in that order. A second call while one
// is outstanding returns ErrAskInFlight before any transport work. The
// in-flight flag clears on success and failure alike. The connection
// status is never touched here.
func (s *Session) Ask(ctx context.Context, opts AskOptions) (domain.SynthesizedAnswer, error) {
	question := strings.TrimSpace(opts.Question)
	if utf8.RuneCountInString(question) < MinQuestionLen {
		return domain.SynthesizedAnswer{}, ErrQuestionTooShort
	}
	intent := opts.Intent
	if intent == "" {
		intent = domain.DefaultIntent
	}
	if !intent.Valid() {
		return domain.SynthesizedAnswer{}, fmt.Errorf("invalid intent %q", string(intent))
	}

	if err := s.begin(); err != nil {
		return domain.SynthesizedAnswer{}, err
	}
	defer s.end()

	payload := domain.AskPayload{
		Question:           question,
		Intent:             intent,
		AcceptanceCriteria: criteria.Union(nil, opts.Criteria),
	}
	if err := payload.Validate(); err != nil {
		return domain.SynthesizedAnswer{}, err
	}

	started := s.now()
	answer, err := s.Client.Ask(ctx, payload)
	durationMS := s.now().Sub(started).Milliseconds()
	if err != nil {
		if recErr := s.record(ctx, payload, domain.SynthesizedAnswer{}, err, durationMS); recErr != nil {
			return domain.SynthesizedAnswer{}, errors.Join(err, recErr)
		}
		return domain.SynthesizedAnswer{}, err
	}

	s.mu.Lock()
	s.last = &answer
	s.mu.Unlock()

	if err := s.record(ctx, payload, answer, nil, durationMS); err != nil {
		return domain.SynthesizedAnswer{}, fmt.Errorf("record ask: %w", err)
	}
	return answer, nil
}

func (s *Session) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.asking {
		return ErrAskInFlight
	}
	s.asking = true
	return nil
}

func (s *Session) end() {
	s.mu.Lock()
	s.asking = false
	s.mu.Unlock()
}

func (s *Session) record(ctx context.Context, payload domain.AskPayload, answer domain.SynthesizedAnswer, askErr error, durationMS int64) error {
	if s.Store == nil {
		return nil
	}
	rec := history.AskRecord{
		Question:   payload.Question,
		Intent:     payload.Intent,
		Criteria:   payload.AcceptanceCriteria,
		DurationMS: durationMS,
	}
	if askErr != nil {
		rec.Status = history.AskFail
		rec.Error = askErr.Error()
	} else {
		rec.Status = history.AskOK
		rec.TaskID = answer.TaskID
		a := answer
		rec.Answer = &a
	}
	if _, err := s.Store.RecordAsk(ctx, rec); err != nil {
		return err
	}
	if askErr == nil && answer.TaskID != "" {
		if err := s.Store.SetState(ctx, history.StateLastTaskID, answer.TaskID); err != nil {
			return err
		}
	}
	return s.Store.Prune(ctx, s.Keep)
}
