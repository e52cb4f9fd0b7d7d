package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bossline/internal/domain"
)

// Store persists the ask journal, the saved criteria set, and small
// key/value state in the workspace database.
type Store struct {
	DB  *sql.DB
	Now func() time.Time
}

var ErrNotFound = errors.New("not found")

const (
	AskOK   = "ok"
	AskFail = "fail"
)

// State keys written by the session.
const (
	StateConnectionStatus = "connection_status"
	StateLastCheckedAt    = "last_checked_at"
	StateLastTaskID       = "last_task_id"
)

// AskRecord is one journaled submission, successful or not.
type AskRecord struct {
	ID         string                    `json:"id"`
	CreatedAt  string                    `json:"created_at" format:"date-time"`
	Question   string                    `json:"question"`
	Intent     domain.Intent             `json:"intent"`
	Criteria   []string                  `json:"criteria"`
	Status     string                    `json:"status" enum:"ok,fail"`
	TaskID     string                    `json:"task_id,omitempty"`
	Answer     *domain.SynthesizedAnswer `json:"answer,omitempty"`
	Error      string                    `json:"error,omitempty"`
	DurationMS int64                     `json:"duration_ms"`
}

func (s Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// RecordAsk inserts the record, filling ID and CreatedAt when empty.
func (s Store) RecordAsk(ctx context.Context, rec AskRecord) (AskRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = s.now().UTC().Format(time.RFC3339)
	}
	if rec.Status != AskOK && rec.Status != AskFail {
		return AskRecord{}, fmt.Errorf("invalid ask status %q", rec.Status)
	}
	criteriaJSON, err := marshalStringSlice(rec.Criteria)
	if err != nil {
		return AskRecord{}, err
	}
	var answerJSON any
	if rec.Answer != nil {
		b, err := json.Marshal(rec.Answer)
		if err != nil {
			return AskRecord{}, err
		}
		answerJSON = string(b)
	}
	_, err = s.DB.ExecContext(ctx, `INSERT INTO asks(id,created_at,question,intent,criteria_json,status,task_id,answer_json,error,duration_ms)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.CreatedAt, rec.Question, string(rec.Intent), criteriaJSON, rec.Status,
		nullable(rec.TaskID), answerJSON, nullable(rec.Error), rec.DurationMS)
	if err != nil {
		return AskRecord{}, err
	}
	return rec, nil
}

// GetAsk returns one journal entry by id.
func (s Store) GetAsk(ctx context.Context, id string) (AskRecord, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id,created_at,question,intent,criteria_json,status,task_id,answer_json,error,duration_ms FROM asks WHERE id=?`, id)
	return scanAsk(row.Scan)
}

// ListAsks returns the newest entries first.
func (s Store) ListAsks(ctx context.Context, limit int) ([]AskRecord, error) {
	query := `SELECT id,created_at,question,intent,criteria_json,status,task_id,answer_json,error,duration_ms FROM asks ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []AskRecord
	for rows.Next() {
		rec, err := scanAsk(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// CountAsks returns journal totals by status.
func (s Store) CountAsks(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT status, count(*) FROM asks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

// Prune keeps the newest keep entries. keep <= 0 keeps everything.
func (s Store) Prune(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := s.DB.ExecContext(ctx, `DELETE FROM asks WHERE id NOT IN (
SELECT id FROM asks ORDER BY created_at DESC, id DESC LIMIT ?)`, keep)
	return err
}

func scanAsk(scan func(dest ...any) error) (AskRecord, error) {
	var rec AskRecord
	var intent, criteriaJSON string
	var taskID, answerJSON, askErr sql.NullString
	err := scan(&rec.ID, &rec.CreatedAt, &rec.Question, &intent, &criteriaJSON, &rec.Status, &taskID, &answerJSON, &askErr, &rec.DurationMS)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	rec.Intent = domain.Intent(intent)
	if err := json.Unmarshal([]byte(criteriaJSON), &rec.Criteria); err != nil {
		return rec, fmt.Errorf("criteria of ask %s: %w", rec.ID, err)
	}
	if taskID.Valid {
		rec.TaskID = taskID.String
	}
	if askErr.Valid {
		rec.Error = askErr.String
	}
	if answerJSON.Valid {
		var answer domain.SynthesizedAnswer
		if err := json.Unmarshal([]byte(answerJSON.String), &answer); err != nil {
			return rec, fmt.Errorf("answer of ask %s: %w", rec.ID, err)
		}
		rec.Answer = &answer
	}
	return rec, nil
}

// AddCriterion appends a trimmed value to the saved set. Blank values and
// exact duplicates are no-ops; added reports whether a row was inserted.
func (s Store) AddCriterion(ctx context.Context, value string) (bool, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return false, nil
	}
	res, err := s.DB.ExecContext(ctx, `INSERT OR IGNORE INTO criteria(value) VALUES (?)`, v)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListCriteria returns the saved set in insertion order.
func (s Store) ListCriteria(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT value FROM criteria ORDER BY position ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, rows.Err()
}

// RemoveCriterionAt drops the element at index (0-based, insertion order).
// An out-of-bounds index is a no-op and reports false.
func (s Store) RemoveCriterionAt(ctx context.Context, index int) (bool, error) {
	if index < 0 {
		return false, nil
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT position FROM criteria ORDER BY position ASC`)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	var positions []int64
	for rows.Next() {
		var p int64
		if err := rows.Scan(&p); err != nil {
			return false, err
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	if index >= len(positions) {
		return false, nil
	}
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM criteria WHERE position=?`, positions[index]); err != nil {
		return false, err
	}
	return true, nil
}

// ClearCriteria empties the saved set.
func (s Store) ClearCriteria(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM criteria`)
	return err
}

// SetState upserts one key/value pair.
func (s Store) SetState(ctx context.Context, key, value string) error {
	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.DB.ExecContext(ctx, `INSERT INTO state(key,value,updated_at) VALUES (?,?,?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`, key, value, now)
	return err
}

// GetState returns the value for key, ErrNotFound when absent.
func (s Store) GetState(ctx context.Context, key string) (string, error) {
	var v string
	err := s.DB.QueryRowContext(ctx, `SELECT value FROM state WHERE key=?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return v, err
}

func marshalStringSlice(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
