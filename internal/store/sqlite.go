package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/MJE43/berghain-runner-go/internal/berghain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store wraps the SQLite database holding attempts and decisions.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database at path and applies migrations.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}
	return nil
}

// SaveAttempt records an attempt and its decisions in one transaction.
// The attempt number is assigned here, one past the highest stored for the
// game, and the returned copy carries the assigned ID and number.
func (s *Store) SaveAttempt(ctx context.Context, a Attempt, decisions []Decision) (Attempt, error) {
	if a.GameID == "" {
		return Attempt{}, errors.New("store: attempt game id required")
	}
	counts := a.Counts
	if counts == nil {
		counts = map[string]int{}
	}
	countsJSON, err := json.Marshal(counts)
	if err != nil {
		return Attempt{}, fmt.Errorf("store: encode attribute counts: %w", err)
	}
	constraintsJSON, err := json.Marshal(a.Constraints)
	if err != nil {
		return Attempt{}, fmt.Errorf("store: encode constraints: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Attempt{}, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(attempt_number), 0) + 1 FROM attempts WHERE game_id = ?`,
		a.GameID).Scan(&a.AttemptNumber); err != nil {
		return Attempt{}, fmt.Errorf("store: next attempt number: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO attempts(
			game_id, attempt_number, scenario_id, status, admitted_count, rejected_count,
			attribute_counts, constraints_json, reason, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.GameID, a.AttemptNumber, a.ScenarioID, string(a.Status), a.Admitted, a.Rejected,
		string(countsJSON), string(constraintsJSON), a.Reason, a.StartedAt.UTC(), a.FinishedAt.UTC())
	if err != nil {
		return Attempt{}, fmt.Errorf("store: insert attempt: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return Attempt{}, fmt.Errorf("store: attempt id: %w", err)
	}

	if len(decisions) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO decisions(
				attempt_id, person_index, attributes, accepted,
				admitted_before, rejected_before, admitted_after, rejected_after
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return Attempt{}, fmt.Errorf("store: prepare decision insert: %w", err)
		}
		defer stmt.Close()
		for _, d := range decisions {
			attrsJSON, err := json.Marshal(d.Attributes)
			if err != nil {
				return Attempt{}, fmt.Errorf("store: encode attributes for person %d: %w", d.PersonIndex, err)
			}
			if _, err := stmt.ExecContext(ctx,
				a.ID, d.PersonIndex, string(attrsJSON), d.Accepted,
				d.AdmittedBefore, d.RejectedBefore, d.AdmittedAfter, d.RejectedAfter); err != nil {
				return Attempt{}, fmt.Errorf("store: insert decision %d: %w", d.PersonIndex, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Attempt{}, fmt.Errorf("store: commit attempt: %w", err)
	}
	return a, nil
}

// ListAttempts returns every stored attempt for a game in attempt order.
func (s *Store) ListAttempts(ctx context.Context, gameID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game_id, attempt_number, scenario_id, status, admitted_count, rejected_count,
		       attribute_counts, constraints_json, reason, started_at, finished_at
		FROM attempts
		WHERE game_id = ?
		ORDER BY attempt_number ASC`, gameID)
	if err != nil {
		return nil, fmt.Errorf("store: list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var countsJSON, constraintsJSON string
		if err := rows.Scan(&a.ID, &a.GameID, &a.AttemptNumber, &a.ScenarioID, &a.Status,
			&a.Admitted, &a.Rejected, &countsJSON, &constraintsJSON, &a.Reason,
			&a.StartedAt, &a.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scan attempt: %w", err)
		}
		if err := decodeAttempt(&a, countsJSON, constraintsJSON); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func decodeAttempt(a *Attempt, countsJSON, constraintsJSON string) error {
	if countsJSON != "" {
		if err := json.Unmarshal([]byte(countsJSON), &a.Counts); err != nil {
			return fmt.Errorf("store: decode attribute counts for attempt %d: %w", a.ID, err)
		}
	}
	if constraintsJSON != "" {
		if err := json.Unmarshal([]byte(constraintsJSON), &a.Constraints); err != nil {
			return fmt.Errorf("store: decode constraints for attempt %d: %w", a.ID, err)
		}
	}
	return nil
}

// Decisions returns the decision history of an attempt in arrival order.
func (s *Store) Decisions(ctx context.Context, attemptID int64) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempt_id, person_index, attributes, accepted,
		       admitted_before, rejected_before, admitted_after, rejected_after
		FROM decisions
		WHERE attempt_id = ?
		ORDER BY person_index ASC`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("store: list decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var attrsJSON string
		if err := rows.Scan(&d.ID, &d.AttemptID, &d.PersonIndex, &attrsJSON, &d.Accepted,
			&d.AdmittedBefore, &d.RejectedBefore, &d.AdmittedAfter, &d.RejectedAfter); err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		if attrsJSON != "" {
			if err := json.Unmarshal([]byte(attrsJSON), &d.Attributes); err != nil {
				return nil, fmt.Errorf("store: decode attributes for decision %d: %w", d.ID, err)
			}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Leaderboard returns completed attempts ranked by fewest rejections.
// scenarioID 0 means all scenarios.
func (s *Store) Leaderboard(ctx context.Context, scenarioID, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	where := "status = ?"
	args := []any{string(berghain.StatusCompleted)}
	if scenarioID > 0 {
		where += " AND scenario_id = ?"
		args = append(args, scenarioID)
	}
	q := fmt.Sprintf(`
		SELECT game_id, scenario_id, attempt_number, status, admitted_count, rejected_count, finished_at
		FROM attempts
		WHERE %s
		ORDER BY rejected_count ASC, finished_at ASC
		LIMIT ?`, where)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: leaderboard: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// RecentAttempts returns the newest attempts across all games.
func (s *Store) RecentAttempts(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, scenario_id, attempt_number, status, admitted_count, rejected_count, finished_at
		FROM attempts
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: recent attempts: %w", err)
	}
	defer rows.Close()
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]LeaderboardRow, error) {
	var out []LeaderboardRow
	for rows.Next() {
		var r LeaderboardRow
		if err := rows.Scan(&r.GameID, &r.ScenarioID, &r.AttemptNumber, &r.Status,
			&r.Admitted, &r.Rejected, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
