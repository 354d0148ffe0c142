package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"pairstake/internal/domain"
)

const sessionColumns = "id, owner_id, stake_cents, theme, layout, moves_budget, time_budget_seconds, status, reveal_a, reveal_b, matched, matched_pairs, moves_used, locked_until, win_cents, settled, version, created_at, updated_at"

// Create stores a new active session. The partial unique index on
// (owner_id) WHERE status='active' turns a concurrent double-start into a
// constraint violation, which surfaces as ErrActiveSessionExists.
func (d *DB) Create(ctx context.Context, s *domain.GameSession) error {
	layoutJSON, err := json.Marshal(s.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}

	s.Version = 1
	_, err = d.sql.ExecContext(ctx,
		"INSERT INTO game_sessions ("+sessionColumns+") VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)",
		s.ID, s.OwnerID, s.StakeCents, s.Theme, string(layoutJSON), s.MovesBudget,
		int(s.TimeBudget/time.Second), string(s.Status), s.RevealA, s.RevealB,
		int64(s.Matched), s.MatchedPairs, s.MovesUsed, s.LockedUntil.UTC(),
		s.WinCents, s.Settled, s.Version, s.CreatedAt.UTC(), s.UpdatedAt.UTC(),
	)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return domain.ErrActiveSessionExists
	}
	return err
}

// Get returns the session by ID, or nil if it does not exist.
func (d *DB) Get(ctx context.Context, id string) (*domain.GameSession, error) {
	row := d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM game_sessions WHERE id = $1", id)
	return scanSession(row)
}

// ActiveByOwner returns the owner's active session, or nil.
func (d *DB) ActiveByOwner(ctx context.Context, ownerID int64) (*domain.GameSession, error) {
	row := d.sql.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM game_sessions WHERE owner_id = $1 AND status = 'active'", ownerID)
	return scanSession(row)
}

// Update persists progress and status with a compare-and-swap on version,
// so the finalize-exactly-once and progress invariants hold with multiple
// server processes.
func (d *DB) Update(ctx context.Context, s *domain.GameSession) error {
	res, err := d.sql.ExecContext(ctx,
		`UPDATE game_sessions SET status=$1, reveal_a=$2, reveal_b=$3, matched=$4,
		 matched_pairs=$5, moves_used=$6, locked_until=$7, win_cents=$8, settled=$9,
		 version=version+1, updated_at=$10
		 WHERE id=$11 AND version=$12`,
		string(s.Status), s.RevealA, s.RevealB, int64(s.Matched),
		s.MatchedPairs, s.MovesUsed, s.LockedUntil.UTC(), s.WinCents, s.Settled,
		s.UpdatedAt.UTC(), s.ID, s.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrVersionConflict
	}
	s.Version++
	return nil
}

// ListExpiredActive returns active sessions whose time budget elapsed
// before now, up to limit.
func (d *DB) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]domain.GameSession, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM game_sessions WHERE status = 'active' AND created_at + make_interval(secs => time_budget_seconds) <= $1 ORDER BY created_at LIMIT $2",
		now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.GameSession, 0, limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Append adds a move to the audit trail.
func (d *DB) Append(ctx context.Context, m domain.Move) (int64, error) {
	var id int64
	clientAt := m.ClientAt
	if clientAt.IsZero() {
		clientAt = time.Now()
	}
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO moves(session_id, position, source, client_at, created_at) VALUES($1, $2, $3, $4, $5) RETURNING id;",
		m.SessionID, m.Position, m.Source, clientAt.UTC(), time.Now().UTC(),
	).Scan(&id)
	return id, err
}

// ListBySession returns a session's moves, oldest first, up to limit.
func (d *DB) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Move, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, session_id, position, source, client_at, created_at FROM moves WHERE session_id=$1 ORDER BY id LIMIT $2;",
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := make([]domain.Move, 0, limit)
	for rows.Next() {
		var m domain.Move
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Position, &m.Source, &m.ClientAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.GameSession, error) {
	var (
		s           domain.GameSession
		layoutJSON  string
		budgetSecs  int
		status      string
		matchedBits int64
	)
	err := row.Scan(&s.ID, &s.OwnerID, &s.StakeCents, &s.Theme, &layoutJSON,
		&s.MovesBudget, &budgetSecs, &status, &s.RevealA, &s.RevealB,
		&matchedBits, &s.MatchedPairs, &s.MovesUsed, &s.LockedUntil,
		&s.WinCents, &s.Settled, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(layoutJSON), &s.Layout); err != nil {
		return nil, fmt.Errorf("unmarshal layout: %w", err)
	}
	s.TimeBudget = time.Duration(budgetSecs) * time.Second
	s.Status = domain.SessionStatus(status)
	s.Matched = uint32(matchedBits)
	return &s, nil
}
