// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// SessionStatus is the lifecycle state of a game session.
type SessionStatus string

const (
	// StatusActive means the session is in play and accepting flips.
	StatusActive SessionStatus = "active"
	// StatusWon means all pairs were matched within budget.
	StatusWon SessionStatus = "won"
	// StatusLost means the move budget was exhausted before all pairs matched.
	StatusLost SessionStatus = "lost"
	// StatusExpired means the time budget ran out; settled as a loss.
	StatusExpired SessionStatus = "expired"
	// StatusInvalidated means an integrity violation ended the session.
	// Invalidated sessions never pay out and cannot be resumed.
	StatusInvalidated SessionStatus = "invalidated"
)

// Terminal reports whether the status can no longer change.
func (s SessionStatus) Terminal() bool {
	return s != StatusActive
}

// NoReveal marks a reveal slot as empty.
const NoReveal = -1

// GameSession is one stake-to-settlement lifecycle of a memory game.
// Layout is server-only and must never be serialized to the client except
// through the encrypted transport; match outcomes are decided here, never
// from client-decrypted data.
type GameSession struct {
	ID          string
	OwnerID     int64
	StakeCents  int64
	Theme       string
	Layout      []int
	MovesBudget int
	TimeBudget  time.Duration
	Status      SessionStatus

	// RevealA and RevealB are the positions currently revealed but not yet
	// matched, NoReveal when empty. At most two may be set at once.
	RevealA int
	RevealB int
	// Matched is a bitmask over positions; bit i set means position i is matched.
	Matched      uint32
	MatchedPairs int
	MovesUsed    int

	// LockedUntil is the end of the brief post-pair evaluation window.
	// Pacing only; it never decides outcomes.
	LockedUntil time.Time

	WinCents int64
	Settled  bool

	// Version guards optimistic concurrency across server processes.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PairCount returns the number of pairs in the layout.
func (g *GameSession) PairCount() int {
	return len(g.Layout) / 2
}

// IsMatched reports whether the position has been matched.
func (g *GameSession) IsMatched(pos int) bool {
	return g.Matched&(1<<uint(pos)) != 0
}

// SetMatched marks a position as matched.
func (g *GameSession) SetMatched(pos int) {
	g.Matched |= 1 << uint(pos)
}

// IsRevealed reports whether the position is currently face up (revealed
// pending evaluation, or already matched).
func (g *GameSession) IsRevealed(pos int) bool {
	return pos == g.RevealA || pos == g.RevealB || g.IsMatched(pos)
}

// RevealedUnmatched returns the positions revealed but not yet matched.
func (g *GameSession) RevealedUnmatched() []int {
	out := make([]int, 0, 2)
	if g.RevealA != NoReveal {
		out = append(out, g.RevealA)
	}
	if g.RevealB != NoReveal {
		out = append(out, g.RevealB)
	}
	return out
}

// Deadline is the instant the time budget runs out, measured from the
// server-side creation time.
func (g *GameSession) Deadline() time.Time {
	return g.CreatedAt.Add(g.TimeBudget)
}

// Move is one audit-trail entry for a session. Moves are append-only and
// used for post-hoc review, never for authority.
type Move struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Position  int       `json:"position"`
	Source    string    `json:"source"`
	ClientAt  time.Time `json:"clientAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Move sources.
const (
	MoveSourceFlip         = "flip"
	MoveSourceClientReport = "client_report"
)

// GameSessionRepository is the port for session persistence. Implementations
// must enforce the single-active-session-per-owner invariant and provide
// compare-and-swap semantics so correctness holds across server processes.
type GameSessionRepository interface {
	// Create stores a new active session. Returns ErrActiveSessionExists if
	// the owner already has an active session.
	Create(ctx context.Context, s *GameSession) error
	// Get returns the session by ID, or nil if it does not exist.
	Get(ctx context.Context, id string) (*GameSession, error)
	// ActiveByOwner returns the owner's active session, or nil.
	ActiveByOwner(ctx context.Context, ownerID int64) (*GameSession, error)
	// Update persists progress and status guarded by s.Version; on success the
	// version is bumped. Returns ErrVersionConflict if another writer won.
	Update(ctx context.Context, s *GameSession) error
	// ListExpiredActive returns active sessions whose time budget elapsed
	// before now, up to limit.
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]GameSession, error)
}

// MoveRepository is the port for the append-only move audit trail.
type MoveRepository interface {
	Append(ctx context.Context, m Move) (int64, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Move, error)
}
