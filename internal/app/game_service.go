// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"pairstake/internal/domain"
	"pairstake/internal/layout"
)

var (
	// ErrInvalidStake indicates a stake outside the configured bounds.
	ErrInvalidStake = errors.New("stake out of bounds")
	// ErrSessionNotFound indicates the session does not exist or does not
	// belong to the caller.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotActive indicates a play operation on a finished session.
	ErrSessionNotActive = errors.New("session not active")
	// ErrSessionStillActive indicates finalize was called mid-play.
	ErrSessionStillActive = errors.New("session still active")
	// ErrInvalidPosition indicates a flip position outside the board.
	ErrInvalidPosition = errors.New("invalid position")
)

// evalLockWindow is the brief pause after a pair is evaluated. UI pacing
// only; outcomes never depend on it.
const evalLockWindow = 800 * time.Millisecond

// GameConfig are the server-held game settings. Clients never supply any
// of these.
type GameConfig struct {
	ServerSecret  string
	MinBetCents   int64
	MaxBetCents   int64
	WinMultiplier float64
	PairCount     int
	MovesBudget   int
	TimeBudget    time.Duration
}

// GameService owns the session lifecycle and is the sole authority on
// match outcomes and settlement.
type GameService struct {
	sessions domain.GameSessionRepository
	moves    domain.MoveRepository
	wallet   domain.WalletRepository
	cfg      GameConfig
	now      func() time.Time
}

// NewGameService creates a GameService backed by the given repositories.
func NewGameService(sessions domain.GameSessionRepository, moves domain.MoveRepository, wallet domain.WalletRepository, cfg GameConfig) *GameService {
	return &GameService{
		sessions: sessions,
		moves:    moves,
		wallet:   wallet,
		cfg:      cfg,
		now:      time.Now,
	}
}

// StartResult is returned by StartSession. LayoutKey is the per-session
// decryption key material; the encrypted layout it unlocks is for
// rendering only.
type StartResult struct {
	SessionID       string   `json:"sessionId"`
	MovesBudget     int      `json:"movesBudget"`
	TimeBudgetSecs  int      `json:"timeBudgetSeconds"`
	EncryptedLayout string   `json:"encryptedLayout"`
	LayoutKey       string   `json:"layoutKeyMaterial"`
	Theme           string   `json:"theme"`
	IconSet         []string `json:"iconSet"`
	NewBalanceCents int64    `json:"newBalanceCents"`
}

// StartSession validates the stake, debits it, and opens a new session with
// a freshly shuffled, encrypted layout.
func (s *GameService) StartSession(ctx context.Context, ownerID int64, stakeCents int64, theme string) (*StartResult, error) {
	if stakeCents < s.cfg.MinBetCents || stakeCents > s.cfg.MaxBetCents {
		return nil, ErrInvalidStake
	}

	if active, err := s.sessions.ActiveByOwner(ctx, ownerID); err != nil {
		return nil, err
	} else if active != nil {
		return nil, domain.ErrActiveSessionExists
	}

	// Fast-fail before creating anything; the debit below is the real check.
	if balance, err := s.wallet.Balance(ctx, ownerID); err != nil {
		return nil, err
	} else if balance < stakeCents {
		return nil, domain.ErrInsufficientBalance
	}

	cards, err := layout.Generate(s.cfg.PairCount)
	if err != nil {
		return nil, err
	}

	id, err := newSessionID()
	if err != nil {
		return nil, err
	}

	now := s.now()
	theme, icons := layout.IconSet(theme, s.cfg.PairCount)
	sess := &domain.GameSession{
		ID:          id,
		OwnerID:     ownerID,
		StakeCents:  stakeCents,
		Theme:       theme,
		Layout:      cards,
		MovesBudget: s.cfg.MovesBudget,
		TimeBudget:  s.cfg.TimeBudget,
		Status:      domain.StatusActive,
		RevealA:     domain.NoReveal,
		RevealB:     domain.NoReveal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}

	newBalance, err := s.wallet.Apply(ctx, domain.Transaction{
		SessionID:   id,
		OwnerID:     ownerID,
		Kind:        domain.TxStake,
		AmountCents: -stakeCents,
	})
	if err != nil {
		// The stake never left the wallet; the session must not be playable.
		sess.Status = domain.StatusInvalidated
		if uerr := s.sessions.Update(ctx, sess); uerr != nil {
			log.Printf("invalidate unfunded session %s: %v", id, uerr)
		}
		return nil, err
	}

	key := layout.DeriveKey(s.cfg.ServerSecret, id)
	encrypted, err := layout.Encode(cards, key)
	if err != nil {
		return nil, err
	}

	return &StartResult{
		SessionID:       id,
		MovesBudget:     sess.MovesBudget,
		TimeBudgetSecs:  int(sess.TimeBudget / time.Second),
		EncryptedLayout: encrypted,
		LayoutKey:       hex.EncodeToString(key),
		Theme:           theme,
		IconSet:         icons,
		NewBalanceCents: newBalance,
	}, nil
}

// FlipResult is returned by Flip. IsMatch is set only when the flip
// completed a pair.
type FlipResult struct {
	Accepted        bool   `json:"accepted"`
	IsMatch         *bool  `json:"isMatch,omitempty"`
	SessionComplete bool   `json:"sessionComplete"`
	Status          string `json:"status"`
	MatchedPairs    int    `json:"matchedPairs"`
	MovesLeft       int    `json:"movesLeft"`
	Revealed        []int  `json:"revealed"`
}

// Flip applies one candidate card flip. Duplicate clicks and flips on
// already-resolved positions are accepted no-ops so network retries are
// harmless; flips on finished sessions fail with ErrSessionNotActive.
func (s *GameService) Flip(ctx context.Context, ownerID int64, sessionID string, position int, clientAt time.Time) (*FlipResult, error) {
	sess, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusActive {
		return nil, ErrSessionNotActive
	}

	now := s.now()
	if !now.Before(sess.Deadline()) {
		if err := s.expire(ctx, sess); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotActive
	}

	if err := CheckIntegrity(sess); err != nil {
		log.Printf("integrity violation on session %s: %v", sess.ID, err)
		if ierr := s.invalidate(ctx, sess); ierr != nil {
			return nil, ierr
		}
		// Deliberately generic: detection heuristics stay server-side.
		return nil, ErrSessionNotActive
	}

	if position < 0 || position >= len(sess.Layout) {
		return nil, ErrInvalidPosition
	}

	if now.Before(sess.LockedUntil) {
		return s.flipResult(sess, false, nil), nil
	}

	// A mismatched pair left face up from the previous move goes back to
	// hidden before the next flip lands.
	if sess.RevealA != domain.NoReveal && sess.RevealB != domain.NoReveal {
		sess.RevealA, sess.RevealB = domain.NoReveal, domain.NoReveal
	}

	if sess.IsMatched(position) || position == sess.RevealA {
		return s.flipResult(sess, false, nil), nil
	}
	if sess.MovesUsed >= sess.MovesBudget {
		return nil, ErrSessionNotActive
	}

	var isMatch *bool
	if sess.RevealA == domain.NoReveal {
		sess.RevealA = position
	} else {
		sess.RevealB = position
		sess.MovesUsed++
		sess.LockedUntil = now.Add(evalLockWindow)

		matched := sess.Layout[sess.RevealA] == sess.Layout[sess.RevealB]
		isMatch = &matched
		if matched {
			sess.SetMatched(sess.RevealA)
			sess.SetMatched(sess.RevealB)
			sess.MatchedPairs++
			sess.RevealA, sess.RevealB = domain.NoReveal, domain.NoReveal
			if sess.MatchedPairs == sess.PairCount() {
				sess.Status = domain.StatusWon
			}
		}
		// An exhausted budget ends the session even when the final move
		// matched; only a completed board outranks it.
		if sess.Status == domain.StatusActive && sess.MovesUsed >= sess.MovesBudget {
			sess.Status = domain.StatusLost
		}
	}

	sess.UpdatedAt = now
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}

	if _, err := s.moves.Append(ctx, domain.Move{
		SessionID: sess.ID,
		Position:  position,
		Source:    domain.MoveSourceFlip,
		ClientAt:  clientAt,
	}); err != nil {
		log.Printf("append move for session %s: %v", sess.ID, err)
	}

	if sess.Status.Terminal() {
		if _, _, err := s.settle(ctx, sess); err != nil {
			// Settlement retries via finalize or the sweep; the flip itself
			// succeeded.
			log.Printf("settle session %s: %v", sess.ID, err)
		}
	}

	return s.flipResult(sess, true, isMatch), nil
}

// StateView is the server-side view of a session for client resync. The
// layout itself is never included.
type StateView struct {
	SessionID    string `json:"sessionId"`
	Status       string `json:"status"`
	MatchedPairs int    `json:"matchedPairs"`
	MovesUsed    int    `json:"movesUsed"`
	MovesLeft    int    `json:"movesLeft"`
	Revealed     []int  `json:"revealed"`
	Matched      []int  `json:"matched"`
	TimeLeftSecs int    `json:"timeLeftSeconds"`
	Settled      bool   `json:"settled"`
	WinCents     int64  `json:"winCents"`
}

// State returns the current server-side view of the session, expiring it
// first if the time budget has run out.
func (s *GameService) State(ctx context.Context, ownerID int64, sessionID string) (*StateView, error) {
	sess, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if sess.Status == domain.StatusActive && !now.Before(sess.Deadline()) {
		if err := s.expire(ctx, sess); err != nil {
			return nil, err
		}
	}

	// After the evaluation window a mismatched pair reads as hidden again.
	if sess.Status == domain.StatusActive &&
		sess.RevealA != domain.NoReveal && sess.RevealB != domain.NoReveal &&
		!now.Before(sess.LockedUntil) {
		sess.RevealA, sess.RevealB = domain.NoReveal, domain.NoReveal
		sess.UpdatedAt = now
		if err := s.sessions.Update(ctx, sess); err != nil && !errors.Is(err, domain.ErrVersionConflict) {
			return nil, err
		}
	}

	matched := make([]int, 0, len(sess.Layout))
	for i := range sess.Layout {
		if sess.IsMatched(i) {
			matched = append(matched, i)
		}
	}
	timeLeft := int(sess.Deadline().Sub(now) / time.Second)
	if timeLeft < 0 || sess.Status.Terminal() {
		timeLeft = 0
	}

	return &StateView{
		SessionID:    sess.ID,
		Status:       string(sess.Status),
		MatchedPairs: sess.MatchedPairs,
		MovesUsed:    sess.MovesUsed,
		MovesLeft:    sess.MovesBudget - sess.MovesUsed,
		Revealed:     sess.RevealedUnmatched(),
		Matched:      matched,
		TimeLeftSecs: timeLeft,
		Settled:      sess.Settled,
		WinCents:     sess.WinCents,
	}, nil
}

// FinalizeResult is returned by Finalize.
type FinalizeResult struct {
	Won             bool  `json:"won"`
	WinCents        int64 `json:"winCents"`
	NewBalanceCents int64 `json:"newBalanceCents"`
}

// Finalize settles a finished session. It is idempotent: replays return
// the already-recorded result and never credit the ledger twice.
func (s *GameService) Finalize(ctx context.Context, ownerID int64, sessionID string) (*FinalizeResult, error) {
	sess, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Status == domain.StatusActive {
		if s.now().Before(sess.Deadline()) {
			return nil, ErrSessionStillActive
		}
		if err := s.expire(ctx, sess); err != nil {
			return nil, err
		}
	}

	if sess.Status == domain.StatusInvalidated {
		balance, err := s.wallet.Balance(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		return &FinalizeResult{Won: false, WinCents: 0, NewBalanceCents: balance}, nil
	}

	winCents, balance, err := s.settle(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &FinalizeResult{
		Won:             sess.Status == domain.StatusWon,
		WinCents:        winCents,
		NewBalanceCents: balance,
	}, nil
}

// Forfeit resigns an active session and settles it as a loss immediately.
// This is the recovery path when the client cannot render the board (for
// example a layout that fails to decode): the stake resolves now and a new
// session can start without waiting for the time budget to lapse.
func (s *GameService) Forfeit(ctx context.Context, ownerID int64, sessionID string) (*FinalizeResult, error) {
	sess, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != domain.StatusActive {
		return nil, ErrSessionNotActive
	}

	sess.Status = domain.StatusLost
	sess.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}

	_, balance, err := s.settle(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &FinalizeResult{Won: false, WinCents: 0, NewBalanceCents: balance}, nil
}

// SweepExpired settles abandoned sessions whose time budget has elapsed.
// Returns how many sessions it closed.
func (s *GameService) SweepExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.sessions.ListExpiredActive(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}
	swept := 0
	for i := range expired {
		sess := &expired[i]
		if err := s.expire(ctx, sess); err != nil {
			log.Printf("sweep session %s: %v", sess.ID, err)
			continue
		}
		swept++
	}
	return swept, nil
}

// ReportResult records a client-reported outcome in the audit trail. This
// endpoint used to trigger settlement; it is now telemetry only and must
// never touch the ledger.
func (s *GameService) ReportResult(ctx context.Context, ownerID int64, sessionID string, position int, clientAt time.Time) error {
	sess, err := s.loadOwned(ctx, ownerID, sessionID)
	if err != nil {
		return err
	}
	_, err = s.moves.Append(ctx, domain.Move{
		SessionID: sess.ID,
		Position:  position,
		Source:    domain.MoveSourceClientReport,
		ClientAt:  clientAt,
	})
	return err
}

// Moves returns the audit trail for a session.
func (s *GameService) Moves(ctx context.Context, ownerID int64, sessionID string, limit int) ([]domain.Move, error) {
	if _, err := s.loadOwned(ctx, ownerID, sessionID); err != nil {
		return nil, err
	}
	return s.moves.ListBySession(ctx, sessionID, limit)
}

func (s *GameService) loadOwned(ctx context.Context, ownerID int64, sessionID string) (*domain.GameSession, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// expire transitions an over-deadline session to expired and settles it as
// a loss.
func (s *GameService) expire(ctx context.Context, sess *domain.GameSession) error {
	sess.Status = domain.StatusExpired
	sess.UpdatedAt = s.now()
	if err := s.sessions.Update(ctx, sess); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// Another process got there first; re-read its verdict.
			cur, gerr := s.sessions.Get(ctx, sess.ID)
			if gerr != nil {
				return gerr
			}
			if cur != nil {
				*sess = *cur
			}
			return nil
		}
		return err
	}
	if _, _, err := s.settle(ctx, sess); err != nil {
		log.Printf("settle expired session %s: %v", sess.ID, err)
	}
	return nil
}

// invalidate hard-stops a session after an integrity violation. No payout
// is ever computed for it.
func (s *GameService) invalidate(ctx context.Context, sess *domain.GameSession) error {
	sess.Status = domain.StatusInvalidated
	sess.WinCents = 0
	sess.Settled = true
	sess.UpdatedAt = s.now()
	err := s.sessions.Update(ctx, sess)
	if errors.Is(err, domain.ErrVersionConflict) {
		return nil
	}
	return err
}

// settle applies the payout exactly once. The unique (session, payout)
// transaction is the idempotency guard: replays find it and return the
// recorded amount without touching the balance. A ledger failure leaves
// the session unsettled so finalize or the sweep can retry.
func (s *GameService) settle(ctx context.Context, sess *domain.GameSession) (winCents, newBalance int64, err error) {
	if !sess.Status.Terminal() {
		return 0, 0, ErrSessionStillActive
	}

	if sess.Status == domain.StatusWon {
		winCents = int64(math.Round(float64(sess.StakeCents) * s.cfg.WinMultiplier))
	}

	newBalance, err = s.wallet.Apply(ctx, domain.Transaction{
		SessionID:   sess.ID,
		OwnerID:     sess.OwnerID,
		Kind:        domain.TxPayout,
		AmountCents: winCents,
	})
	if errors.Is(err, domain.ErrDuplicateTransaction) {
		recorded, ferr := s.wallet.FindTransaction(ctx, sess.ID, domain.TxPayout)
		if ferr != nil {
			return 0, 0, ferr
		}
		if recorded != nil {
			winCents = recorded.AmountCents
		}
		newBalance, err = s.wallet.Balance(ctx, sess.OwnerID)
		if err != nil {
			return 0, 0, err
		}
	} else if err != nil {
		return 0, 0, fmt.Errorf("apply payout: %w", err)
	}

	if !sess.Settled {
		sess.WinCents = winCents
		sess.Settled = true
		sess.UpdatedAt = s.now()
		if uerr := s.sessions.Update(ctx, sess); uerr != nil && !errors.Is(uerr, domain.ErrVersionConflict) {
			log.Printf("mark session %s settled: %v", sess.ID, uerr)
		}
	}
	return winCents, newBalance, nil
}

func (s *GameService) flipResult(sess *domain.GameSession, accepted bool, isMatch *bool) *FlipResult {
	return &FlipResult{
		Accepted:        accepted,
		IsMatch:         isMatch,
		SessionComplete: sess.Status.Terminal(),
		Status:          string(sess.Status),
		MatchedPairs:    sess.MatchedPairs,
		MovesLeft:       sess.MovesBudget - sess.MovesUsed,
		Revealed:        sess.RevealedUnmatched(),
	}
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
