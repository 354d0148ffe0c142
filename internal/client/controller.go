// Package client implements the player-side session controller. It owns a
// single session value and exposes command methods that return fresh state;
// nothing here is shared mutable state and nothing here decides outcomes —
// every flip is answered by the server.
package client

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"pairstake/internal/app"
	"pairstake/internal/layout"
)

var (
	// ErrActiveSession indicates the advisory lock is held: a session
	// started here recently and has not been released.
	ErrActiveSession = errors.New("a game session is already running")
	// ErrNoSession indicates a command arrived with no session open.
	ErrNoSession = errors.New("no open session")
	// ErrSessionSuperseded is returned by presence probes when the server
	// rejected the credential because a newer login replaced it.
	ErrSessionSuperseded = errors.New("credential superseded")
)

// advisoryTTL is how long the client-local lock blocks a second start.
// Advisory only: the server's single-active-session check is the real
// guarantee.
const advisoryTTL = 5 * time.Minute

// GameAPI is the transport seam to the server. Implementations must apply
// timeouts; the controller never blocks indefinitely on them.
type GameAPI interface {
	StartSession(ctx context.Context, stakeCents int64, theme string) (*app.StartResult, error)
	Flip(ctx context.Context, sessionID string, position int) (*app.FlipResult, error)
	State(ctx context.Context, sessionID string) (*app.StateView, error)
	Finalize(ctx context.Context, sessionID string) (*app.FinalizeResult, error)
	// Forfeit resigns an active session so a fresh one can start right away.
	Forfeit(ctx context.Context, sessionID string) (*app.FinalizeResult, error)
}

// AdvisoryLock is the client-local start guard.
type AdvisoryLock struct {
	mu        sync.Mutex
	sessionID string
	createdAt time.Time
	now       func() time.Time
}

// NewAdvisoryLock creates an unlocked AdvisoryLock.
func NewAdvisoryLock() *AdvisoryLock {
	return &AdvisoryLock{now: time.Now}
}

// Acquire takes the lock for sessionID. Fails fast with ErrActiveSession
// if a lock younger than the TTL is held.
func (l *AdvisoryLock) Acquire(sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessionID != "" && l.now().Sub(l.createdAt) < advisoryTTL {
		return ErrActiveSession
	}
	l.sessionID = sessionID
	l.createdAt = l.now()
	return nil
}

// Rebind renames the held lock without resetting its age.
func (l *AdvisoryLock) Rebind(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sessionID != "" {
		l.sessionID = sessionID
	}
}

// Release clears the lock.
func (l *AdvisoryLock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessionID = ""
}

// Board is what the controller knows for rendering: one icon per position,
// decoded from the encrypted layout. Display data only — the server never
// reads it back and match outcomes never come from it.
type Board struct {
	SessionID string
	Icons     []string
	Moves     int
	TimeLimit time.Duration
	StartedAt time.Time
}

// SessionController drives one session at a time. Commands go in, fresh
// state comes out; there is no shared global store.
type SessionController struct {
	api  GameAPI
	lock *AdvisoryLock
	now  func() time.Time

	mu    sync.Mutex
	board *Board
}

// NewSessionController creates a controller over the given transport.
func NewSessionController(api GameAPI) *SessionController {
	return &SessionController{api: api, lock: NewAdvisoryLock(), now: time.Now}
}

// Start opens a new session and decodes the layout for display. A decode
// failure forfeits the session on the server so a fresh one can start
// immediately; partial repair is never attempted.
func (c *SessionController) Start(ctx context.Context, stakeCents int64, theme string) (*Board, error) {
	if err := c.lock.Acquire("pending"); err != nil {
		return nil, err
	}

	res, err := c.api.StartSession(ctx, stakeCents, theme)
	if err != nil {
		c.lock.Release()
		return nil, err
	}

	key, err := hex.DecodeString(res.LayoutKey)
	if err != nil {
		c.abandon(ctx, res.SessionID)
		return nil, layout.ErrMalformedPayload
	}
	cards, err := layout.Decode(res.EncryptedLayout, key, len(res.IconSet))
	if err != nil {
		c.abandon(ctx, res.SessionID)
		return nil, err
	}

	icons := make([]string, len(cards))
	for i, pairID := range cards {
		icons[i] = res.IconSet[pairID-1]
	}

	board := &Board{
		SessionID: res.SessionID,
		Icons:     icons,
		Moves:     res.MovesBudget,
		TimeLimit: time.Duration(res.TimeBudgetSecs) * time.Second,
		StartedAt: c.now(),
	}

	c.mu.Lock()
	c.board = board
	c.mu.Unlock()
	c.lock.Rebind(res.SessionID)

	out := *board
	return &out, nil
}

// Flip forwards one card flip to the server and returns its verdict.
func (c *SessionController) Flip(ctx context.Context, position int) (*app.FlipResult, error) {
	board := c.currentBoard()
	if board == nil {
		return nil, ErrNoSession
	}

	res, err := c.api.Flip(ctx, board.SessionID, position)
	if err != nil {
		return nil, err
	}
	if res.SessionComplete {
		c.lock.Release()
	}
	return res, nil
}

// Resync fetches the server-side session view, typically after the pair
// evaluation delay.
func (c *SessionController) Resync(ctx context.Context) (*app.StateView, error) {
	board := c.currentBoard()
	if board == nil {
		return nil, ErrNoSession
	}
	return c.api.State(ctx, board.SessionID)
}

// Finalize settles the open session and closes it locally.
func (c *SessionController) Finalize(ctx context.Context) (*app.FinalizeResult, error) {
	board := c.currentBoard()
	if board == nil {
		return nil, ErrNoSession
	}

	res, err := c.api.Finalize(ctx, board.SessionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.board = nil
	c.mu.Unlock()
	c.lock.Release()
	return res, nil
}

// CountdownSeconds is the display-only countdown. The authoritative
// deadline check always happens server-side against the session's
// creation timestamp.
func (c *SessionController) CountdownSeconds() int {
	board := c.currentBoard()
	if board == nil {
		return 0
	}
	left := board.TimeLimit - c.now().Sub(board.StartedAt)
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

// Reset purges all local session state. Called when the presence probe
// reports the credential was superseded.
func (c *SessionController) Reset() {
	c.mu.Lock()
	c.board = nil
	c.mu.Unlock()
	c.lock.Release()
}

func (c *SessionController) currentBoard() *Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board
}

// abandon forfeits a session this client can never play. Best effort: if
// the forfeit does not reach the server, the expiry sweep resolves it.
func (c *SessionController) abandon(ctx context.Context, sessionID string) {
	_, _ = c.api.Forfeit(ctx, sessionID)
	c.lock.Release()
}

// RunPresence polls probe every interval until ctx ends. A probe reporting
// ErrSessionSuperseded purges local state via Reset and calls onEvicted,
// forcing re-authentication before any further play. Any other probe error
// is treated as transient and retried on the next tick.
func (c *SessionController) RunPresence(ctx context.Context, interval time.Duration, probe func(context.Context) error, onEvicted func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := probe(ctx)
			if err == nil {
				continue
			}
			if errors.Is(err, ErrSessionSuperseded) {
				c.Reset()
				if onEvicted != nil {
					onEvicted()
				}
				return
			}
		}
	}
}
