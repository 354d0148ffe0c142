// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pairstake/internal/domain"
)

// DB implements every repository port in memory behind one mutex.
type DB struct {
	mu       sync.Mutex
	sessions map[string]domain.GameSession
	moves    []domain.Move
	balances map[int64]int64
	txs      []domain.Transaction
	users    []*domain.User
	creds    map[string]*domain.AuthSession

	moveIDCounter int64
	txIDCounter   int64
	userIDCounter int64
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions: make(map[string]domain.GameSession),
		balances: make(map[int64]int64),
		creds:    make(map[string]*domain.AuthSession),
	}
}

// Ensure interfaces are met.
var _ domain.GameSessionRepository = (*DB)(nil)
var _ domain.MoveRepository = (*DB)(nil)
var _ domain.WalletRepository = (*DB)(nil)
var _ domain.UserRepository = (*UserRepo)(nil)
var _ domain.AuthSessionRepository = (*AuthRepo)(nil)

// --- GameSessionRepository ---

// Create stores a new session, enforcing one active session per owner.
func (db *DB) Create(ctx context.Context, s *domain.GameSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.sessions {
		if existing.OwnerID == s.OwnerID && existing.Status == domain.StatusActive {
			return domain.ErrActiveSessionExists
		}
	}
	if _, ok := db.sessions[s.ID]; ok {
		return errors.New("session id collision")
	}

	s.Version = 1
	db.sessions[s.ID] = cloneSession(s)
	return nil
}

// Get returns a session by ID, or nil.
func (db *DB) Get(ctx context.Context, id string) (*domain.GameSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, nil
	}
	out := cloneSession(&s)
	return &out, nil
}

// ActiveByOwner returns the owner's active session, or nil.
func (db *DB) ActiveByOwner(ctx context.Context, ownerID int64) (*domain.GameSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, s := range db.sessions {
		if s.OwnerID == ownerID && s.Status == domain.StatusActive {
			out := cloneSession(&s)
			return &out, nil
		}
	}
	return nil, nil
}

// Update persists a session guarded by its version.
func (db *DB) Update(ctx context.Context, s *domain.GameSession) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	cur, ok := db.sessions[s.ID]
	if !ok {
		return errors.New("session not found")
	}
	if cur.Version != s.Version {
		return domain.ErrVersionConflict
	}
	s.Version++
	db.sessions[s.ID] = cloneSession(s)
	return nil
}

// ListExpiredActive returns active sessions past their deadline.
func (db *DB) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]domain.GameSession, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.GameSession, 0)
	for _, s := range db.sessions {
		if s.Status == domain.StatusActive && !now.Before(s.Deadline()) {
			out = append(out, cloneSession(&s))
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func cloneSession(s *domain.GameSession) domain.GameSession {
	out := *s
	out.Layout = append([]int(nil), s.Layout...)
	return out
}

// --- MoveRepository ---

// Append adds a move to the audit trail.
func (db *DB) Append(ctx context.Context, m domain.Move) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.moveIDCounter++
	m.ID = db.moveIDCounter
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	db.moves = append(db.moves, m)
	return m.ID, nil
}

// ListBySession returns a session's moves, oldest first, up to limit.
func (db *DB) ListBySession(ctx context.Context, sessionID string, limit int) ([]domain.Move, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Move, 0, limit)
	for _, m := range db.moves {
		if m.SessionID == sessionID {
			out = append(out, m)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// --- WalletRepository ---

// SetBalance seeds an owner's balance. Dev and test helper.
func (db *DB) SetBalance(ownerID int64, cents int64) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.balances[ownerID] = cents
}

// Balance returns the owner's balance in cents.
func (db *DB) Balance(ctx context.Context, ownerID int64) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.balances[ownerID], nil
}

// Apply atomically records a transaction and adjusts the balance.
func (db *DB) Apply(ctx context.Context, tx domain.Transaction) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.txs {
		if existing.SessionID == tx.SessionID && existing.Kind == tx.Kind {
			return 0, domain.ErrDuplicateTransaction
		}
	}

	next := db.balances[tx.OwnerID] + tx.AmountCents
	if next < 0 {
		return 0, domain.ErrInsufficientBalance
	}
	db.balances[tx.OwnerID] = next

	db.txIDCounter++
	tx.ID = db.txIDCounter
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	db.txs = append(db.txs, tx)
	return next, nil
}

// FindTransaction returns the transaction for a session and kind, or nil.
func (db *DB) FindTransaction(ctx context.Context, sessionID, kind string) (*domain.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i := range db.txs {
		if db.txs[i].SessionID == sessionID && db.txs[i].Kind == kind {
			tx := db.txs[i]
			return &tx, nil
		}
	}
	return nil, nil
}

// ListTransactions returns the owner's most recent transactions.
func (db *DB) ListTransactions(ctx context.Context, ownerID int64, limit int) ([]domain.Transaction, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Transaction, 0, limit)
	for _, tx := range db.txs {
		if tx.OwnerID == ownerID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- UserRepository ---

// UserRepo implements user persistence.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository.
func (db *DB) NewUserRepo() *UserRepo {
	return &UserRepo{db: db}
}

// GetByUsername retrieves a user by username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.Username == username {
			return nil, errors.New("user already exists")
		}
	}

	r.db.userIDCounter++
	u := &domain.User{
		ID:           r.db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	r.db.users = append(r.db.users, u)
	return u, nil
}

// --- AuthSessionRepository ---

// AuthRepo implements credential persistence.
type AuthRepo struct {
	db *DB
}

// NewAuthRepo creates a new credential repository.
func (db *DB) NewAuthRepo() *AuthRepo {
	return &AuthRepo{db: db}
}

// Create stores a new credential.
func (r *AuthRepo) Create(ctx context.Context, userID int64, token, userAgent string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.creds[token] = &domain.AuthSession{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a credential by token.
func (r *AuthRepo) GetByToken(ctx context.Context, token string) (*domain.AuthSession, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.creds[token]; ok {
		if time.Now().After(s.ExpiresAt) {
			delete(r.db.creds, token)
			return nil, nil
		}
		return s, nil
	}
	return nil, nil
}

// Delete deletes a credential.
func (r *AuthRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.creds, token)
	return nil
}

// DeleteForUser deletes all of a user's credentials except keepToken.
func (r *AuthRepo) DeleteForUser(ctx context.Context, userID int64, keepToken string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for token, s := range r.db.creds {
		if s.UserID == userID && token != keepToken {
			delete(r.db.creds, token)
		}
	}
	return nil
}

// DeleteExpired deletes all expired credentials.
func (r *AuthRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for token, s := range r.db.creds {
		if now.After(s.ExpiresAt) {
			delete(r.db.creds, token)
		}
	}
	return nil
}
