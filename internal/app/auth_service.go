package app

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"pairstake/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAuthSessionNotFound indicates that the requested credential does not exist.
	ErrAuthSessionNotFound = errors.New("auth session not found")
	// ErrAuthSessionExpired indicates that the credential has expired or was
	// superseded by a newer login.
	ErrAuthSessionExpired = errors.New("auth session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrBotSuspected indicates the signup attempt scored above the bot
	// threshold.
	ErrBotSuspected = errors.New("request rejected")
)

const authSessionTTL = 24 * time.Hour

// AuthService handles player authentication and credential presence.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.AuthSessionRepository
	scorer   BotLikelihoodScorer
}

// NewAuthService creates a new authentication service.
func NewAuthService(users domain.UserRepository, sessions domain.AuthSessionRepository, scorer BotLikelihoodScorer) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		scorer:   scorer,
	}
}

// Register creates a new player account. The behavior sample, when present,
// is scored first; likely bots are rejected with a deliberately generic error.
func (s *AuthService) Register(ctx context.Context, username, password string, sample *BehaviorSample) (*domain.User, error) {
	if username == "" || len(password) < 8 {
		return nil, errors.New("username required and password must be at least 8 characters")
	}
	if s.scorer != nil && sample != nil {
		if s.scorer.Score(*sample) >= BotThreshold {
			return nil, ErrBotSuspected
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, username, string(hash))
}

// Login authenticates a user and issues a credential. Any prior credentials
// for the user are superseded, so a login elsewhere evicts this one; that
// eviction is the liveness signal behind the single-session guard.
func (s *AuthService) Login(ctx context.Context, username, password, userAgent string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return "", ErrInvalidCredentials
	}

	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.issue(ctx, user.ID, userAgent)
}

// LoginWithUser issues a credential for an already authenticated user
// (e.g. via SSO), auto-provisioning the account on first login.
func (s *AuthService) LoginWithUser(ctx context.Context, username, userAgent string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		// SSO users have no local password.
		user, err = s.users.Create(ctx, username, "")
		if err != nil {
			// Creation can lose a race on the unique username; read again.
			user, err = s.users.GetByUsername(ctx, username)
			if err != nil || user == nil {
				return "", err
			}
		}
	}
	return s.issue(ctx, user.ID, userAgent)
}

// Logout invalidates a credential.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// PurgeExpired removes expired credentials. Called periodically from the
// background sweep.
func (s *AuthService) PurgeExpired(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

// ValidateSession checks that a credential is live and matches the user
// agent it was issued to. Superseded and expired credentials both read as
// expired; the caller cannot tell which.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrAuthSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrAuthSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrAuthSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

func (s *AuthService) issue(ctx context.Context, userID int64, userAgent string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(authSessionTTL)
	if err := s.sessions.Create(ctx, userID, token, userAgent, expiresAt); err != nil {
		return "", err
	}
	// One credential wins: everything issued before this login dies now.
	if err := s.sessions.DeleteForUser(ctx, userID, token); err != nil {
		return "", err
	}

	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
