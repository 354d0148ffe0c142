package app

import (
	"context"
	"errors"
	"testing"

	"pairstake/internal/adapter/memory"
)

func newTestAuth(t *testing.T) (*AuthService, *memory.DB) {
	t.Helper()
	db := memory.New()
	return NewAuthService(db.NewUserRepo(), db.NewAuthRepo(), VarianceScorer{}), db
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "correct-horse", nil)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Username != "alice" {
		t.Fatalf("username = %q, want alice", user.Username)
	}
	if user.PasswordHash == "correct-horse" {
		t.Fatal("password stored in plaintext")
	}

	token, err := svc.Login(ctx, "alice", "correct-horse", "ua-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	got, err := svc.ValidateSession(ctx, token, "ua-1")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("validated user ID = %d, want %d", got.ID, user.ID)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _ := newTestAuth(t)

	if _, err := svc.Register(context.Background(), "bob", "short", nil); err == nil {
		t.Fatal("Register accepted a 5-character password")
	}
}

func TestRegisterRejectsScriptedBehavior(t *testing.T) {
	svc, _ := newTestAuth(t)

	// Zero cursor variance and machine-regular keystrokes.
	sample := &BehaviorSample{
		MouseXs:      []float64{100, 100, 100, 100, 100, 100},
		MouseYs:      []float64{200, 200, 200, 200, 200, 200},
		KeyGapsMilli: []float64{50, 50, 50, 50, 50, 50},
	}
	_, err := svc.Register(context.Background(), "bot", "longenough", sample)
	if !errors.Is(err, ErrBotSuspected) {
		t.Fatalf("Register error = %v, want ErrBotSuspected", err)
	}
}

func TestRegisterAcceptsHumanBehavior(t *testing.T) {
	svc, _ := newTestAuth(t)

	sample := &BehaviorSample{
		MouseXs:      []float64{100, 134, 98, 171, 210, 188},
		MouseYs:      []float64{200, 215, 260, 243, 280, 311},
		KeyGapsMilli: []float64{80, 140, 95, 210, 60, 175},
	}
	if _, err := svc.Register(context.Background(), "carol", "longenough", sample); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "correct-horse", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := svc.Login(ctx, "alice", "wrong", "ua-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := svc.Login(ctx, "nobody", "correct-horse", "ua-1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login for unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginSupersedesPriorCredential(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "correct-horse", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}

	first, err := svc.Login(ctx, "alice", "correct-horse", "laptop")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	second, err := svc.Login(ctx, "alice", "correct-horse", "phone")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}

	// The earlier credential is dead, which is what the presence poller
	// on the first device observes as a 401.
	if _, err := svc.ValidateSession(ctx, first, "laptop"); !errors.Is(err, ErrAuthSessionNotFound) {
		t.Fatalf("superseded credential error = %v, want ErrAuthSessionNotFound", err)
	}
	if _, err := svc.ValidateSession(ctx, second, "phone"); err != nil {
		t.Fatalf("current credential: %v", err)
	}
}

func TestValidateSessionUserAgentMismatch(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "correct-horse", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "correct-horse", "ua-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := svc.ValidateSession(ctx, token, "ua-2"); !errors.Is(err, ErrAuthSessionExpired) {
		t.Fatalf("mismatched user agent error = %v, want ErrAuthSessionExpired", err)
	}
	// A stolen-cookie attempt kills the credential for the real holder too.
	if _, err := svc.ValidateSession(ctx, token, "ua-1"); !errors.Is(err, ErrAuthSessionNotFound) {
		t.Fatalf("credential after mismatch error = %v, want ErrAuthSessionNotFound", err)
	}
}

func TestLogout(t *testing.T) {
	svc, _ := newTestAuth(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "correct-horse", nil); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svc.Login(ctx, "alice", "correct-horse", "ua-1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, token, "ua-1"); !errors.Is(err, ErrAuthSessionNotFound) {
		t.Fatalf("credential after logout error = %v, want ErrAuthSessionNotFound", err)
	}
}

func TestLoginWithUserAutoProvisions(t *testing.T) {
	svc, db := newTestAuth(t)
	ctx := context.Background()

	token, err := svc.LoginWithUser(ctx, "sso@example.com", "ua-1")
	if err != nil {
		t.Fatalf("LoginWithUser: %v", err)
	}
	user, err := svc.ValidateSession(ctx, token, "ua-1")
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if user.Username != "sso@example.com" {
		t.Fatalf("username = %q, want sso@example.com", user.Username)
	}

	// Second SSO login reuses the account.
	if _, err := svc.LoginWithUser(ctx, "sso@example.com", "ua-1"); err != nil {
		t.Fatalf("second LoginWithUser: %v", err)
	}
	again, err := db.NewUserRepo().GetByUsername(ctx, "sso@example.com")
	if err != nil || again == nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("second login created user %d, want %d", again.ID, user.ID)
	}
}
