package adapthttp

import (
	"net/http"

	"pairstake/internal/app"
	"pairstake/internal/domain"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCConfig holds optional SSO settings. When Enabled is false the SSO
// endpoints respond 404.
type OIDCConfig struct {
	Enabled      bool
	Provider     *oidc.Provider
	OAuth2Config oauth2.Config
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	game   *app.GameService
	auth   *app.AuthService
	wallet domain.WalletRepository

	oidcConfig OIDCConfig
	webDir     string

	// disableAuth short-circuits the auth middleware with testUser. Tests only.
	disableAuth bool
	testUser    *domain.User
}

// New creates a Server wired to the given application services.
func New(game *app.GameService, auth *app.AuthService, wallet domain.WalletRepository, oidcConfig OIDCConfig, webDir string) *Server {
	return &Server{game: game, auth: auth, wallet: wallet, oidcConfig: oidcConfig, webDir: webDir}
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	api.HandleFunc("/config", s.handleConfig)
	api.HandleFunc("/auth/register", s.handleRegister)
	api.HandleFunc("/auth/login", s.handleLogin)
	api.HandleFunc("/auth/logout", s.handleLogout)
	api.HandleFunc("/auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("/auth/sso/callback", s.handleSSOCallback)

	private := http.NewServeMux()
	private.HandleFunc("/auth/presence", s.handlePresence)

	private.HandleFunc("/game/start", s.handleGameStart)
	private.HandleFunc("/game/flip", s.handleGameFlip)
	private.HandleFunc("/game/state", s.handleGameState)
	private.HandleFunc("/game/finalize", s.handleGameFinalize)
	private.HandleFunc("/game/forfeit", s.handleGameForfeit)
	private.HandleFunc("/game/report", s.handleGameReport)
	private.HandleFunc("/game/moves", s.handleGameMoves)

	private.HandleFunc("/wallet/balance", s.handleWalletBalance)
	private.HandleFunc("/wallet/transactions", s.handleWalletTransactions)

	api.Handle("/", s.authMiddleware(private))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))
	root.Handle("/", spaFromDisk(s.webDir))

	return s.loggingMiddleware(withNoCache(root))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled": s.oidcConfig.Enabled,
	})
}
