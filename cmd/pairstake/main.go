package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	adapthttp "pairstake/internal/adapter/http"
	"pairstake/internal/adapter/postgres"
	"pairstake/internal/app"
	"pairstake/internal/config"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const sweepBatchSize = 100

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer func() { _ = db.Close() }()

	gameSvc := app.NewGameService(db, db, db, app.GameConfig{
		ServerSecret:  cfg.ServerSecret,
		MinBetCents:   cfg.MinBetCents,
		MaxBetCents:   cfg.MaxBetCents,
		WinMultiplier: cfg.WinMultiplier,
		PairCount:     cfg.PairCount,
		MovesBudget:   cfg.MovesBudget,
		TimeBudget:    cfg.TimeBudget,
	})
	authSvc := app.NewAuthService(postgres.NewUserRepo(db), postgres.NewAuthRepo(db), app.VarianceScorer{})

	oidcConfig, err := buildOIDC(ctx, cfg)
	if err != nil {
		log.Fatalf("oidc: %v", err)
	}

	go sweepLoop(ctx, gameSvc, authSvc, cfg.SweepInterval)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: adapthttp.New(gameSvc, authSvc, db, oidcConfig, cfg.WebDir).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// sweepLoop settles abandoned sessions whose time budget has elapsed, so
// wins and losses land even when the player never calls finalize. Expired
// credentials are purged on the same cadence.
func sweepLoop(ctx context.Context, game *app.GameService, auth *app.AuthService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := game.SweepExpired(ctx, sweepBatchSize)
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: settled %d expired sessions", n)
			}
			if err := auth.PurgeExpired(ctx); err != nil {
				log.Printf("purge credentials: %v", err)
			}
		}
	}
}

func buildOIDC(ctx context.Context, cfg config.Config) (adapthttp.OIDCConfig, error) {
	if cfg.OIDCIssuer == "" {
		return adapthttp.OIDCConfig{}, nil
	}

	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, err
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Provider: provider,
		OAuth2Config: oauth2.Config{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email"},
		},
	}, nil
}
