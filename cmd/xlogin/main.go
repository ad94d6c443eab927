package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/alias"
	"github.com/tendant/xlogin/pkg/config"
	"github.com/tendant/xlogin/pkg/provider"
	"github.com/tendant/xlogin/pkg/registration"
	"github.com/tendant/xlogin/pkg/secrets"
	"github.com/tendant/xlogin/pkg/webflow"
	"github.com/tendant/xlogin/pkg/xlogin"
	"github.com/tendant/xlogin/pkg/xlogin/api"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file loaded", "error", err)
	}

	cfg := config.Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(-1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(-1)
	}

	vault, err := secrets.NewService(cfg.Crypto.InstallationKey)
	if err != nil {
		slog.Error("Failed to initialize secret vault", "error", err)
		os.Exit(-1)
	}
	hasher, err := alias.NewHasher(cfg.Crypto.InstallationSalt)
	if err != nil {
		slog.Error("Failed to initialize alias hasher", "error", err)
		os.Exit(-1)
	}

	// The account boundary belongs to the host application; the
	// standalone binary runs with an empty in-memory set until wired
	// to a real directory.
	accounts := account.NewInMemoryService()

	var registrations registration.Repository
	if cfg.Db.Configured() {
		pool, err := pgxpool.New(context.Background(), cfg.Db.ToDatabaseURL())
		if err != nil {
			slog.Error("Failed creating dbpool", "db", cfg.Db.Database, "host", cfg.Db.Host,
				"port", cfg.Db.Port, "user", cfg.Db.User)
			os.Exit(-1)
		}
		defer pool.Close()
		registrations, err = registration.NewPostgresRepository(pool)
		if err != nil {
			slog.Error("Failed creating registration repository", "error", err)
			os.Exit(-1)
		}
		slog.Info("Registration store backed by PostgreSQL", "db", cfg.Db.Database)
	} else {
		registrations = registration.NewInMemoryRepository()
		slog.Warn("No database configured; registrations are in-memory and volatile")
	}

	optionsRepo, err := provider.NewFileOptionsRepository(cfg.OptionsFile)
	if err != nil {
		slog.Error("Failed opening options file", "path", cfg.OptionsFile, "error", err)
		os.Exit(-1)
	}
	registry := provider.NewRegistry(optionsRepo, vault, accounts,
		provider.WithGuestCheck(xlogin.IsAcceptableGuest))

	store := webflow.NewCookieStore(cfg.Webflow.KeyPairs(),
		webflow.WithSessionName(cfg.Webflow.SessionName))

	flowOpts := []xlogin.Option{}
	if cfg.LoginURL != "" {
		flowOpts = append(flowOpts, xlogin.WithLoginURL(cfg.LoginURL))
	}
	flow := xlogin.NewService(cfg.Name, registry, store, accounts, registrations,
		hasher, cfg.BaseURL, flowOpts...)

	registrationSvc := registration.NewService(registrations, accounts, hasher)
	handle := api.NewHandle(flow, registry, registrationSvc, accounts)

	var adminAuth *jwtauth.JWTAuth
	if cfg.Jwt.Secret != "" {
		adminAuth = jwtauth.New("HS256", []byte(cfg.Jwt.Secret), nil)
	} else {
		slog.Warn("XLOGIN_JWT_SECRET not set; admin API is unauthenticated")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	handle.RegisterRoutes(router, adminAuth)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("Starting server", "addr", server.Addr, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(-1)
		}
	}()

	<-done
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
}
