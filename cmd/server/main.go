package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finance-tracker/internal/auth"
	"finance-tracker/internal/config"
	"finance-tracker/internal/handlers"
	"finance-tracker/internal/middleware/ratelimit"
	"finance-tracker/internal/reports"
	"finance-tracker/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewDB(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.CleanExpiredSessions(ctx); err != nil {
		logger.Warn("failed to clean expired sessions", "error", err)
	}

	if err := seedAdminUser(ctx, db, cfg, logger); err != nil {
		logger.Error("failed to seed admin user", "error", err)
		os.Exit(1)
	}

	engine := reports.NewEngine(db)
	h := handlers.NewHandlers(db, engine, cfg.TemplateDir, cfg.SecureCookie, logger)

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.LoginRequestsPerMinute})
	defer limiter.Stop()

	mux := setupRouter(h, cfg.StaticDir, limiter)

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        h.RequestLogger(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}

	// Graceful shutdown handling
	shutdownDone := make(chan struct{})
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
		close(shutdownDone)
	}()

	logger.Info("starting server", "port", cfg.Port, "db", cfg.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-shutdownDone
	logger.Info("server stopped gracefully")
}

// setupRouter wires all routes. Protected routes go through the auth
// middleware; the credential endpoints additionally go through the limiter.
func setupRouter(h *handlers.Handlers, staticDir string, limiter *ratelimit.Limiter) *http.ServeMux {
	mux := http.NewServeMux()
	limited := limiter.Middleware(clientIP)

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.Handle("POST /login", limited(http.HandlerFunc(h.Login)))
	mux.HandleFunc("GET /register", h.RegisterForm)
	mux.Handle("POST /register", limited(http.HandlerFunc(h.Register)))
	mux.Handle("GET /logout", h.AuthMiddleware(http.HandlerFunc(h.Logout)))

	mux.Handle("GET /dashboard", h.AuthMiddleware(http.HandlerFunc(h.Dashboard)))
	mux.Handle("GET /add_expense", h.AuthMiddleware(http.HandlerFunc(h.AddExpenseForm)))
	mux.Handle("POST /add_expense", h.AuthMiddleware(http.HandlerFunc(h.AddExpense)))
	mux.Handle("GET /history", h.AuthMiddleware(http.HandlerFunc(h.History)))
	mux.Handle("GET /analytics", h.AuthMiddleware(http.HandlerFunc(h.Analytics)))
	mux.Handle("GET /api/expenses", h.AuthMiddleware(http.HandlerFunc(h.APIExpenses)))

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))

	return mux
}

// seedAdminUser creates the configured admin account when the user table is
// empty, so a fresh deployment is immediately usable.
func seedAdminUser(ctx context.Context, db *storage.DB, cfg *config.Config, logger *slog.Logger) error {
	if cfg.AdminUser == "" {
		return nil
	}

	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	user, err := db.CreateUser(ctx, cfg.AdminUser, hash)
	if err != nil {
		return err
	}
	logger.Info("seeded admin user", "username", user.Username, "id", user.ID)
	return nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
