package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/soaringjerry/surveyd/internal/api"
	"github.com/soaringjerry/surveyd/internal/config"
	"github.com/soaringjerry/surveyd/internal/jobs"
	"github.com/soaringjerry/surveyd/internal/middleware"
	"github.com/soaringjerry/surveyd/internal/services"
	"github.com/soaringjerry/surveyd/internal/summary"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "surveyd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	secret := []byte(cfg.Auth.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return fmt.Errorf("generate jwt secret: %w", err)
		}
		logger.Warn("auth.jwt_secret not set; admin tokens will not survive a restart")
	}
	issuer := middleware.NewTokenIssuer(secret, cfg.Auth.TokenTTL)
	guard := services.NewPasswordGuard(cfg.Auth.BcryptCost, logger).
		WithOverride(cfg.Auth.OverridePasswordHash).
		WithTokenVerifier(issuer.Verify)
	if guard.OverrideEnabled() {
		logger.Warn("override password enabled; every use is audited")
	}

	deps := api.Deps{
		Surveys:   services.NewSurveyRepository(st, guard, logger),
		Lifecycle: services.NewLifecycleManager(st, guard, issuer.Sign, logger),
		Responses: services.NewResponseValidator(st, logger),
		Exporter:  services.NewExporter(st, guard, logger),
		Ping:      st.ping,
		Logger:    logger,
		Commit:    cfg.Commit,
		BuildTime: cfg.BuildTime,
	}
	var summarizer services.Summarizer
	if sc := cfg.Summarizer; sc.Enabled {
		client := summary.NewClient(sc.BaseURL, sc.APIKey, sc.Model, &http.Client{Timeout: sc.Timeout})
		svc := summary.NewService(client, sc.PerMinute, sc.Timeout, logger)
		defer svc.Wait()
		summarizer = svc
		deps.Summaries = svc
		logger.Info("summarizer enabled", "model", sc.Model, "per_minute", sc.PerMinute)
	}
	deps.Stats = services.NewStatisticsAggregator(st, guard, summarizer, logger)
	if rl := cfg.RateLimit; rl.SubmitPerMinute > 0 {
		deps.SubmitLimiter = middleware.NewIPRateLimiter(rl.SubmitPerMinute, rl.Burst).TrustProxyHeaders(rl.TrustProxyHeaders)
	}

	mux := http.NewServeMux()
	api.NewRouter(deps).Register(mux)
	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	var handler http.Handler = mux
	handler = middleware.WithAuth(handler)
	handler = middleware.LocaleMiddleware(handler)
	handler = middleware.NoStore(handler)
	handler = middleware.SecureHeaders(handler)
	handler = middleware.CORS(handler)
	handler = middleware.WithLogging(logger)(handler)

	sweeper := jobs.NewSweeper(st, logger)
	if cfg.Sweeper.Schedule != "" {
		if err := sweeper.Start(cfg.Sweeper.Schedule); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("surveyd listening", "addr", cfg.Addr, "store", cfg.Store.Driver, "commit", cfg.Commit)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown", "error", err)
	}
	sweeper.Stop(shutdownCtx)
	return nil
}
