package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clockbill/clockbill/internal/auth"
	"github.com/clockbill/clockbill/internal/config"
	"github.com/clockbill/clockbill/internal/db"
	clockhttp "github.com/clockbill/clockbill/internal/http"
	"github.com/clockbill/clockbill/internal/observability"
	"github.com/clockbill/clockbill/internal/ratelimit"
	"github.com/clockbill/clockbill/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracer(context.Background(), "clockbill", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "error", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()

			if err := shutdown(ctx); err != nil {
				log.Error("tracer shutdown failed", "error", err)
			}
		}()
	}

	if err := db.RunMigrations(cfg.DBURL, cfg.MigrationsDir); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}

	defer pool.Close()

	{
		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := db.EnsureAdminUser(ctx, pool, cfg); err != nil {
			log.Error("admin seeding failed", "error", err)
			os.Exit(1)
		}
	}

	ibans, err := security.NewIBANCipher(cfg.IBANKeyHex)

	if err != nil {
		log.Error("invalid IBAN encryption key", "error", err)
		os.Exit(1)
	}

	if !ibans.Available() {
		log.Warn("no IBAN encryption key configured, bank details stored in plaintext")
	}

	jwtManager := auth.NewManager(
		cfg.JWTSecret,
		time.Duration(cfg.JWTAccessTTLMinutes)*time.Minute,
		time.Duration(cfg.JWTRefreshTTLDays)*24*time.Hour,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	var limiter *ratelimit.RedisLimiter

	if cfg.RedisAddr != "" {
		limiter = ratelimit.NewRedis(ratelimit.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := config.WithTimeout(3 * time.Second)

		if err := limiter.Ping(ctx); err != nil {
			log.Warn("redis unreachable, falling back to in-process rate limiting", "error", err)
			_ = limiter.Close()
			limiter = nil
		}

		cancel()

		if limiter != nil {
			defer func() { _ = limiter.Close() }()
		}
	}

	router := clockhttp.NewRouter(clockhttp.Deps{
		Cfg:    cfg,
		Log:    log,
		Pool:   pool,
		Prom:   prom,
		JWT:    jwtManager,
		IBANs:  ibans,
		Redis:  limiter,
		PromRg: reg,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped unexpectedly", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("forced shutdown", "error", err)
	}

	log.Info("server stopped")
}
