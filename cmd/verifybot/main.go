package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joelikes8/Random-bot/internal/analytics"
	"github.com/joelikes8/Random-bot/internal/bot"
	"github.com/joelikes8/Random-bot/internal/config"
	"github.com/joelikes8/Random-bot/internal/modules/audit"
	"github.com/joelikes8/Random-bot/internal/policy"
	"github.com/joelikes8/Random-bot/internal/roblox"
	"github.com/joelikes8/Random-bot/internal/storage"
	"github.com/joelikes8/Random-bot/internal/verification"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.String("config", "", "path to config.yaml (defaults to CONFIG_PATH or ./config.yaml)")
	migrateOnly := pflag.Bool("migrate-only", false, "apply database migrations and exit")
	pflag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}
	logger.Info("storage ready", zap.String("dialect", store.Dialect()))
	if *migrateOnly {
		return
	}

	envPolicy := policy.New(cfg.Environment)
	logger.Info("environment policy",
		zap.Bool("restricted_network", envPolicy.RestrictedNetwork()),
		zap.Bool("force_username_override", envPolicy.ForceUsernameOverride()),
		zap.Duration("lookup_timeout", envPolicy.LookupTimeout()),
		zap.Int("attempts", envPolicy.Attempts()),
	)
	if envPolicy.ForceUsernameOverride() {
		logger.Warn("force username override enabled: unknown usernames resolve to test identities and codes are not checked",
			zap.String("event", verification.EventPolicyOverride))
	}

	client, err := roblox.NewClient(cfg.Roblox)
	if err != nil {
		logger.Fatal("roblox client init failed", zap.Error(err))
	}

	auditLogger := audit.NewLogger(store, logger)
	analyticsEngine := analytics.New(store)

	resolver := verification.NewResolver(envPolicy, []verification.Lookup{
		client.UsernamesLookup(),
		client.SearchLookup(),
		client.LegacyLookup(),
	}, logger)
	confirmer := verification.NewConfirmer(envPolicy, client, logger)
	service := verification.NewService(resolver, verification.NewIssuer(), confirmer, store, auditLogger, logger)

	botSvc, err := bot.New(cfg, logger, service, client, auditLogger, analyticsEngine)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}

	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started")

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("storage unavailable"))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	stopCleanup := make(chan struct{})
	go runRetention(store, cfg.RetentionDays, logger, stopCleanup)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown requested")
	close(stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(ctx)
	}
	botSvc.Close(ctx)
}

func runRetention(store *storage.Store, days int, logger *zap.Logger, stop <-chan struct{}) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := store.CleanupAuditLogs(ctx, days); err != nil {
				logger.Warn("audit retention cleanup failed", zap.Error(err))
			}
			cancel()
		}
	}
}
