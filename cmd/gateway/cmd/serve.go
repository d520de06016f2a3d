package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/javi11/davgateway/internal/audit"
	"github.com/javi11/davgateway/internal/auth"
	"github.com/javi11/davgateway/internal/backend"
	"github.com/javi11/davgateway/internal/config"
	"github.com/javi11/davgateway/internal/database"
	"github.com/javi11/davgateway/internal/edge"
	"github.com/javi11/davgateway/internal/gateway"
	"github.com/javi11/davgateway/internal/metrics"
	"github.com/javi11/davgateway/internal/pathmap"
	"github.com/javi11/davgateway/internal/pathutil"
	"github.com/javi11/davgateway/internal/reqcontext"
	"github.com/javi11/davgateway/internal/resource"
	"github.com/javi11/davgateway/internal/slogutil"
	"github.com/spf13/cobra"
)

func init() {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WebDAV gateway",
		RunE:  runServe,
	}
	rootCmd.AddCommand(serveCmd)
}

// runServe wires every package built from the spec into a running
// server, following the teacher's cmd/altmount setup.go construction
// order (config → database → dependent services → listener).
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := pathutil.CheckFileDirectoryWritable(cfg.Log.File, "log"); err != nil {
		return err
	}
	if err := pathutil.CheckFileDirectoryWritable(cfg.Audit.DBPath, "audit database"); err != nil {
		return err
	}

	slog.SetDefault(slogutil.SetupLogRotation(cfg.Log))

	db, err := database.Open(cfg.Audit.DBPath)
	if err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrating audit database: %w", err)
	}
	auditStore := database.NewAuditStore(database.NewRepository(db))

	ipTable := edge.NewIPTable(cfg.IP.WhitelistEnabled, cfg.IP.WhitelistIPs, cfg.IP.BlacklistIPs)
	limiter := edge.NewRateLimiter(cfg.RateLimit.IPRequestsPerMinute, cfg.RateLimit.UserRequestsPerMinute, cfg.RateLimit.GlobalRequestsPerSecond, cfg.RateLimit.CacheSize)

	cfgManager := config.NewManager(cfg, configFile)
	cfgManager.OnConfigChange(func(_, newCfg *config.Config) {
		ipTable.Reload(newCfg.IP.WhitelistEnabled, newCfg.IP.WhitelistIPs, newCfg.IP.BlacklistIPs)
		limiter.Reconfigure(newCfg.RateLimit.IPRequestsPerMinute, newCfg.RateLimit.UserRequestsPerMinute, newCfg.RateLimit.GlobalRequestsPerSecond)
	})
	if err := cfgManager.Watch(); err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
	}
	defer cfgManager.Close()

	auditSvc := audit.NewService(cfg.Audit.QueueSize, cfg.Audit.Workers, cfg.Audit.MaskPII, cfg.Audit.BlacklistAfter, auditStore, ipTable.AddToBlacklist)
	auditSvc.Start()
	defer auditSvc.Stop()

	gate := edge.NewGate(ipTable, limiter, auditSvc)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
		gate.WithMetrics(collector)
		go func() {
			srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: collector.Handler()}
			slog.Info("metrics listening", "addr", cfg.Metrics.Addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server error", "err", err)
			}
		}()
	}

	client := backend.NewHTTPClient(cfg.Backend.Target, time.Duration(cfg.Backend.DeadlineSecond)*time.Second)

	validator := auth.NewTokenValidator(cfg.JWT.Secret, cfg.JWT.Issuer)
	cacheTTL := time.Duration(cfg.Cache.ExpireMinutes) * time.Minute
	resolver := auth.NewResolver(auth.ResolverConfig{
		CacheSize:            cfg.Cache.MaxSize,
		CacheTTL:             cacheTTL,
		RevocationCacheSize:  cfg.Cache.MaxSize,
		RevocationTTLCeiling: cacheTTL,
	}, backend.AuthenticateFunc(client), validator, backend.NewRevocationChecker(client))

	engine, err := pathmap.NewEngine(cfg.WebDAV.Prefix, pathmap.EngineConfig{
		PathCacheSize: cfg.Cache.PathCacheSize,
		IDCacheSize:   cfg.Cache.PathCacheSize,
	}, backend.NewMetadataFetcher(client, backend.CallMetadata{}))
	if err != nil {
		return fmt.Errorf("building path mapping engine: %w", err)
	}

	factory, err := resource.NewFactory(cfg.WebDAV.Prefix, engine, client, cfg.Cache.MetaCacheSize)
	if err != nil {
		return fmt.Errorf("building resource factory: %w", err)
	}

	fs := gateway.NewFS(cfg.WebDAV.Prefix, factory, engine, client)
	sessions := reqcontext.NewSessionStore(cacheTTL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sessions.StartSweeper(ctx, time.Minute)

	srv := gateway.NewServer(gateway.Config{
		Addr:               fmt.Sprintf(":%d", cfg.WebDAV.Port),
		Prefix:             cfg.WebDAV.Prefix,
		Realm:              cfg.WebDAV.Realm,
		StaticUser:         cfg.WebDAV.User,
		StaticPasswordHash: cfg.WebDAV.Password,
	}, fs, gate, resolver, sessions, auditSvc, nil)
	if collector != nil {
		srv.WithMetrics(collector)
	}

	return srv.Start(ctx)
}
