package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v2"

	"github.com/dmmcquay/gammon-mcp/internal/cache"
	"github.com/dmmcquay/gammon-mcp/internal/health"
	"github.com/dmmcquay/gammon-mcp/internal/logging"
	mcptools "github.com/dmmcquay/gammon-mcp/internal/mcp"
	"github.com/dmmcquay/gammon-mcp/internal/metrics"
	"github.com/dmmcquay/gammon-mcp/internal/ratelimit"
	httpserver "github.com/dmmcquay/gammon-mcp/internal/server"
	"github.com/dmmcquay/gammon-mcp/internal/shutdown"
	"github.com/dmmcquay/gammon-mcp/internal/store"
)

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var output io.Writer = os.Stderr
	var logFile *logging.FileWriter
	if cfg.Logging.File != "" {
		logFile, err = logging.NewFileWriter(cfg.Logging.File, logging.FileOptions{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		})
		if err != nil {
			return err
		}
		output = io.MultiWriter(os.Stderr, logFile)
	}

	logger := logging.NewLoggerFromConfig(&logging.Config{
		Level:   cfg.Logging.Level,
		Format:  logging.LogFormat(cfg.Logging.Format),
		Service: cfg.Server.Name,
		Version: cfg.Server.Version,
		Prefix:  cfg.Logging.Prefix,
		Output:  output,
	})
	logger.Info("Starting gammon MCP server version %s (commit: %s, built: %s)",
		cfg.Server.Version, GitCommit, BuildTime)

	// Components are stopped in reverse registration order, so the log file
	// and then the store are registered first and closed last.
	shutdownMgr := shutdown.NewManager(logger)
	if logFile != nil {
		shutdownMgr.Register("logfile", func(context.Context) error { return logFile.Close() })
	}

	collector := metrics.NewCollector()
	prom := metrics.NewPrometheusCollector()
	cacheMgr := cache.NewManager(&cfg.Cache, logger, prom)

	checker := health.NewChecker(logger, cfg.Server.Version, GitCommit)
	checker.RegisterCheck("codecs", health.CodecCheck())
	checker.RegisterInfo("cache", func() map[string]interface{} {
		return map[string]interface{}{
			"enabled": cacheMgr.IsEnabled(),
			"stats":   cacheMgr.Stats(),
		}
	})

	var matchStore mcptools.MatchStore
	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Dir)
		if err != nil {
			logger.Error("Failed to open match library", "dir", cfg.Store.Dir, "error", err.Error())
			_ = shutdownMgr.Shutdown(shutdown.DefaultTimeout)
			return err
		}
		logger.Info("Match library opened", "path", st.Path())
		shutdownMgr.Register("store", func(context.Context) error { return st.Close() })
		checker.RegisterCheck("store", health.PingCheck(st))
		matchStore = st
	}

	rateLimiter := ratelimit.NewLimiter(&cfg.RateLimit, logger)
	shutdownMgr.Register("ratelimit", func(context.Context) error {
		rateLimiter.Stop()
		return nil
	})
	checker.RegisterInfo("ratelimit", rateLimiter.GetStatus)

	if cfg.Server.HealthAddr != "" {
		httpServer := httpserver.NewHTTPServer(cfg.Server.HealthAddr, logger, checker)
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start health check server", "error", err.Error())
			_ = shutdownMgr.Shutdown(shutdown.DefaultTimeout)
			return err
		}
		logger.Info("Health check server started", "addr", httpServer.Addr())
		shutdownMgr.Register("http", httpServer.Stop)
	}

	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithLogging(),
	)

	middleware := mcptools.NewMiddleware(logger, collector, prom, rateLimiter)
	toolsHandler := mcptools.NewToolsHandler(logger, mcptools.Options{
		Cache:      cacheMgr,
		Store:      matchStore,
		Limits:     cfg.Limits,
		Collector:  collector,
		Prometheus: prom,
		Status: func() map[string]interface{} {
			return map[string]interface{}{"rateLimit": rateLimiter.GetStatus()}
		},
	})
	toolsHandler.SetMiddleware(middleware)
	toolsHandler.RegisterTools(mcpServer)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()
	shutdownMgr.HandleSignals(ctx)

	logger.Info("Gammon MCP server ready")

	done := make(chan error, 1)
	go func() {
		done <- server.ServeStdio(mcpServer)
	}()

	var serveErr error
	select {
	case serveErr = <-done:
		if serveErr != nil {
			logger.Error("Server error", "error", serveErr.Error())
		}
	case <-shutdownMgr.Done():
		logger.Info("Server stopped by shutdown signal")
	}

	return errors.Join(serveErr, shutdownMgr.Shutdown(shutdown.DefaultTimeout))
}
