package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-ask/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-ask/pkg/cache"
	"github.com/ekaya-inc/ekaya-ask/pkg/config"
	"github.com/ekaya-inc/ekaya-ask/pkg/handlers"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp"
	"github.com/ekaya-inc/ekaya-ask/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-ask/pkg/middleware"
	"github.com/ekaya-inc/ekaya-ask/pkg/session"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(load configLoader) *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the MCP endpoint.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, files, logger)
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "dataset to open at startup (repeatable)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, files []string, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.String("cache_backend", cfg.Cache.Backend))

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	datasets, err := datasource.NewManager(cfg.Upload.Dir, cfg.Upload.MaxBytes, logger)
	if err != nil {
		return err
	}
	defer datasets.CloseAll()
	for _, path := range files {
		h, err := datasets.OpenPath(ctx, path)
		if err != nil {
			return err
		}
		logger.Info("Dataset opened", zap.String("handle", h.ID), zap.String("file", path))
	}

	sessions := newSessionStore(cfg, a.clock)
	defer sessions.Close()
	secret, err := sessionSecret(cfg, logger)
	if err != nil {
		return err
	}
	cookies := session.NewManager(session.ManagerConfig{
		CookieName: cfg.Session.CookieName,
		Secret:     secret,
		MaxAge:     int(cfg.Session.MaxAge.Seconds()),
		Secure:     cfg.Session.Secure,
	}, sessions, logger)

	mcpServer := mcp.NewServer("ekaya-ask", cfg.Version, logger)
	tools.RegisterAskTools(mcpServer.MCP(), &tools.AskToolDeps{
		Datasets: datasets,
		Pipeline: a.orchestrator,
		Sessions: sessions,
		Logger:   logger,
	})
	tools.RegisterHealthTool(mcpServer.MCP(), cfg.Version, datasets)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, datasets, logger).RegisterRoutes(mux)
	handlers.NewUploadsHandler(datasets, a.orchestrator, cfg.Upload.MaxBytes, logger).RegisterRoutes(mux)
	handlers.NewQuestionsHandler(datasets, a.orchestrator, cookies, logger).RegisterRoutes(mux)
	handlers.NewCacheHandler(a.cache, logger).RegisterRoutes(mux)
	handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	janitor := cache.NewJanitor(a.cache, cfg.Cache.Policy(), cfg.Cache.JanitorInterval, a.clock, logger)
	go janitor.Run(janitorCtx)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-ask",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version),
			zap.Bool("tls", cfg.TLSCertPath != ""))
		if cfg.TLSCertPath != "" {
			errCh <- srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
