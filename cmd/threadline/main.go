// Package main is the entry point for the threadline CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/threadline/internal/config"
	"github.com/flemzord/threadline/internal/continuation"
	"github.com/flemzord/threadline/internal/gateway"
	"github.com/flemzord/threadline/internal/history"
	"github.com/flemzord/threadline/internal/model"
	"github.com/flemzord/threadline/internal/observability"
	"github.com/flemzord/threadline/internal/server"
	"github.com/flemzord/threadline/internal/thread"
	"github.com/flemzord/threadline/internal/thread/sqlite"
	"github.com/flemzord/threadline/internal/tool"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "threadline",
		Short:         "Conversation continuity engine for stateless tool-calling clients",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), serveCmd(), configCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("threadline %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tools over MCP stdio with conversation continuity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			fmt.Println("Configuration OK")
			return nil
		},
	})
	return cmd
}

// loadConfig loads the given path, falling back to standard locations
// and finally to built-in defaults when no file exists.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = resolveConfigPath()
	}
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath searches standard locations for a config file.
// Search order: $XDG_CONFIG_HOME/threadline/threadline.yaml → ./threadline.yaml
func resolveConfigPath() string {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "threadline", "threadline.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "threadline", "threadline.yaml"))
	}

	candidates = append(candidates, "threadline.yaml")

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg.Log.Level)

	metrics := observability.NewMetrics()

	tracing, err := observability.NewTracerSetup(cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	limits := thread.Limits{
		TTL:      cfg.Store.TTL.Std(),
		MaxTurns: cfg.Store.MaxTurns,
	}

	store, cleanup, err := openStore(cfg.Store, limits, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	defaultModel := cfg.Models.Default
	if defaultModel == "" {
		defaultModel = "gemini-2.5-pro"
	}
	catalog, err := model.NewCatalog(defaultModel, cfg.Models.ContextWindows)
	if err != nil {
		return err
	}
	estimator := model.NewCharEstimator(cfg.Models.CharsPerToken)

	coordinator := continuation.New(continuation.Config{
		Store:        store,
		Models:       catalog,
		Assembler:    history.NewAssembler(estimator),
		DefaultModel: catalog.Default(),
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracing.Tracer(),
	})

	registry := tool.NewRegistry()
	// Nil responder selects relay mode: the MCP client owns the model,
	// the engine owns the conversation state.
	chat := tool.NewChatTool(store, catalog, catalog.Default(), nil, logger)
	if err := registry.Register(chat); err != nil {
		return err
	}

	if cfg.Gateway.Enabled {
		gw := gateway.New(gateway.Config{
			Bind:            cfg.Gateway.Bind,
			ReadTimeout:     cfg.Gateway.ReadTimeout.Std(),
			WriteTimeout:    cfg.Gateway.WriteTimeout.Std(),
			ShutdownTimeout: cfg.Gateway.ShutdownTimeout.Std(),
		}, version, registry.Names(), metrics, logger)
		if err := gw.Start(); err != nil {
			return err
		}
		defer func() {
			if err := gw.Stop(context.Background()); err != nil {
				logger.Warn("gateway stop failed", "error", err)
			}
		}()
	}

	srv := server.New(server.Config{
		Name:        "threadline",
		Version:     version,
		Registry:    registry,
		Coordinator: coordinator,
		Logger:      logger,
	})

	logger.Info("serving over stdio",
		"version", version,
		"store", storeBackend(cfg.Store),
		"default_model", catalog.Default(),
	)
	return srv.ServeStdio(ctx)
}

// openStore builds the configured thread store. The cleanup function
// stops the sweeper and closes the database where applicable.
func openStore(cfg config.StoreConfig, limits thread.Limits, logger *slog.Logger) (thread.Store, func(), error) {
	if storeBackend(cfg) == config.BackendMemory {
		return thread.NewInMemoryStore(limits), func() {}, nil
	}

	store, err := sqlite.Open(cfg.Path, limits, logger)
	if err != nil {
		return nil, nil, err
	}

	sweeper := sqlite.NewSweeper(store, cfg.SweepSchedule, logger)
	if err := sweeper.Start(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	cleanup := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sweeper.Stop(stopCtx); err != nil {
			logger.Warn("sweeper stop failed", "error", err)
		}
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}
	return store, cleanup, nil
}

func storeBackend(cfg config.StoreConfig) string {
	if cfg.Backend == "" {
		return config.BackendMemory
	}
	return cfg.Backend
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	// Stderr keeps stdout clean for the MCP stdio transport.
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
