package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dandifs/internal/logger"
	"github.com/marmos91/dandifs/pkg/config"
	"github.com/marmos91/dandifs/pkg/server"
	"github.com/marmos91/dandifs/pkg/vfs"
	"github.com/spf13/pflag"
)

// version is injected at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := pflag.StringP("config", "c", "", "Path to configuration file (default: $DANDIFS_CONFIG, then the XDG config dir)")
	logLevel := pflag.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	initConfig := pflag.Bool("init-config", false, "Write a sample config file to the default location and exit")
	force := pflag.Bool("force", false, "Overwrite an existing config file with --init-config")
	showVersion := pflag.BoolP("version", "v", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("dandifs %s\n", version)
		return
	}

	if *initConfig {
		path, err := config.InitConfig(*force)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write config file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample config written to %s\n", path)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// CLI flags take precedence over file and environment values.
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger.SetFormat(cfg.Logging.Format)
	logger.SetLevel(cfg.Logging.Level)
	defer logger.Sync()

	fmt.Println("DandiFS - DANDI Archive Filesystem")
	logger.Info("Log level set to: %s", cfg.Logging.Level)

	// Cancelled on SIGINT/SIGTERM; Serve drains the adapters before
	// returning.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsResult := config.InitializeMetrics(cfg)
	if cfg.Metrics.Enabled {
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	archive, err := config.CreateArchiveClient(cfg, metricsResult.ArchiveMetrics)
	if err != nil {
		logger.Fatal("Failed to create archive client: %v", err)
	}

	objects, err := config.CreateObjectStore(ctx, cfg, metricsResult.ObjectStoreMetrics)
	if err != nil {
		logger.Fatal("Failed to create object store: %v", err)
	}

	resolver := vfs.New(archive, objects, vfs.WithMetrics(metricsResult.ResolverMetrics))

	adapters, err := config.CreateAdapters(cfg, resolver, metricsResult)
	if err != nil {
		logger.Fatal("Failed to create adapters: %v", err)
	}

	registry := server.NewRegistry()
	for _, adp := range adapters {
		if err := registry.Register(adp); err != nil {
			logger.Fatal("Failed to register %s adapter: %v", adp.Protocol(), err)
		}
	}

	srv := server.New(registry, metricsResult.Server)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("Server error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}
