package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"

	"github.com/onllm-dev/claudewatch/internal/alerts"
	"github.com/onllm-dev/claudewatch/internal/api"
	"github.com/onllm-dev/claudewatch/internal/cliprobe"
	"github.com/onllm-dev/claudewatch/internal/config"
	"github.com/onllm-dev/claudewatch/internal/creds"
	"github.com/onllm-dev/claudewatch/internal/notify"
	"github.com/onllm-dev/claudewatch/internal/poller"
	"github.com/onllm-dev/claudewatch/internal/source"
	"github.com/onllm-dev/claudewatch/internal/store"
	"github.com/onllm-dev/claudewatch/internal/web"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Parse flags and load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Handle version flag
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("ClaudeWatch v%s\n", version)
			return nil
		}
		if arg == "--help" || arg == "-h" {
			printHelp()
			return nil
		}
	}

	// Setup logging
	logWriter, err := cfg.LogWriter()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer func() {
		if closer, ok := logWriter.(interface{ Close() error }); ok && !cfg.DebugMode {
			closer.Close()
		}
	}()

	// Parse log level
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Print startup banner
	printBanner(cfg, version)

	// Open database
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	logger.Info("Database opened", "path", cfg.DBPath)

	// Usage source
	src, err := buildSource(cfg, db, logger)
	if err != nil {
		return err
	}

	// Notification sinks
	notifier, err := buildNotifier(cfg, db, logger)
	if err != nil {
		return err
	}

	// Alert engine and poll controller
	engine := alerts.NewEngine(db, notifier, logger)
	controller := poller.New(src, engine, cfg.PollInterval, logger)

	// Status API
	auth, err := web.NewTokenAuth(cfg.AuthToken)
	if err != nil {
		return fmt.Errorf("failed to setup auth: %w", err)
	}
	server := web.NewServer(controller, auth, cfg.Port, logger)

	// Setup signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	controller.Start()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	if cfg.OpenBrowser {
		if err := browser.OpenURL(server.URL() + "/api/status"); err != nil {
			logger.Warn("Failed to open browser", "error", err)
		}
	}

	// Wait for signal or server failure
	select {
	case sig := <-sigChan:
		logger.Info("Received signal, shutting down gracefully", "signal", sig)
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	// Graceful shutdown sequence
	logger.Info("Shutting down...")

	controller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("Database close error", "error", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

// buildSource wires the configured usage source.
func buildSource(cfg *config.Config, db *store.Store, logger *slog.Logger) (source.Client, error) {
	switch cfg.Source {
	case config.SourceWeb:
		client := api.NewClaudeClient(logger)
		provider := creds.NewStoreProvider(db)
		return source.NewWeb(client, provider, db, logger), nil
	case config.SourceOAuth:
		return source.NewOAuth(api.NewOAuthClient(logger), logger), nil
	case config.SourceCLI:
		return cliprobe.NewProber(logger), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

// buildNotifier assembles the notification sinks: desktop always, email when
// an SMTP host is configured. The SMTP password lives encrypted in the
// settings store.
func buildNotifier(cfg *config.Config, db *store.Store, logger *slog.Logger) (alerts.Notifier, error) {
	sinks := notify.Multi{notify.NewDesktop(logger)}

	if cfg.SMTPHost != "" {
		password, err := smtpPassword(cfg, db)
		if err != nil {
			return nil, err
		}
		mailer := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: password,
			Protocol: cfg.SMTPProtocol,
			FromAddr: cfg.SMTPFrom,
			FromName: "ClaudeWatch",
			ToAddrs:  cfg.SMTPRecipients(),
		}, logger)
		sinks = append(sinks, notify.NewEmail(mailer))
	}

	return sinks, nil
}

// smtpPassword decrypts the stored SMTP password, if any.
func smtpPassword(cfg *config.Config, db *store.Store) (string, error) {
	encrypted, ok, err := db.GetSetting(store.KeySMTPPasswordEnc)
	if err != nil {
		return "", fmt.Errorf("failed to read smtp password: %w", err)
	}
	if !ok || encrypted == "" {
		return "", nil
	}
	if cfg.EncryptionKey == "" {
		return "", fmt.Errorf("CLAUDEWATCH_ENCRYPTION_KEY is required to decrypt the stored smtp password")
	}
	password, err := notify.Decrypt(encrypted, cfg.EncryptionKey)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt smtp password: %w", err)
	}
	return password, nil
}

func printBanner(cfg *config.Config, version string) {
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Printf("║  ClaudeWatch v%-22s ║\n", version)
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Source:    %-24s ║\n", cfg.Source)
	fmt.Printf("║  Polling:   every %-18s ║\n", cfg.PollInterval)
	fmt.Printf("║  Status:    http://localhost:%-7d ║\n", cfg.Port)
	fmt.Printf("║  Database:  %-24s ║\n", cfg.DBPath)
	fmt.Println("╚══════════════════════════════════════╝")
	fmt.Println()
}

func printHelp() {
	fmt.Println("ClaudeWatch - Claude usage limit monitor")
	fmt.Println()
	fmt.Println("Usage: claudewatch [OPTIONS]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version          Print version and exit")
	fmt.Println("  --help             Print this help message")
	fmt.Println("  --source NAME      Usage source: web, oauth, or cli (default: web)")
	fmt.Println("  --interval SEC     Polling interval in seconds (default: 60)")
	fmt.Println("  --port PORT        Status API HTTP port (default: 8937)")
	fmt.Println("  --db PATH          SQLite database file path (default: ./claudewatch.db)")
	fmt.Println("  --debug            Run in foreground mode, log to stdout")
	fmt.Println("  --open             Open the status page in a browser on startup")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  CLAUDEWATCH_SESSION_KEY     claude.ai session key (web source)")
	fmt.Println("  CLAUDEWATCH_SOURCE          Usage source: web, oauth, or cli")
	fmt.Println("  CLAUDEWATCH_POLL_INTERVAL   Polling interval in seconds")
	fmt.Println("  CLAUDEWATCH_PORT            Status API HTTP port")
	fmt.Println("  CLAUDEWATCH_AUTH_TOKEN      Bearer token guarding the status API")
	fmt.Println("  CLAUDEWATCH_DB_PATH         SQLite database file path")
	fmt.Println("  CLAUDEWATCH_LOG_LEVEL       Log level: debug, info, warn, error")
	fmt.Println("  CLAUDEWATCH_ENCRYPTION_KEY  Hex key for the stored SMTP password")
	fmt.Println("  CLAUDEWATCH_SMTP_HOST       SMTP relay for email alerts (optional)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  claudewatch                            # Monitor via claude.ai web API")
	fmt.Println("  claudewatch --source oauth --debug     # OAuth source, foreground mode")
	fmt.Println("  claudewatch --interval 30 --port 8080  # Custom interval and port")
}
