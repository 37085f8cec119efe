// Package config handles loading and validation of ClaudeWatch
// configuration. It loads from .env files, environment variables, and CLI
// flags.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

// Usage sources.
const (
	SourceWeb   = "web"
	SourceOAuth = "oauth"
	SourceCLI   = "cli"
)

var validSources = []string{SourceWeb, SourceOAuth, SourceCLI}

// Config holds all application configuration.
type Config struct {
	Source        string        // CLAUDEWATCH_SOURCE (web|oauth|cli)
	PollInterval  time.Duration // CLAUDEWATCH_POLL_INTERVAL (seconds → Duration)
	Port          int           // CLAUDEWATCH_PORT
	AuthToken     string        // CLAUDEWATCH_AUTH_TOKEN (status API bearer token)
	DBPath        string        // CLAUDEWATCH_DB_PATH
	LogLevel      string        // CLAUDEWATCH_LOG_LEVEL
	EncryptionKey string        // CLAUDEWATCH_ENCRYPTION_KEY (hex, for stored SMTP password)
	DebugMode     bool          // --debug flag (foreground mode)
	OpenBrowser   bool          // --open flag

	SMTPHost     string // CLAUDEWATCH_SMTP_HOST ("" disables email alerts)
	SMTPPort     int    // CLAUDEWATCH_SMTP_PORT
	SMTPUsername string // CLAUDEWATCH_SMTP_USERNAME
	SMTPProtocol string // CLAUDEWATCH_SMTP_PROTOCOL (none|starttls|tls)
	SMTPFrom     string // CLAUDEWATCH_SMTP_FROM
	SMTPTo       string // CLAUDEWATCH_SMTP_TO (comma-separated)
}

// flagValues holds parsed CLI flags.
type flagValues struct {
	source   string
	interval int
	port     int
	db       string
	debug    bool
	open     bool
}

// Load reads configuration from .env file, environment variables, and CLI flags.
// Flags take precedence over environment variables.
func Load() (*Config, error) {
	return loadWithArgs(os.Args[1:])
}

// loadWithArgs loads config with specific arguments (for testing).
func loadWithArgs(args []string) (*Config, error) {
	flags := &flagValues{}

	// Parse CLI flags manually to avoid flag.ExitOnError in tests
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--debug":
			flags.debug = true
		case arg == "--open":
			flags.open = true
		case strings.HasPrefix(arg, "--source="):
			flags.source = strings.TrimPrefix(arg, "--source=")
		case arg == "--source":
			if i+1 < len(args) {
				flags.source = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--interval="):
			val := strings.TrimPrefix(arg, "--interval=")
			if v, err := strconv.Atoi(val); err == nil {
				flags.interval = v
			}
		case arg == "--interval":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					flags.interval = v
					i++
				}
			}
		case strings.HasPrefix(arg, "--port="):
			val := strings.TrimPrefix(arg, "--port=")
			if v, err := strconv.Atoi(val); err == nil {
				flags.port = v
			}
		case arg == "--port":
			if i+1 < len(args) {
				if v, err := strconv.Atoi(args[i+1]); err == nil {
					flags.port = v
					i++
				}
			}
		case strings.HasPrefix(arg, "--db="):
			flags.db = strings.TrimPrefix(arg, "--db=")
		case arg == "--db":
			if i+1 < len(args) {
				flags.db = args[i+1]
				i++
			}
		}
	}

	return loadFromEnvAndFlags(flags)
}

// loadFromEnvAndFlags combines environment variables with CLI flags.
func loadFromEnvAndFlags(flags *flagValues) (*Config, error) {
	// Try to load .env file (ignore errors - file is optional)
	_ = godotenv.Load(".env")

	cfg := &Config{}

	// Usage source
	if flags.source != "" {
		cfg.Source = flags.source
	} else {
		cfg.Source = os.Getenv("CLAUDEWATCH_SOURCE")
	}

	// Poll Interval (seconds)
	if flags.interval > 0 {
		cfg.PollInterval = time.Duration(flags.interval) * time.Second
	} else if env := os.Getenv("CLAUDEWATCH_POLL_INTERVAL"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			cfg.PollInterval = time.Duration(v) * time.Second
		}
	}

	// Port
	if flags.port > 0 {
		cfg.Port = flags.port
	} else if env := os.Getenv("CLAUDEWATCH_PORT"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			cfg.Port = v
		}
	}

	// Status API bearer token (optional; empty leaves the API open on localhost)
	cfg.AuthToken = os.Getenv("CLAUDEWATCH_AUTH_TOKEN")

	// DB Path
	if flags.db != "" {
		cfg.DBPath = flags.db
	} else {
		cfg.DBPath = os.Getenv("CLAUDEWATCH_DB_PATH")
	}

	// Log Level
	cfg.LogLevel = os.Getenv("CLAUDEWATCH_LOG_LEVEL")

	// Encryption key for the stored SMTP password
	cfg.EncryptionKey = os.Getenv("CLAUDEWATCH_ENCRYPTION_KEY")

	// SMTP sink (optional)
	cfg.SMTPHost = os.Getenv("CLAUDEWATCH_SMTP_HOST")
	if env := os.Getenv("CLAUDEWATCH_SMTP_PORT"); env != "" {
		if v, err := strconv.Atoi(env); err == nil {
			cfg.SMTPPort = v
		}
	}
	cfg.SMTPUsername = os.Getenv("CLAUDEWATCH_SMTP_USERNAME")
	cfg.SMTPProtocol = os.Getenv("CLAUDEWATCH_SMTP_PROTOCOL")
	cfg.SMTPFrom = os.Getenv("CLAUDEWATCH_SMTP_FROM")
	cfg.SMTPTo = os.Getenv("CLAUDEWATCH_SMTP_TO")

	// CLI-only flags
	cfg.DebugMode = flags.debug
	cfg.OpenBrowser = flags.open

	// Apply defaults
	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for empty config fields.
func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = SourceWeb
	}
	if c.PollInterval == 0 {
		c.PollInterval = 60 * time.Second
	}
	if c.Port == 0 {
		c.Port = 8937
	}
	if c.DBPath == "" {
		c.DBPath = "./claudewatch.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.SMTPPort == 0 {
		c.SMTPPort = 587
	}
	if c.SMTPProtocol == "" {
		c.SMTPProtocol = "starttls"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if !lo.Contains(validSources, c.Source) {
		return fmt.Errorf("source must be one of %s", strings.Join(validSources, ", "))
	}

	// Poll interval bounds
	minInterval := 10 * time.Second
	maxInterval := 3600 * time.Second
	if c.PollInterval < minInterval {
		return fmt.Errorf("poll interval must be at least %v", minInterval)
	}
	if c.PollInterval > maxInterval {
		return fmt.Errorf("poll interval must be at most %v", maxInterval)
	}

	// Port range
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1024 and 65535")
	}

	if c.SMTPHost != "" {
		switch c.SMTPProtocol {
		case "none", "starttls", "tls":
		default:
			return fmt.Errorf("smtp protocol must be none, starttls, or tls")
		}
		if c.SMTPFrom == "" || c.SMTPTo == "" {
			return fmt.Errorf("smtp from and to addresses are required when smtp host is set")
		}
	}

	return nil
}

// SMTPRecipients returns the parsed recipient list.
func (c *Config) SMTPRecipients() []string {
	if c.SMTPTo == "" {
		return nil
	}
	parts := strings.Split(c.SMTPTo, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// String returns a redacted string representation of the config.
func (c *Config) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Config{\n")
	fmt.Fprintf(&sb, "  Source: %s,\n", c.Source)
	fmt.Fprintf(&sb, "  PollInterval: %v,\n", c.PollInterval)
	fmt.Fprintf(&sb, "  Port: %d,\n", c.Port)
	fmt.Fprintf(&sb, "  AuthToken: %s,\n", redactSecret(c.AuthToken))
	fmt.Fprintf(&sb, "  DBPath: %s,\n", c.DBPath)
	fmt.Fprintf(&sb, "  LogLevel: %s,\n", c.LogLevel)
	fmt.Fprintf(&sb, "  EncryptionKey: %s,\n", redactSecret(c.EncryptionKey))
	fmt.Fprintf(&sb, "  DebugMode: %v,\n", c.DebugMode)
	fmt.Fprintf(&sb, "  OpenBrowser: %v,\n", c.OpenBrowser)
	fmt.Fprintf(&sb, "  SMTPHost: %s,\n", c.SMTPHost)
	fmt.Fprintf(&sb, "}")

	return sb.String()
}

// redactSecret masks a secret for display.
func redactSecret(v string) string {
	if v == "" {
		return "(empty)"
	}
	return "****"
}

// LogWriter returns the appropriate log destination based on debug mode.
// In debug mode: returns os.Stdout
// In background mode: returns a file handle to .claudewatch.log
func (c *Config) LogWriter() (io.Writer, error) {
	if c.DebugMode {
		return os.Stdout, nil
	}

	// Background mode: log to file in same directory as DB
	logPath := filepath.Join(filepath.Dir(c.DBPath), ".claudewatch.log")

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return file, nil
}
