package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestConfig_LoadsFromEnv(t *testing.T) {
	os.Setenv("CLAUDEWATCH_SOURCE", "oauth")
	os.Setenv("CLAUDEWATCH_POLL_INTERVAL", "120")
	os.Setenv("CLAUDEWATCH_PORT", "8080")
	os.Setenv("CLAUDEWATCH_AUTH_TOKEN", "secret-token")
	os.Setenv("CLAUDEWATCH_DB_PATH", "/tmp/test.db")
	os.Setenv("CLAUDEWATCH_LOG_LEVEL", "debug")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Source != "oauth" {
		t.Errorf("Source = %q, want %q", cfg.Source, "oauth")
	}
	if cfg.PollInterval != 120*time.Second {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, 120*time.Second)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want %d", cfg.Port, 8080)
	}
	if cfg.AuthToken != "secret-token" {
		t.Errorf("AuthToken = %q, want %q", cfg.AuthToken, "secret-token")
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/test.db")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Source != SourceWeb {
		t.Errorf("Source = %q, want %q", cfg.Source, SourceWeb)
	}
	if cfg.PollInterval != 60*time.Second {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, 60*time.Second)
	}
	if cfg.Port != 8937 {
		t.Errorf("Port = %d, want %d", cfg.Port, 8937)
	}
	if cfg.DBPath != "./claudewatch.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./claudewatch.db")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestConfig_ValidatesSource(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		wantErr bool
	}{
		{"web", "web", false},
		{"oauth", "oauth", false},
		{"cli", "cli", false},
		{"unknown", "carrier-pigeon", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("CLAUDEWATCH_SOURCE", tt.source)
			defer os.Clearenv()

			_, err := Load()
			if tt.wantErr && err == nil {
				t.Errorf("Load() should fail for source %q", tt.source)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Load() should succeed for source %q, got: %v", tt.source, err)
			}
		})
	}
}

func TestConfig_ValidatesInterval_Minimum(t *testing.T) {
	os.Setenv("CLAUDEWATCH_POLL_INTERVAL", "5")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail with interval < 10s")
	}
}

func TestConfig_ValidatesInterval_Maximum(t *testing.T) {
	os.Setenv("CLAUDEWATCH_POLL_INTERVAL", "7200")
	defer os.Clearenv()

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail with interval > 3600s")
	}
}

func TestConfig_ValidatesPort_Range(t *testing.T) {
	tests := []struct {
		name   string
		port   string
		wantOK bool
	}{
		{"valid port", "8937", true},
		{"min valid", "1024", true},
		{"max valid", "65535", true},
		{"too low", "1023", false},
		{"too high", "65536", false},
		{"privileged", "80", false},
		{"negative", "-1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("CLAUDEWATCH_PORT", tt.port)
			defer os.Clearenv()

			_, err := Load()
			if tt.wantOK && err != nil {
				t.Errorf("Load() should succeed for port %s, got: %v", tt.port, err)
			}
			if !tt.wantOK && err == nil {
				t.Errorf("Load() should fail for port %s", tt.port)
			}
		})
	}
}

func TestConfig_ValidatesSMTP(t *testing.T) {
	os.Clearenv()
	os.Setenv("CLAUDEWATCH_SMTP_HOST", "smtp.example.com")
	defer os.Clearenv()

	// host set without from/to must fail
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail when smtp host is set without from/to")
	}

	os.Setenv("CLAUDEWATCH_SMTP_FROM", "watch@example.com")
	os.Setenv("CLAUDEWATCH_SMTP_TO", "a@example.com, b@example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.SMTPPort != 587 {
		t.Errorf("SMTPPort = %d, want 587", cfg.SMTPPort)
	}
	if cfg.SMTPProtocol != "starttls" {
		t.Errorf("SMTPProtocol = %q, want starttls", cfg.SMTPProtocol)
	}
	got := cfg.SMTPRecipients()
	if len(got) != 2 || got[0] != "a@example.com" || got[1] != "b@example.com" {
		t.Errorf("SMTPRecipients() = %v", got)
	}

	os.Setenv("CLAUDEWATCH_SMTP_PROTOCOL", "smoke-signal")
	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail for unknown smtp protocol")
	}
}

func TestConfig_RedactsSecrets(t *testing.T) {
	cfg := &Config{
		AuthToken:     "super-secret-token",
		EncryptionKey: "deadbeefdeadbeef",
	}

	str := cfg.String()
	if strings.Contains(str, "super-secret-token") {
		t.Error("String() should not contain the auth token")
	}
	if strings.Contains(str, "deadbeefdeadbeef") {
		t.Error("String() should not contain the encryption key")
	}
}

func TestConfig_LoadWithArgs_FlagOverridesEnv(t *testing.T) {
	os.Setenv("CLAUDEWATCH_SOURCE", "web")
	os.Setenv("CLAUDEWATCH_POLL_INTERVAL", "120")
	os.Setenv("CLAUDEWATCH_PORT", "8080")
	os.Setenv("CLAUDEWATCH_DB_PATH", "/tmp/env.db")
	defer os.Clearenv()

	cfg, err := loadWithArgs([]string{"--source", "cli", "--interval", "30", "--port", "9000", "--db", "/tmp/flag.db"})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Source != "cli" {
		t.Errorf("Source = %q, want %q", cfg.Source, "cli")
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, 30*time.Second)
	}
	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want %d", cfg.Port, 9000)
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "/tmp/flag.db")
	}
}

func TestConfig_LoadWithArgs_EqualsSyntax(t *testing.T) {
	os.Clearenv()

	cfg, err := loadWithArgs([]string{"--interval=45", "--port=7777", "--source=oauth"})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.PollInterval != 45*time.Second {
		t.Errorf("PollInterval = %v, want %v", cfg.PollInterval, 45*time.Second)
	}
	if cfg.Port != 7777 {
		t.Errorf("Port = %d, want %d", cfg.Port, 7777)
	}
	if cfg.Source != "oauth" {
		t.Errorf("Source = %q, want %q", cfg.Source, "oauth")
	}
}

func TestConfig_Flags_DebugAndOpen(t *testing.T) {
	os.Clearenv()

	cfg, err := loadWithArgs([]string{"--debug", "--open"})
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if !cfg.DebugMode {
		t.Error("DebugMode should be true when --debug flag is set")
	}
	if !cfg.OpenBrowser {
		t.Error("OpenBrowser should be true when --open flag is set")
	}
}

func TestConfig_LogWriter(t *testing.T) {
	cfg := &Config{
		DebugMode: true,
	}
	writer, err := cfg.LogWriter()
	if err != nil {
		t.Fatalf("LogWriter() failed: %v", err)
	}
	if writer != os.Stdout {
		t.Error("Debug mode should return os.Stdout")
	}

	cfg = &Config{
		DebugMode: false,
		DBPath:    "/tmp/test_claudewatch.db",
	}
	writer, err = cfg.LogWriter()
	if err != nil {
		t.Fatalf("LogWriter() failed: %v", err)
	}
	if writer == os.Stdout {
		t.Error("Background mode should not return os.Stdout")
	}
}
