package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolateEnv clears the environment for the duration of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	origEnv := os.Environ()
	os.Clearenv()
	t.Cleanup(func() {
		os.Clearenv()
		for _, e := range origEnv {
			pair := strings.SplitN(e, "=", 2)
			if len(pair) == 2 {
				os.Setenv(pair[0], pair[1]) //nolint:errcheck,gosec // Test setup
			}
		}
	})
	// Avoid picking up a config.toml from the package directory
	os.Setenv("NMRCERM_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.toml")) //nolint:errcheck,gosec // Test setup
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.DatabasePath != "fandango.db" {
		t.Errorf("DatabasePath = %v, want fandango.db", cfg.DatabasePath)
	}
	if cfg.Metadata.OutputPath != "metadata" {
		t.Errorf("OutputPath = %v, want metadata", cfg.Metadata.OutputPath)
	}
	if cfg.Aria.BaseURL != DefaultAriaURL {
		t.Errorf("Aria.BaseURL = %v, want %v", cfg.Aria.BaseURL, DefaultAriaURL)
	}
	if cfg.Aria.RateLimit != 10 || cfg.Aria.RateBurst != 5 {
		t.Errorf("rate = %v/%v, want 10/5", cfg.Aria.RateLimit, cfg.Aria.RateBurst)
	}
	if cfg.Aria.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Aria.Timeout)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name         string
		envVars      map[string]string
		wantDBPath   string
		wantBaseURL  string
		wantUser     string
		wantOutput   string
		wantTokenURL string
		wantInsecure bool
	}{
		{
			name:         "defaults only",
			envVars:      map[string]string{},
			wantDBPath:   "fandango.db",
			wantOutput:   "metadata",
			wantTokenURL: DefaultAriaURL + "/oauth2/token",
		},
		{
			name: "environment overrides",
			envVars: map[string]string{
				"DATABASE_PATH":        "/data/fandango.db",
				"BASE_URL":             "https://nmr.example.org",
				"USERNAME":             "operator",
				"METADATA_OUTPUT_PATH": "/data/metadata",
				"ARIA_URL":             "https://aria.test/",
				"INSECURE_SKIP_VERIFY": "true",
			},
			wantDBPath:   "/data/fandango.db",
			wantBaseURL:  "https://nmr.example.org",
			wantUser:     "operator",
			wantOutput:   "/data/metadata",
			wantTokenURL: "https://aria.test/oauth2/token",
			wantInsecure: true,
		},
		{
			name: "explicit token url wins",
			envVars: map[string]string{
				"ARIA_TOKEN_URL": "https://auth.test/token",
			},
			wantDBPath:   "fandango.db",
			wantOutput:   "metadata",
			wantTokenURL: "https://auth.test/token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.envVars {
				os.Setenv(k, v) //nolint:errcheck,gosec // Test setup
			}

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			if cfg.DatabasePath != tt.wantDBPath {
				t.Errorf("DatabasePath = %v, want %v", cfg.DatabasePath, tt.wantDBPath)
			}
			if cfg.MetadataServer.BaseURL != tt.wantBaseURL {
				t.Errorf("BaseURL = %v, want %v", cfg.MetadataServer.BaseURL, tt.wantBaseURL)
			}
			if cfg.MetadataServer.Username != tt.wantUser {
				t.Errorf("Username = %v, want %v", cfg.MetadataServer.Username, tt.wantUser)
			}
			if cfg.Metadata.OutputPath != tt.wantOutput {
				t.Errorf("OutputPath = %v, want %v", cfg.Metadata.OutputPath, tt.wantOutput)
			}
			if cfg.Aria.TokenURL != tt.wantTokenURL {
				t.Errorf("TokenURL = %v, want %v", cfg.Aria.TokenURL, tt.wantTokenURL)
			}
			if cfg.MetadataServer.InsecureSkipVerify != tt.wantInsecure {
				t.Errorf("InsecureSkipVerify = %v, want %v", cfg.MetadataServer.InsecureSkipVerify, tt.wantInsecure)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
database_path = "/srv/fandango.db"

[metadata_server]
base_url = "https://file.example.org"
username = "from-file"

[aria]
client_id = "client"
client_secret = "secret"
rate_limit = 2.5
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	os.Setenv("NMRCERM_CONFIG_PATH", path) //nolint:errcheck,gosec // Test setup
	os.Setenv("USERNAME", "from-env")      //nolint:errcheck,gosec // Test setup

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.DatabasePath != "/srv/fandango.db" {
		t.Errorf("DatabasePath = %v", cfg.DatabasePath)
	}
	if cfg.MetadataServer.BaseURL != "https://file.example.org" {
		t.Errorf("BaseURL = %v", cfg.MetadataServer.BaseURL)
	}
	if cfg.MetadataServer.Username != "from-env" {
		t.Errorf("Username = %v, want env to override file", cfg.MetadataServer.Username)
	}
	if cfg.Aria.RateLimit != 2.5 {
		t.Errorf("RateLimit = %v, want 2.5", cfg.Aria.RateLimit)
	}
	if cfg.Aria.RateBurst != 5 {
		t.Errorf("RateBurst = %v, want default 5", cfg.Aria.RateBurst)
	}
	if err := cfg.ValidateAria(); err != nil {
		t.Errorf("ValidateAria() = %v", err)
	}
}

func TestLoadInvalidEnv(t *testing.T) {
	isolateEnv(t)
	os.Setenv("ARIA_RATE_LIMIT", "fast") //nolint:errcheck,gosec // Test setup

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid ARIA_RATE_LIMIT")
	}
}

func TestValidateMetadataServer(t *testing.T) {
	cfg := defaultConfig()
	err := cfg.ValidateMetadataServer()
	if err == nil {
		t.Fatal("expected error for empty metadata server config")
	}
	for _, key := range []string{"BASE_URL", "USERNAME", "PASSWORD"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}

	cfg.MetadataServer = MetadataServerConfig{BaseURL: "https://x", Username: "u", Password: "p"}
	if err := cfg.ValidateMetadataServer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestStringOmitsSecrets(t *testing.T) {
	cfg := defaultConfig()
	cfg.MetadataServer.Password = "hunter2"
	cfg.Aria.ClientSecret = "s3cret"

	s := cfg.String()
	if strings.Contains(s, "hunter2") || strings.Contains(s, "s3cret") {
		t.Errorf("String() leaks secrets: %s", s)
	}
}
