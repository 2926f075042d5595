package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
api:
  host: "127.0.0.1"
  port: 9000
process:
  kill_grace: 3s
  event_buffer: 64
java:
  search_paths: ["/opt/jdks"]
  version_filter: "1.8"
history:
  path: "/tmp/history.db"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath, false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.Process.KillGrace != 3*time.Second {
		t.Errorf("Process.KillGrace = %v, want 3s", cfg.Process.KillGrace)
	}
	if cfg.Process.EventBuffer != 64 {
		t.Errorf("Process.EventBuffer = %d, want 64", cfg.Process.EventBuffer)
	}
	if len(cfg.Java.SearchPaths) != 1 || cfg.Java.SearchPaths[0] != "/opt/jdks" {
		t.Errorf("Java.SearchPaths = %v, want [/opt/jdks]", cfg.Java.SearchPaths)
	}
	if cfg.History.Path != "/tmp/history.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/tmp/history.db")
	}
	// Untouched sections keep their defaults
	if cfg.WebSocket.PingInterval != 30 {
		t.Errorf("WebSocket.PingInterval = %d, want 30", cfg.WebSocket.PingInterval)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml", false)
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_MissingFileAllowed(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml", true)
	if err != nil {
		t.Fatalf("Load() error = %v, want defaults", err)
	}
	if cfg.API.Port != 7878 {
		t.Errorf("API.Port = %d, want 7878", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath, true)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
api:
  port: 0
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath, false)
	if err == nil {
		t.Error("Load() expected validation error for port 0, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "zero event buffer", mutate: func(c *Config) { c.Process.EventBuffer = 0 }, wantErr: true},
		{name: "negative kill grace", mutate: func(c *Config) { c.Process.KillGrace = -time.Second }, wantErr: true},
		{name: "negative max processes", mutate: func(c *Config) { c.Process.MaxProcesses = -1 }, wantErr: true},
		{name: "unknown dialog backend", mutate: func(c *Config) { c.Dialog.Backend = "kdialog" }, wantErr: true},
		{name: "dialogs disabled", mutate: func(c *Config) { c.Dialog.Backend = "none" }, wantErr: false},
		{name: "release template without verb", mutate: func(c *Config) { c.Release.URLTemplate = "https://x" }, wantErr: true},
		{name: "history enabled without path", mutate: func(c *Config) { c.History.Path = "" }, wantErr: true},
		{name: "history disabled without path", mutate: func(c *Config) { c.History.Enabled = false; c.History.Path = "" }, wantErr: false},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "token secret too short", mutate: func(c *Config) { c.Security.TokenSecret = "short" }, wantErr: true},
		{name: "token secret ok", mutate: func(c *Config) { c.Security.TokenSecret = "test-secret-key-at-least-32-chars!" }, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("NATIVEHOST_API_HOST", "0.0.0.0")
	t.Setenv("NATIVEHOST_API_PORT", "9100")
	t.Setenv("NATIVEHOST_LOG_LEVEL", "debug")
	t.Setenv("NATIVEHOST_HISTORY_PATH", "/custom/history.db")
	t.Setenv("NATIVEHOST_MQTT_HOST", "mqtt.example.com")
	t.Setenv("NATIVEHOST_MQTT_USERNAME", "testuser")
	t.Setenv("NATIVEHOST_MQTT_PASSWORD", "testpass")
	t.Setenv("NATIVEHOST_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("NATIVEHOST_TOKEN_SECRET", "token-secret")

	applyEnvOverrides(cfg)

	if cfg.API.Host != "0.0.0.0" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "0.0.0.0")
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.History.Path != "/custom/history.db" {
		t.Errorf("History.Path = %q, want %q", cfg.History.Path, "/custom/history.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Security.TokenSecret != "token-secret" {
		t.Errorf("Security.TokenSecret = %q, want %q", cfg.Security.TokenSecret, "token-secret")
	}
}

func TestApplyEnvOverrides_InvalidPortIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("NATIVEHOST_API_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.API.Port != 7878 {
		t.Errorf("API.Port = %d, want 7878", cfg.API.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("defaultConfig API.Host = %q, want loopback", cfg.API.Host)
	}
	if cfg.Process.EventBuffer == 0 {
		t.Error("defaultConfig should have non-zero Process.EventBuffer")
	}
	if cfg.MQTT.Enabled {
		t.Error("defaultConfig should have MQTT disabled")
	}
	if cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should have InfluxDB disabled")
	}
	if cfg.Security.TokenSecret != "" {
		t.Error("defaultConfig should not ship a token secret")
	}
}
