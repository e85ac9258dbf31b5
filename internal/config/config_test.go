package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fullYAML = `
server:
  host: 0.0.0.0
  port_min: 9000
  port_max: 9010
  send_buffer: 128

discovery:
  host: 10.0.0.5
  port_min: 9000
  port_max: 9005
  attempt_timeout_ms: 250
  reconnect_delay_ms: 1000
  backoff_ms: 3000

journal:
  driver: mysql
  mysql:
    host: db.internal
    port: 3307
    user: hud
    database: hud_audit
  retention_days: 30
  cleanup_schedule: "0 4 * * *"

notify:
  min_priority: medium
  command: 'notify-send "{{title}}" "{{message}}"'
  slack:
    bot_token: xoxb-1
    channel_id: C123
  discord:
    bot_token: abc
    channel_id: "456"

log:
  level: debug
  format: json
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q", cfg.Server.Host)
	}
	if cfg.Server.PortMin != 9000 || cfg.Server.PortMax != 9010 {
		t.Errorf("Server ports = %d..%d", cfg.Server.PortMin, cfg.Server.PortMax)
	}
	if cfg.Server.SendBuffer != 128 {
		t.Errorf("SendBuffer = %d", cfg.Server.SendBuffer)
	}
	if cfg.Discovery.Host != "10.0.0.5" || cfg.Discovery.PortMax != 9005 {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	if cfg.Discovery.AttemptTimeoutMS != 250 || cfg.Discovery.ReconnectDelayMS != 1000 || cfg.Discovery.BackoffMS != 3000 {
		t.Errorf("Discovery timings = %+v", cfg.Discovery)
	}
	if cfg.Journal.Driver != "mysql" || cfg.Journal.MySQL.Host != "db.internal" || cfg.Journal.MySQL.Port != 3307 {
		t.Errorf("Journal = %+v", cfg.Journal)
	}
	if cfg.Journal.MySQL.User != "hud" || cfg.Journal.MySQL.Database != "hud_audit" {
		t.Errorf("Journal.MySQL = %+v", cfg.Journal.MySQL)
	}
	if cfg.Journal.RetentionDays != 30 || cfg.Journal.CleanupSchedule != "0 4 * * *" {
		t.Errorf("Journal retention = %d %q", cfg.Journal.RetentionDays, cfg.Journal.CleanupSchedule)
	}
	if cfg.Notify.MinPriority != "medium" {
		t.Errorf("MinPriority = %q", cfg.Notify.MinPriority)
	}
	if !strings.Contains(cfg.Notify.Command, "{{title}}") {
		t.Errorf("Command = %q", cfg.Notify.Command)
	}
	if cfg.Notify.Slack.ChannelID != "C123" || cfg.Notify.Discord.ChannelID != "456" {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q", cfg.Server.Host)
	}
	if cfg.Server.PortMin != 8080 || cfg.Server.PortMax != 8199 {
		t.Errorf("Server ports = %d..%d, want 8080..8199", cfg.Server.PortMin, cfg.Server.PortMax)
	}
	if cfg.Discovery.PortMin != 8080 || cfg.Discovery.PortMax != 8199 {
		t.Errorf("Discovery ports = %d..%d", cfg.Discovery.PortMin, cfg.Discovery.PortMax)
	}
	if cfg.Discovery.AttemptTimeoutMS != 500 {
		t.Errorf("AttemptTimeoutMS = %d", cfg.Discovery.AttemptTimeoutMS)
	}
	if cfg.Journal.Driver != "" {
		t.Errorf("journal should be disabled by default, driver = %q", cfg.Journal.Driver)
	}
	if cfg.Notify.MinPriority != "High" {
		t.Errorf("MinPriority = %q", cfg.Notify.MinPriority)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
}

func TestParse_DiscoveryFollowsServer(t *testing.T) {
	cfg, err := Parse([]byte("server:\n  port_min: 7000\n  port_max: 7009\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Discovery.PortMin != 7000 || cfg.Discovery.PortMax != 7009 {
		t.Errorf("Discovery ports = %d..%d, want server range", cfg.Discovery.PortMin, cfg.Discovery.PortMax)
	}
}

func TestParse_SqliteDefaultsToMemory(t *testing.T) {
	cfg, err := Parse([]byte("journal:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(cfg.Journal.DSN, "memory") {
		t.Errorf("DSN = %q, want in-memory", cfg.Journal.DSN)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"inverted range", "server:\n  port_min: 9000\n  port_max: 8000\n", "server port range"},
		{"bad driver", "journal:\n  driver: postgres\n", "journal.driver"},
		{"bad priority", "notify:\n  min_priority: extreme\n", "notify.min_priority"},
		{"half slack", "notify:\n  slack:\n    bot_token: x\n", "notify.slack"},
		{"half discord", "notify:\n  discord:\n    channel_id: \"1\"\n", "notify.discord"},
		{"bad level", "log:\n  level: loud\n", "log.level"},
		{"bad format", "log:\n  format: xml\n", "log.format"},
		{"negative timing", "discovery:\n  backoff_ms: -1\n", "discovery timings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_CollectsAllErrors(t *testing.T) {
	_, err := Parse([]byte("log:\n  level: loud\n  format: xml\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "log.level") || !strings.Contains(err.Error(), "log.format") {
		t.Errorf("error = %q, want both violations", err.Error())
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("errors should be joined with '; ': %q", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("server: [unclosed"))
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hud.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.PortMin != 9000 {
		t.Errorf("PortMin = %d", cfg.Server.PortMin)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.PortMin != 8080 {
		t.Errorf("PortMin = %d, want default", cfg.Server.PortMin)
	}
}

func TestLoad_Unreadable(t *testing.T) {
	// A directory cannot be read as a file.
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected error reading a directory")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err.Error())
	}
}
