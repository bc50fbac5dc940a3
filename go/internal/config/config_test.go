package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splitsync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// inTempDir keeps godotenv from picking up a stray .env in the package dir.
func inTempDir(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(*cfg, Default()) {
		t.Fatalf("Load(\"\") = %+v, want defaults", *cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, `
client:
  url: ws://localhost:9000
  password: abc123
  offset_ms: 2000
relay:
  passwords: [abc123, xyz789]
display:
  font_color: "#ffffff"
  text_align: left
  font_scale: 2
log:
  level: debug
`)
	t.Setenv("SPLITSYNC_OFFSET", "3500")
	t.Setenv("SPLITSYNC_RELAY_PASSWORDS", "one, two,,three")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Client.URL != "ws://localhost:9000" || cfg.Client.Password != "abc123" {
		t.Errorf("client = %+v", cfg.Client)
	}
	if cfg.Client.OffsetMS != 3500 {
		t.Errorf("env should override file offset, got %d", cfg.Client.OffsetMS)
	}
	if want := []string{"one", "two", "three"}; !reflect.DeepEqual(cfg.Relay.Passwords, want) {
		t.Errorf("passwords = %q, want %q", cfg.Relay.Passwords, want)
	}
	if cfg.Display.FontColor != "ffffff" || cfg.Display.TextAlign != "left" || cfg.Display.FontScale != 2 {
		t.Errorf("display = %+v", cfg.Display)
	}
	if cfg.Log.ZerologLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v", cfg.Log.ZerologLevel())
	}
}

func TestLoadDotEnv(t *testing.T) {
	inTempDir(t)
	if err := os.WriteFile(".env", []byte("SPLITSYNC_PASSWORD=fromdotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SPLITSYNC_PASSWORD") })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Client.Password != "fromdotenv" {
		t.Fatalf("password = %q", cfg.Client.Password)
	}
}

func TestNormalize(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, `
client:
  offset_ms: -400
  segments: 0
display:
  font_scale: -1
  font_color: ""
  text_align: ""
log:
  level: chatty
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Client.OffsetMS != 0 || cfg.Client.Segments != 1 {
		t.Errorf("client = %+v", cfg.Client)
	}
	if cfg.Display.FontScale != 1 || cfg.Display.FontColor != "ea7500" || cfg.Display.TextAlign != "center" {
		t.Errorf("display = %+v", cfg.Display)
	}
	if cfg.Log.ZerologLevel() != zerolog.InfoLevel {
		t.Errorf("unknown level should fall back to info, got %v", cfg.Log.ZerologLevel())
	}
}

func TestInvalidAlign(t *testing.T) {
	inTempDir(t)
	path := writeConfig(t, "display:\n  text_align: justify\n")
	if _, err := Load(path); !errors.Is(err, ErrInvalidAlign) {
		t.Fatalf("Load error = %v, want ErrInvalidAlign", err)
	}
}

func TestMissingFile(t *testing.T) {
	inTempDir(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestInvalidEnvIntKeepsValue(t *testing.T) {
	inTempDir(t)
	t.Setenv("SPLITSYNC_OFFSET", "soon")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Client.OffsetMS != 0 {
		t.Fatalf("offset = %d", cfg.Client.OffsetMS)
	}
}
