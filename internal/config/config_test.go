package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcliao/tally-replica/internal/aggregate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_MissingOptionalFile(t *testing.T) {
	t.Setenv(EnvDB, "")
	t.Setenv(EnvListen, "")

	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.MaxValueSize != 6_000_000 || c.ChunkSize != 6_000_000 {
		t.Errorf("unexpected size defaults: %d %d", c.MaxValueSize, c.ChunkSize)
	}
	if c.Mode() != aggregate.ModeHeader || c.KeyPrefix != "tally:" || c.Legacy() != "latest_tally_json" {
		t.Errorf("unexpected defaults: %+v", c)
	}
}

func TestLoad_MissingRequiredFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true); err == nil {
		t.Error("expected error for missing required config")
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeConfig(t, `
listen: ":9000"
db_path: /tmp/from-file.db
max_value_size: 1000
chunk_size: 500
render: spreadsheet
log_level: debug
legacy_key: "-"
`)
	t.Setenv(EnvDB, "/tmp/from-env.db")
	t.Setenv(EnvListen, "")

	c, err := Load(path, true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.DBPath != "/tmp/from-env.db" {
		t.Errorf("expected env db path, got %q", c.DBPath)
	}
	if c.Listen != ":9000" || c.ChunkSize != 500 || c.Mode() != aggregate.ModeSpreadsheet {
		t.Errorf("file values not applied: %+v", c)
	}
	if c.Legacy() != "" {
		t.Errorf("expected legacy fallback disabled, got %q", c.Legacy())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"chunk over ceiling": "max_value_size: 10\nchunk_size: 20\n",
		"chunk below rune":   "max_value_size: 10\nchunk_size: 3\n",
		"ceiling below rune": "max_value_size: 2\n",
		"render":             "render: csv\n",
		"log level":          "log_level: loud\n",
		"yaml":               "listen: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body), true)
			if err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoad_ChunkDefaultsToCeiling(t *testing.T) {
	c, err := Load(writeConfig(t, "max_value_size: 2048\n"), true)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.ChunkSize != 2048 {
		t.Errorf("expected chunk size 2048, got %d", c.ChunkSize)
	}
}

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"trace", "DEBUG", "info", "warn", "warning", "error", ""} {
		if _, err := ParseLevel(s); err != nil {
			t.Errorf("ParseLevel(%q): %v", s, err)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil || !strings.Contains(err.Error(), "verbose") {
		t.Errorf("expected error naming the level, got %v", err)
	}
}
