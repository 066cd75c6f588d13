package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var envKeys = []string{
	"CONFIG_FILE", "SERVER_HOST", "SERVER_PORT", "DB_DRIVER", "DB_HOST", "DB_PORT",
	"DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE", "SQLITE_PATH",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	// keep godotenv from picking up a stray .env
	// equivalent of t.Chdir (Go 1.24+) for the Go 1.21 toolchain
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.GetServerAddr(); got != ":8080" {
		t.Errorf("GetServerAddr() = %q", got)
	}
	want := "host=localhost port=5432 user=postgres password=postgres dbname=notes sslmode=disable"
	if got := cfg.GetDatabaseConnectionString(); got != want {
		t.Errorf("GetDatabaseConnectionString() = %q", got)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "notes.yaml")
	yml := `server:
  host: 127.0.0.1
  port: 9000
database:
  driver: sqlite
  path: /tmp/file.db
  name: fromfile
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SQLITE_PATH", "/tmp/env.db")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	want.ServerHost = "127.0.0.1"
	want.ServerPort = 9000
	want.DatabaseDriver = DriverSQLite
	want.DBName = "fromfile"
	want.DBPort = 6543
	want.SQLitePath = "/tmp/env.db"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"SERVER_PORT": "eighty"}},
		{"port out of range", map[string]string{"SERVER_PORT": "70000"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/notes.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("Load() expected error")
			}
		})
	}
}
