package config

import (
	"os"
	"path/filepath"
	"testing"
)

func unsetForTest(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		prev, had := os.LookupEnv(k)
		_ = os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, prev)
			} else {
				_ = os.Unsetenv(k)
			}
		})
	}
}

func writeDotEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	unsetForTest(t, "APP_ENV", "PORT", "STORAGE_BACKEND", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "LOG_LEVEL")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Port != "8080" || cfg.DBPath != "./dev.db" || cfg.StorageBackend != BackendSQL || cfg.DBDriver != DriverSQLite {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.IsDev() {
		t.Fatalf("expected development mode by default")
	}
	if cfg.DSN() != "./dev.db" {
		t.Fatalf("DSN=%q", cfg.DSN())
	}
}

func TestLoadFrom_ReadsDotEnvAndIgnoresNoise(t *testing.T) {
	unsetForTest(t, "PORT", "DB_PATH", "ADMIN_TOKEN")

	path := writeDotEnv(t, `
# comment

PORT=9090
export DB_PATH=/tmp/cabinetry.db
ADMIN_TOKEN="s3cret"
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Port != "9090" {
		t.Fatalf("Port=%q, want %q", cfg.Port, "9090")
	}
	if cfg.DBPath != "/tmp/cabinetry.db" {
		t.Fatalf("DBPath=%q", cfg.DBPath)
	}
	if cfg.AdminToken != "s3cret" {
		t.Fatalf("AdminToken=%q", cfg.AdminToken)
	}
}

func TestLoadFrom_DoesNotOverwriteExistingEnv(t *testing.T) {
	t.Setenv("PORT", "7000")

	path := writeDotEnv(t, "PORT=9090\n")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Port != "7000" {
		t.Fatalf("Port=%q, want %q", cfg.Port, "7000")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite", Config{StorageBackend: BackendSQL, DBDriver: DriverSQLite}, false},
		{"file", Config{StorageBackend: BackendFile}, false},
		{"postgres without url", Config{StorageBackend: BackendSQL, DBDriver: DriverPostgres}, true},
		{"postgres with url", Config{StorageBackend: BackendSQL, DBDriver: DriverPostgres, DatabaseURL: "postgres://x"}, false},
		{"unknown backend", Config{StorageBackend: "s3"}, true},
		{"unknown driver", Config{StorageBackend: BackendSQL, DBDriver: "mysql"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
