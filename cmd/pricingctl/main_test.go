package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/cabinetry/internal/pricing"
)

// run executes pricingctl with an isolated environment and returns stdout.
func run(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, env, args...)
	return out, err
}

func runCLI(t *testing.T, env map[string]string, args ...string) (string, *cli, error) {
	t.Helper()

	for k, v := range env {
		t.Setenv(k, v)
	}

	var out bytes.Buffer
	root, c := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--log-level", "error"}, args...))

	err := execute(root, c)
	return out.String(), c, err
}

func fileEnv(t *testing.T) map[string]string {
	return map[string]string{
		"STORAGE_BACKEND": "file",
		"DATA_DIR":        t.TempDir(),
		"REDIS_ADDR":      "",
		"CURRENCY":        "COP",
	}
}

func sqliteEnv(t *testing.T) map[string]string {
	return map[string]string{
		"STORAGE_BACKEND": "sql",
		"DB_DRIVER":       "sqlite",
		"DB_PATH":         filepath.Join(t.TempDir(), "cli.db"),
		"REDIS_ADDR":      "",
	}
}

func writeRequest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestEstimateJSONWithInlineRates(t *testing.T) {
	path := writeRequest(t, `{
		"cabinetCategory": "base",
		"tier": "premium",
		"units": [{"enabled": true, "category": "base", "meters": 2}],
		"rates": {"baseRates": {"base": 1000}, "tierMultipliers": {"premium": 0.9}}
	}`)

	out, err := run(t, fileEnv(t), "estimate", "-f", path, "--json")
	require.NoError(t, err)

	var res pricing.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.InDelta(t, 1800, res.Total, 1e-9)
	assert.Equal(t, pricing.ModePerUnit, res.Breakdown.Mode)
}

func TestEstimateTextUsesStoredConfiguration(t *testing.T) {
	path := writeRequest(t, `{
		"cabinetCategory": "tall",
		"tier": "luxury",
		"units": [{"enabled": true, "meters": 1}]
	}`)

	out, err := run(t, fileEnv(t), "estimate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "COP 65,182.20")
	assert.Contains(t, out, "INCLUDED (luxury)")
}

func TestVersionsOnEmptyStore(t *testing.T) {
	out, err := run(t, fileEnv(t), "versions")
	require.NoError(t, err)
	assert.Contains(t, out, "No pricing versions recorded.")
}

func TestVersionUnknownTimestamp(t *testing.T) {
	_, err := run(t, fileEnv(t), "version", "12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRestoreRejectsBadTimestamp(t *testing.T) {
	_, err := run(t, fileEnv(t), "restore", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive integer")
}

func TestConfigShowPrintsDefaults(t *testing.T) {
	out, err := run(t, fileEnv(t), "config", "show")
	require.NoError(t, err)

	var cfg pricing.RateConfiguration
	require.NoError(t, json.Unmarshal([]byte(out), &cfg))
	assert.Equal(t, pricing.DefaultRateConfiguration(), cfg)
}

func TestMigrateAndSeedOnSQLite(t *testing.T) {
	env := sqliteEnv(t)

	out, err := run(t, env, "migrate")
	require.NoError(t, err)
	assert.Equal(t, "Schema at version 1.\n", out)

	out, err = run(t, env, "seed")
	require.NoError(t, err)
	assert.Equal(t, "Seed finished: 1 inserted, 0 updated.\n", out)

	out, err = run(t, env, "seed")
	require.NoError(t, err)
	assert.Equal(t, "Seed finished: 0 inserted, 0 updated.\n", out)
}

func TestMigrateRequiresSQLBackend(t *testing.T) {
	_, err := run(t, fileEnv(t), "migrate")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "STORAGE_BACKEND=file"))
}

func TestFailingCommandStillClosesBackend(t *testing.T) {
	env := sqliteEnv(t)

	_, c, err := runCLI(t, env, "version", "12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Nil(t, c.app, "backend opened by a failing command must be closed")

	// The database is usable again by the next invocation.
	out, err := run(t, env, "versions")
	require.NoError(t, err)
	assert.Contains(t, out, "No pricing versions recorded.")
}
