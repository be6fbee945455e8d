package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atinyakov/vaultkeeper/internal/config"
	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
	"github.com/atinyakov/vaultkeeper/internal/service"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	color.NoColor = true
}

// mapVault serves a fixed set of leaves; servers listed in deny fail authentication.
type mapVault struct {
	leaves map[string]models.SecretContent
	deny   bool
}

func (m *mapVault) Authenticate(context.Context, models.Credentials) error {
	if m.deny {
		return errors.New("permission denied")
	}
	return nil
}

func (m *mapVault) List(_ context.Context, p string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for leaf := range m.leaves {
		rest, ok := strings.CutPrefix(leaf, p)
		if !ok {
			continue
		}
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[:i+1]
		}
		if !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out, nil
}

func (m *mapVault) Read(_ context.Context, p string) (models.SecretContent, error) {
	return m.leaves[p], nil
}

type fixture struct {
	dir      string
	config   string
	storeDir string
	vaults   map[string]*mapVault
}

func newFixture(t *testing.T, entries string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		storeDir: filepath.Join(dir, "store"),
		config:   filepath.Join(dir, "vaultkeeper.json"),
		vaults: map[string]*mapVault{
			"https://vault.local:8200": {leaves: map[string]models.SecretContent{
				"secrets/db/prod": {"user": "admin", "password": "p@ss"},
				"secrets/api_key": {"value": "k-123"},
			}},
			"https://denied.local:8200": {deny: true},
		},
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "passphrase"), []byte("correct horse\n"), 0o600))
	cfg := `{
  "passphrase_file": "` + filepath.Join(dir, "passphrase") + `",
  "store_dir": "` + f.storeDir + `",
  "cert_dir": "` + filepath.Join(dir, "certs") + `",
  "log_level": "error",
  "entries": ` + entries + `
}`
	require.NoError(t, os.WriteFile(f.config, []byte(cfg), 0o600))
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a := newApp()
	a.connect = func(*config.Options, *zap.Logger) service.Connector {
		return func(e models.Entry) (service.SecretStore, error) {
			v, ok := f.vaults[e.Server]
			if !ok {
				return nil, errors.New("unknown server")
			}
			return v, nil
		}
	}
	cmd := newRootCmd(a, "test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

const goodEntry = `[{"server": "https://vault.local:8200", "root_path": "secrets/", "token": "s.abcdefgh"}]`

func TestBackupListVerifyRestore(t *testing.T) {
	f := newFixture(t, goodEntry)

	out, err := f.run(t, "backup")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ https://vault.local:8200 secrets/ → vault-backup.vault_local_8200.secrets.")
	assert.Contains(t, out, "(2 leaves)")
	assert.NotContains(t, out, "s.abcdefgh")

	out, err = f.run(t, "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, out)
	assert.True(t, strings.HasPrefix(lines[0], "NAME"))
	name := strings.Fields(lines[1])[0]

	out, err = f.run(t, "verify", name)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ "+name)

	dest := filepath.Join(f.dir, "restored.json")
	_, err = f.run(t, "restore", name, "--out", dest)
	require.NoError(t, err)
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(dest)
	require.NoError(t, err)
	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, "https://vault.local:8200", snap.Server)
	assert.Equal(t, "p@ss", snap.Secrets["secrets/db/prod"]["password"])

	_, err = f.run(t, "restore", name, "--out", dest)
	assert.Error(t, err, "restore must not overwrite an existing file")
}

func TestBackup_FailedEntryExitsNonZero(t *testing.T) {
	f := newFixture(t, `[
    {"server": "https://denied.local:8200", "root_path": "secrets/", "token": "s.zzzzzzzz"},
    {"server": "https://vault.local:8200", "root_path": "secrets/", "token": "s.abcdefgh"}
  ]`)

	out, err := f.run(t, "backup")
	assert.ErrorIs(t, err, ErrFailures)
	assert.Contains(t, out, "✗ https://denied.local:8200 secrets/: authentication failed")
	assert.Contains(t, out, "✓ https://vault.local:8200 secrets/")
}

func TestBackup_ServerFilterAndJSON(t *testing.T) {
	f := newFixture(t, `[
    {"server": "https://denied.local:8200", "root_path": "secrets/", "token": "s.zzzzzzzz"},
    {"server": "https://vault.local:8200", "root_path": "secrets/", "token": "s.abcdefgh"}
  ]`)

	out, err := f.run(t, "backup", "--server", "https://vault.local:8200", "--json")
	require.NoError(t, err, out)
	var results []models.EntryResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Leaves)
}

func TestVerify_Tampered(t *testing.T) {
	f := newFixture(t, goodEntry)
	_, err := f.run(t, "backup")
	require.NoError(t, err)

	names, err := filepath.Glob(filepath.Join(f.storeDir, "*.bin"))
	require.NoError(t, err)
	require.Len(t, names, 1)
	data, err := os.ReadFile(names[0])
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.Chmod(names[0], 0o600))
	require.NoError(t, os.WriteFile(names[0], data, 0o600))

	name := filepath.Base(names[0])
	out, err := f.run(t, "verify", name)
	assert.ErrorIs(t, err, ErrFailures)
	assert.Contains(t, out, "✗ "+name+": tamper detected")

	_, err = f.run(t, "restore", name)
	assert.ErrorIs(t, err, berrors.ErrTamperDetected)
}

func TestMissingPassphrase(t *testing.T) {
	f := newFixture(t, goodEntry)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "passphrase")))

	_, err := f.run(t, "backup")
	assert.ErrorIs(t, err, berrors.ErrPassphraseMissing)
}

func TestCerts(t *testing.T) {
	f := newFixture(t, goodEntry)

	out, err := f.run(t, "certs", "--operator", "alice")
	require.NoError(t, err)
	want := []string{"alice.crt", "alice.key", "ca.crt", "ca.key", "server.crt", "server.key"}
	for _, name := range want {
		assert.Contains(t, out, name)
	}
	dirEntries, err := os.ReadDir(filepath.Join(f.dir, "certs"))
	require.NoError(t, err)
	var got []string
	for _, e := range dirEntries {
		got = append(got, e.Name())
	}
	assert.Equal(t, want, got)

	tlsConfig, err := serverTLS(filepath.Join(f.dir, "certs"))
	require.NoError(t, err)
	assert.Len(t, tlsConfig.Certificates, 1)
}

func TestWriteSnapshotFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.json")
	require.NoError(t, writeSnapshotFile(good, map[string]string{"a": "b"}))
	info, err := os.Stat(good)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Error(t, writeSnapshotFile(good, nil), "existing file must not be overwritten")
	data, err := os.ReadFile(good)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"b"}`, string(data))

	bad := filepath.Join(dir, "bad.json")
	err = writeSnapshotFile(bad, map[string]float64{"n": math.Inf(1)})
	require.Error(t, err)
	assert.NoFileExists(t, bad)
}
