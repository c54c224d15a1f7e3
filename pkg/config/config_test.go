package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gramops/pkg/models"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestBuiltinProfilesValidate(t *testing.T) {
	for _, name := range ProfileNames() {
		profile, err := ProfileByName(name)
		require.NoError(t, err, name)
		assert.NoError(t, profile.Validate(), name)
	}
}

func TestProfileByNameUnknown(t *testing.T) {
	_, err := ProfileByName("turbo")
	assert.Error(t, err)
}

func TestProfileForKind(t *testing.T) {
	profile, err := ProfileByName("normal")
	require.NoError(t, err)

	assert.Equal(t, profile.Scrape, profile.ForKind(models.KindScrape))
	assert.Equal(t, profile.Invite, profile.ForKind(models.KindInvite))
	assert.Equal(t, profile.Message, profile.ForKind(models.KindMessage))
}

func TestQuotaForKind(t *testing.T) {
	q := QuotaConfig{ScrapePerDay: 200, InvitePerDay: 50, MessagePerDay: 40}

	assert.Equal(t, 200, q.ForKind(models.KindScrape))
	assert.Equal(t, 50, q.ForKind(models.KindInvite))
	assert.Equal(t, 40, q.ForKind(models.KindMessage))

	// zero means unlimited
	assert.Equal(t, 0, QuotaConfig{}.ForKind(models.KindInvite))
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("GRAMOPS_PROFILE", "stealth")
	t.Setenv("GRAMOPS_DB_PATH", "/tmp/test-ops.db")
	t.Setenv("GRAMOPS_OUTPUT_DIR", "/tmp/test-results")
	t.Setenv("GRAMOPS_LOG_LEVEL", "debug")
	t.Setenv("GRAMOPS_CHECKPOINT_INTERVAL", "17")
	t.Setenv("GRAMOPS_INVITES_PER_DAY", "7")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "stealth", cfg.RateLimit.Profile)
	assert.Equal(t, "/tmp/test-ops.db", cfg.Store.Path)
	assert.Equal(t, "/tmp/test-results", cfg.Output.Directory)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 17, cfg.Engine.CheckpointInterval)
	assert.Equal(t, 7, cfg.Quotas.InvitePerDay)
}

func TestLoadFromEnvIgnoresBadNumbers(t *testing.T) {
	t.Setenv("GRAMOPS_CHECKPOINT_INTERVAL", "not-a-number")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())
	assert.Equal(t, 5, cfg.Engine.CheckpointInterval)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
rate_limit:
  profile: aggressive
engine:
  max_retries: 9
quotas:
  invite_per_day: 25
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "aggressive", cfg.RateLimit.Profile)
	assert.Equal(t, 9, cfg.Engine.MaxRetries)
	assert.Equal(t, 25, cfg.Quotas.InvitePerDay)
	// untouched fields keep their defaults
	assert.Equal(t, 10*time.Minute, cfg.Engine.MaxFloodWait)
}

func TestLoadAccountsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.yaml")
	content := `
accounts:
  - name: worker1
    phone: "+100000001"
    is_active: true
  - name: worker2
    phone: "+100000002"
    is_active: true
    proxy:
      kind: socks5
      host: 127.0.0.1
      port: 1080
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	cfg.AccountsFile = path

	accounts, err := cfg.LoadAccounts()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "worker1", accounts[0].Name)
	assert.True(t, accounts[1].HasProxy())
}

func TestLoadAccountsRejectsDuplicates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []models.Account{
		{Name: "same", IsActive: true},
		{Name: "same", IsActive: true},
	}

	_, err := cfg.LoadAccounts()
	assert.ErrorContains(t, err, "duplicate account name")
}

func TestLoadAccountsRejectsUnnamed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Accounts = []models.Account{{IsActive: true}}

	_, err := cfg.LoadAccounts()
	assert.ErrorContains(t, err, "no name")
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Profile = "warp-speed"

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadEngineSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine.CheckpointInterval = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Engine.CallTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Output.Directory = ""
	assert.Error(t, cfg.Validate())
}
