package config

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/trsync/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	v := newViper(t)
	t.Setenv("TRADEREPUBLIC_PHONE", "+4912345678")
	t.Setenv("TRADEREPUBLIC_PIN", "1234")
	t.Setenv("FIREFLY_TOKEN", "tok")
	t.Setenv("FIREFLY_URL", "https://ff.example.com/")
	t.Setenv("TRADEREPUBLIC_ACCOUNT", "1")
	t.Setenv("TRADEREPUBLIC_VAULT", "2")
	t.Setenv("TOPUP_ACCOUNT", "3")
	t.Setenv("WALLET_ACCOUNT", "4")
	t.Setenv("CURRENCY", "eur")

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "+4912345678", cfg.Phone)
	assert.Equal(t, "1234", cfg.PIN)
	assert.Equal(t, "tok", cfg.FireflyToken)
	assert.Equal(t, "https://ff.example.com/", cfg.FireflyURL)
	assert.Equal(t, "1", cfg.AccountID)
	assert.Equal(t, "2", cfg.VaultID)
	assert.Equal(t, "3", cfg.TopupID)
	assert.Equal(t, "4", cfg.WalletID)
	assert.Equal(t, "EUR", cfg.Currency)
	require.NoError(t, cfg.Validate())
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	v := newViper(t)
	t.Setenv("FIREFLY_TOKEN", "legacy")
	t.Setenv("TRSYNC_FIREFLY_TOKEN", "prefixed")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", cfg.FireflyToken)
}

func TestLoad_Defaults(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, 1, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, filepath.Join(dataHome, "trsync", "last_transaction.txt"), cfg.MarkerPath)
	assert.Equal(t, filepath.Join(dataHome, "trsync", "session.json"), cfg.SessionFile)
}

func TestLoad_SQLiteDefaultPath(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	v := viper.New()
	SetDefaults(v)
	v.Set(KeyBackend, "SQLite")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, filepath.Join(dataHome, "trsync", "trsync.db"), cfg.MarkerPath)
}

func TestValidate_MissingSettings(t *testing.T) {
	cfg := &Config{Backend: BackendFile}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)

	var userErr *common.UserError
	require.True(t, errors.As(err, &userErr))
	lines := strings.Split(userErr.UserMessage, "\n")
	assert.Equal(t, []string{
		MsgMissingPhone,
		MsgMissingPIN,
		MsgMissingToken,
		MsgMissingAccount,
		MsgMissingURL,
	}, lines)
}

func TestValidate_FeedFileSkipsCredentials(t *testing.T) {
	cfg := &Config{
		Backend:      BackendFile,
		FeedFile:     "export.json",
		FireflyToken: "tok",
		FireflyURL:   "http://ff",
		AccountID:    "1",
	}
	require.NoError(t, cfg.Validate())
}

func TestValidate_DryRunSkipsLedger(t *testing.T) {
	cfg := &Config{
		Backend:   BackendFile,
		FeedFile:  "-",
		AccountID: "1",
		DryRun:    true,
	}
	require.NoError(t, cfg.Validate())
}

func TestValidate_InvalidValues(t *testing.T) {
	base := Config{
		Phone:        "+49",
		PIN:          "0000",
		FireflyToken: "tok",
		FireflyURL:   "http://ff",
		AccountID:    "1",
		Backend:      BackendFile,
	}

	tests := []struct {
		modify func(*Config)
		name   string
	}{
		{name: "unknown backend", modify: func(c *Config) { c.Backend = "redis" }},
		{name: "unknown timezone", modify: func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{name: "negative attempts", modify: func(c *Config) { c.MaxAttempts = -1 }},
		{name: "negative rate", modify: func(c *Config) { c.RequestsPerSecond = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.modify(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, common.ErrInvalidConfig)
		})
	}
}

func TestValidateMarker(t *testing.T) {
	assert.NoError(t, (&Config{Backend: BackendFile}).ValidateMarker())
	assert.ErrorIs(t, (&Config{Backend: BackendSQLite}).ValidateMarker(), common.ErrMissingConfig)
	assert.NoError(t, (&Config{Backend: BackendSQLite, AccountID: "1"}).ValidateMarker())
}

func TestLocation(t *testing.T) {
	loc, err := (&Config{}).Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	loc, err = (&Config{Timezone: "Europe/Berlin"}).Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestExpandPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	t.Setenv("TRSYNC_TEST_DIR", "/data")

	assert.Equal(t, "", ExpandPath(""))
	assert.Equal(t, "/home/tester/markers/last.txt", ExpandPath("~/markers/last.txt"))
	assert.Equal(t, "/home/tester", ExpandPath("~"))
	assert.Equal(t, "/data/last.txt", ExpandPath("$TRSYNC_TEST_DIR/last.txt"))
}
