// Package config loads and validates trsync settings from flags, the config
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/trsync/internal/common"
	"github.com/spf13/viper"
)

// AppName names the config and data directories.
const AppName = "trsync"

// EnvPrefix is the prefix for automatic environment variables (TRSYNC_FIREFLY_URL, ...).
const EnvPrefix = "TRSYNC"

// Marker backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Viper keys.
const (
	KeyPhone        = "traderepublic.phone"
	KeyPIN          = "traderepublic.pin"
	KeySourceURL    = "traderepublic.url"
	KeySessionFile  = "traderepublic.session_file"
	KeyFireflyToken = "firefly.token"
	KeyFireflyURL   = "firefly.url"
	KeyMaxAttempts  = "firefly.max_attempts"
	KeyRateLimit    = "firefly.requests_per_second"
	KeyDuplicates   = "firefly.error_if_duplicate_hash"
	KeyTimeout      = "http.timeout"
	KeyAccount      = "accounts.account"
	KeyVault        = "accounts.vault"
	KeyTopup        = "accounts.topup"
	KeyWallet       = "accounts.wallet"
	KeyCurrency     = "currency"
	KeyTimezone     = "timezone"
	KeyBackend      = "marker.backend"
	KeyMarkerPath   = "marker.path"
	KeyFeedFile     = "feed_file"
	KeyDryRun       = "dry_run"
	KeyQuiet        = "quiet"
)

// legacyEnv maps keys to the environment variable names the tool has always read.
var legacyEnv = map[string]string{
	KeyPhone:        "TRADEREPUBLIC_PHONE",
	KeyPIN:          "TRADEREPUBLIC_PIN",
	KeyFireflyToken: "FIREFLY_TOKEN",
	KeyAccount:      "TRADEREPUBLIC_ACCOUNT",
	KeyVault:        "TRADEREPUBLIC_VAULT",
	KeyTopup:        "TOPUP_ACCOUNT",
	KeyWallet:       "WALLET_ACCOUNT",
	KeyCurrency:     "CURRENCY",
	KeyFireflyURL:   "FIREFLY_URL",
}

// Operator messages for missing required settings.
const (
	MsgMissingPhone   = "You don't have a Trade Republic phone number. Use '+49XXXXXXXXX' format"
	MsgMissingPIN     = "You don't have a Trade Republic pin. Use '0000' format"
	MsgMissingToken   = "You don't have a FireflyIII token. Use 'Create Personal Access token' option in FireflyIII"
	MsgMissingAccount = "You don't have a Trade Republic account Id inside FireflyIII"
	MsgMissingURL     = "You don't have FireflyIII instance URL"
)

// Config is the resolved configuration for one run.
type Config struct {
	Phone        string
	PIN          string
	SourceURL    string
	SessionFile  string
	FireflyToken string
	FireflyURL   string
	AccountID    string
	VaultID      string
	TopupID      string
	WalletID     string
	Currency     string
	Timezone     string
	Backend      string
	MarkerPath   string
	FeedFile     string

	Timeout           time.Duration
	RequestsPerSecond float64
	MaxAttempts       int

	ErrorIfDuplicateHash bool
	DryRun               bool
	Quiet                bool
}

// SetDefaults registers default values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyBackend, BackendFile)
	v.SetDefault(KeyMaxAttempts, 1)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyTimeout, 30*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, envKey, legacy)
	}
}

// Load reads the configuration out of v. SetDefaults must have run first.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Phone:                strings.TrimSpace(v.GetString(KeyPhone)),
		PIN:                  strings.TrimSpace(v.GetString(KeyPIN)),
		SourceURL:            v.GetString(KeySourceURL),
		SessionFile:          ExpandPath(v.GetString(KeySessionFile)),
		FireflyToken:         strings.TrimSpace(v.GetString(KeyFireflyToken)),
		FireflyURL:           strings.TrimSpace(v.GetString(KeyFireflyURL)),
		AccountID:            strings.TrimSpace(v.GetString(KeyAccount)),
		VaultID:              strings.TrimSpace(v.GetString(KeyVault)),
		TopupID:              strings.TrimSpace(v.GetString(KeyTopup)),
		WalletID:             strings.TrimSpace(v.GetString(KeyWallet)),
		Currency:             strings.ToUpper(strings.TrimSpace(v.GetString(KeyCurrency))),
		Timezone:             v.GetString(KeyTimezone),
		Backend:              strings.ToLower(v.GetString(KeyBackend)),
		MarkerPath:           ExpandPath(v.GetString(KeyMarkerPath)),
		FeedFile:             v.GetString(KeyFeedFile),
		Timeout:              v.GetDuration(KeyTimeout),
		RequestsPerSecond:    v.GetFloat64(KeyRateLimit),
		MaxAttempts:          v.GetInt(KeyMaxAttempts),
		ErrorIfDuplicateHash: v.GetBool(KeyDuplicates),
		DryRun:               v.GetBool(KeyDryRun),
		Quiet:                v.GetBool(KeyQuiet),
	}
	if cfg.FeedFile != "" && cfg.FeedFile != "-" {
		cfg.FeedFile = ExpandPath(cfg.FeedFile)
	}

	if cfg.MarkerPath == "" || cfg.SessionFile == "" {
		dataDir, err := DataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
		if cfg.MarkerPath == "" {
			cfg.MarkerPath = filepath.Join(dataDir, defaultMarkerFile(cfg.Backend))
		}
		if cfg.SessionFile == "" {
			cfg.SessionFile = filepath.Join(dataDir, "session.json")
		}
	}

	return cfg, nil
}

func defaultMarkerFile(backend string) string {
	if backend == BackendSQLite {
		return "trsync.db"
	}
	return "last_transaction.txt"
}

// Validate checks the settings a sync needs. Phone and PIN are only needed
// when the feed is fetched from the brokerage rather than read from a file.
// Every missing setting gets its own line in the returned error.
func (c *Config) Validate() error {
	var missing []string
	if c.FeedFile == "" {
		if c.Phone == "" {
			missing = append(missing, MsgMissingPhone)
		}
		if c.PIN == "" {
			missing = append(missing, MsgMissingPIN)
		}
	}
	if c.FireflyToken == "" && !c.DryRun {
		missing = append(missing, MsgMissingToken)
	}
	if c.AccountID == "" {
		missing = append(missing, MsgMissingAccount)
	}
	if c.FireflyURL == "" && !c.DryRun {
		missing = append(missing, MsgMissingURL)
	}
	if len(missing) > 0 {
		return common.NewUserError(strings.Join(missing, "\n"), common.ErrMissingConfig)
	}

	return c.validateValues()
}

// ValidateMarker checks only what the marker commands need.
func (c *Config) ValidateMarker() error {
	if c.Backend == BackendSQLite && c.AccountID == "" {
		return common.NewUserError(MsgMissingAccount, common.ErrMissingConfig)
	}
	return c.validateValues()
}

func (c *Config) validateValues() error {
	var errs []error
	if c.Backend != BackendFile && c.Backend != BackendSQLite {
		errs = append(errs, fmt.Errorf("%w: marker backend %q (want %s or %s)",
			common.ErrInvalidConfig, c.Backend, BackendFile, BackendSQLite))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("%w: firefly.max_attempts must not be negative", common.ErrInvalidConfig))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("%w: firefly.requests_per_second must not be negative", common.ErrInvalidConfig))
	}
	return errors.Join(errs...)
}

// Location resolves the timezone used to turn timestamps into booking dates.
// Empty means the local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %w", common.ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// MarkerKey identifies this account's marker in a shared store.
func (c *Config) MarkerKey() string {
	return c.AccountID
}
