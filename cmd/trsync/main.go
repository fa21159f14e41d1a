package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/trsync/internal/cli"
	"github.com/Veraticus/trsync/internal/common"
	"github.com/Veraticus/trsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

// interrupts is set by main; commands run from tests leave it nil.
var interrupts *cli.InterruptHandler

func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "trsync",
		Short: "Mirror Trade Republic transactions into Firefly III",
		Long: `trsync pushes new Trade Republic transactions to a Firefly III ledger.

Each run resumes after the last transaction it pushed. The very first run
only records where the feed currently ends, so older history is never
imported twice.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cfgFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, v)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/trsync/config.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")

	flags.StringP("phone", "d", "", "Trade Republic phone number (+49XXXXXXXXX)")
	flags.StringP("pin", "p", "", "Trade Republic PIN")
	flags.StringP("firefly-token", "f", "", "Firefly III personal access token")
	flags.StringP("firefly-url", "u", "", "Firefly III instance URL")
	flags.StringP("account-id", "a", "", "Firefly III account id mirroring the Trade Republic account")
	flags.StringP("vault-id", "v", "", "Firefly III account id for the vault")
	flags.StringP("topup-id", "t", "", "Firefly III account id top-ups come from")
	flags.StringP("wallet-id", "w", "", "Firefly III account id outgoing transfers go to")
	flags.StringP("currency", "c", "", "only sync transactions in this currency")
	flags.String("timezone", "", "timezone for booking dates (default: local)")
	flags.String("marker-backend", config.BackendFile, "where the last pushed transaction is kept (file, sqlite)")
	flags.String("marker-path", "", "marker file or database path (default: $XDG_DATA_HOME/trsync/...)")
	flags.String("feed-file", "", "read the feed from an exported JSON file instead of logging in (- for stdin)")
	flags.Bool("dry-run", false, "classify new transactions without pushing or moving the marker")
	flags.BoolP("quiet", "q", false, "no progress bar or summary")

	bindings := map[string]string{
		"logging.level":        "log-level",
		"logging.format":       "log-format",
		config.KeyPhone:        "phone",
		config.KeyPIN:          "pin",
		config.KeyFireflyToken: "firefly-token",
		config.KeyFireflyURL:   "firefly-url",
		config.KeyAccount:      "account-id",
		config.KeyVault:        "vault-id",
		config.KeyTopup:        "topup-id",
		config.KeyWallet:       "wallet-id",
		config.KeyCurrency:     "currency",
		config.KeyTimezone:     "timezone",
		config.KeyBackend:      "marker-backend",
		config.KeyMarkerPath:   "marker-path",
		config.KeyFeedFile:     "feed-file",
		config.KeyDryRun:       "dry-run",
		config.KeyQuiet:        "quiet",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(syncCmd(v))
	rootCmd.AddCommand(markerCmd(v))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func main() {
	interrupts = cli.NewInterruptHandler(os.Stderr)
	ctx := interrupts.HandleInterrupts(context.Background())

	err := newRootCmd(viper.GetViper()).ExecuteContext(ctx)
	if err != nil {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			fmt.Fprintln(os.Stderr, cli.FormatError(userErr.UserMessage))
		} else {
			fmt.Fprintln(os.Stderr, cli.FormatError(err.Error()))
		}
		os.Exit(1)
	}
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(config.ExpandPath(cfgFile))
	} else {
		configDir, err := config.ConfigDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	config.SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, flags and env cover everything
	}

	if err := common.SetupLogger(v.GetString("logging.level"), v.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}

	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "trsync %s\n", version)
		},
	}
}
