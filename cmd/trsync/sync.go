package main

import (
	"fmt"
	"io"

	"github.com/Veraticus/trsync/internal/classify"
	"github.com/Veraticus/trsync/internal/cli"
	"github.com/Veraticus/trsync/internal/common"
	"github.com/Veraticus/trsync/internal/config"
	"github.com/Veraticus/trsync/internal/engine"
	"github.com/Veraticus/trsync/internal/firefly"
	"github.com/Veraticus/trsync/internal/service"
	"github.com/Veraticus/trsync/internal/traderepublic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func syncCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push new transactions to Firefly III",
		Long: `Fetch the Trade Republic timeline, classify every transaction after the
stored marker and push them to Firefly III in order.

If a push fails, the marker still moves to the last transaction Firefly
accepted, so rerunning never creates duplicates.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, v)
		},
	}
}

func runSync(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()
	logger := common.Component("sync")

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	markers, cleanup, err := openMarkerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	source, err := newFeedSource(cfg, cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var ledger service.LedgerGateway
	if !cfg.DryRun {
		ledger, err = firefly.NewClient(firefly.Config{
			BaseURL:              cfg.FireflyURL,
			Token:                cfg.FireflyToken,
			Timeout:              cfg.Timeout,
			MaxAttempts:          cfg.MaxAttempts,
			RequestsPerSecond:    cfg.RequestsPerSecond,
			ErrorIfDuplicateHash: cfg.ErrorIfDuplicateHash,
		})
		if err != nil {
			return common.NewUserError("Firefly III is not configured", err)
		}
	}

	classifier := classify.New(classify.Accounts{
		AccountID: cfg.AccountID,
		VaultID:   cfg.VaultID,
		TopupID:   cfg.TopupID,
		WalletID:  cfg.WalletID,
	}, loc)

	var opts []engine.Option
	if !cfg.Quiet && !cfg.DryRun {
		opts = append(opts, engine.WithProgress(cli.NewProgressBar(cmd.ErrOrStderr(), "Pushing transactions")))
	}
	processor := engine.New(classifier, ledger, markers.store, engine.Config{
		Currency: cfg.Currency,
		DryRun:   cfg.DryRun,
	}, opts...)

	feed, err := source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}

	if interrupts != nil {
		interrupts.SetPushing(true)
	}

	result, runErr := processor.Run(ctx, feed)
	if result != nil && !cfg.Quiet {
		out := cmd.OutOrStdout()
		if cfg.DryRun {
			if plan := cli.RenderPlan(result.Planned); plan != "" {
				fmt.Fprintln(out, plan)
			}
		}
		fmt.Fprintln(out, cli.RenderRunSummary(result))
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("Sync finished",
		"pushed", len(result.Pushed),
		"marker", result.MarkerAfter,
		"dry_run", cfg.DryRun)
	return nil
}

func newFeedSource(cfg *config.Config, stdin io.Reader, prompt io.Writer) (service.FeedSource, error) {
	if cfg.FeedFile != "" {
		return traderepublic.NewFileSource(cfg.FeedFile, stdin), nil
	}

	codes := cli.CodePrompt(cli.NewNonBlockingReader(stdin), prompt)
	client, err := traderepublic.NewClient(traderepublic.Config{
		BaseURL:     cfg.SourceURL,
		PhoneNumber: cfg.Phone,
		PIN:         cfg.PIN,
		SessionPath: cfg.SessionFile,
		Timeout:     cfg.Timeout,
	}, codes)
	if err != nil {
		return nil, err
	}
	return client, nil
}
