package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Veraticus/trsync/internal/cli"
	"github.com/Veraticus/trsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func markerCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "marker",
		Short: "Inspect or move the sync marker",
		Long: `The marker is the legId of the last transaction pushed to Firefly III.
The next sync pushes everything after it.`,
	}

	cmd.AddCommand(markerShowCmd(v))
	cmd.AddCommand(markerSetCmd(v))
	cmd.AddCommand(markerResetCmd(v))
	cmd.AddCommand(markerHistoryCmd(v))

	return cmd
}

func loadMarkerConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateMarker(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func markerShowCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored marker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadMarkerConfig(v)
			if err != nil {
				return err
			}
			markers, cleanup, err := openMarkerStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			legID, err := markers.store.Get(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to read marker: %w", err)
			}

			out := cmd.OutOrStdout()
			if legID == "" {
				fmt.Fprintln(out, cli.FormatInfo("No marker stored. The next sync only records where the feed ends."))
			} else {
				fmt.Fprintln(out, legID)
			}
			fmt.Fprintln(out, cli.SubtleStyle.Render(fmt.Sprintf("%s backend: %s", cfg.Backend, markers.location)))
			return nil
		},
	}
}

func markerSetCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "set <legId>",
		Short: "Move the marker to a specific transaction",
		Long: `Move the marker so the next sync pushes every transaction after the given legId.
Transactions up to and including it are treated as already pushed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadMarkerConfig(v)
			if err != nil {
				return err
			}
			markers, cleanup, err := openMarkerStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			legID := strings.TrimSpace(args[0])
			if err := markers.store.Set(cmd.Context(), legID); err != nil {
				return fmt.Errorf("failed to store marker: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Marker set to "+legID))
			return nil
		},
	}
}

func markerResetCmd(v *viper.Viper) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the marker",
		Long: `Forget the marker. The next sync pushes nothing and records the newest
transaction as its starting point.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadMarkerConfig(v)
			if err != nil {
				return err
			}
			markers, cleanup, err := openMarkerStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()
			if !force {
				fmt.Fprint(out, cli.FormatPrompt("Forget the stored marker? [y/N]"))
				answer, err := cli.NewNonBlockingReader(cmd.InOrStdin()).ReadLine(cmd.Context())
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					fmt.Fprintln(out, cli.FormatInfo("Reset canceled"))
					return nil
				}
			}

			if err := markers.resetter.Reset(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset marker: %w", err)
			}
			fmt.Fprintln(out, cli.FormatSuccess("Marker reset"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func markerHistoryCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent marker changes (sqlite backend)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadMarkerConfig(v)
			if err != nil {
				return err
			}
			if cfg.Backend != config.BackendSQLite {
				return fmt.Errorf("marker history needs the %s backend (current: %s)", config.BackendSQLite, cfg.Backend)
			}
			markers, cleanup, err := openMarkerStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			records, err := markers.db.MarkerHistory(cmd.Context(), markers.key, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, cli.FormatInfo("No marker changes recorded"))
				return nil
			}
			for _, r := range records {
				legID := r.LegID
				if legID == "" {
					legID = "(reset)"
				}
				fmt.Fprintf(out, "%s  %s\n", r.UpdatedAt.Local().Format("2006-01-02 15:04:05"), legID)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of entries to show")
	return cmd
}
