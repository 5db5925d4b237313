package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Simplici0/cabinetry/internal/app"
	"github.com/Simplici0/cabinetry/internal/config"
	"github.com/Simplici0/cabinetry/internal/migrations"
	"github.com/Simplici0/cabinetry/internal/pricing"
	"github.com/Simplici0/cabinetry/internal/quote"
	"github.com/Simplici0/cabinetry/internal/seed"
)

func (c *cli) estimateCmd() *cobra.Command {
	var (
		file    string
		asJSON  bool
		noStore bool
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Price an estimate request read from a JSON file",
		Long: `Price an estimate request. When the request has no "rates", the active
configuration is loaded from storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			if req.Rates.IsZero() && !noStore {
				backend, err := c.backend(cmd.Context())
				if err != nil {
					return err
				}
				active, err := backend.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load pricing configuration: %w", err)
				}
				req.Rates = active
			}

			res := pricing.Estimate(req)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return quote.Render(cmd.OutOrStdout(), quote.Quote{
				Currency: c.cfg.Currency,
				Request:  req,
				Result:   res,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "request JSON file, - for stdin")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "use built-in defaults instead of the stored configuration")
	return cmd
}

func (c *cli) versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List recorded pricing versions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := c.backend(cmd.Context())
			if err != nil {
				return err
			}
			versions, err := backend.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list pricing versions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(versions) == 0 {
				fmt.Fprintln(out, "No pricing versions recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "TS\tRECORDED\tTIER\tESTIMATE\t")
			for _, v := range versions {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n",
					v.TS, v.Time().Format("2006-01-02 15:04:05"), v.Data.Prefill.Tier, quote.Money(v.Data.Prefill.Estimate))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	var asText bool

	cmd := &cobra.Command{
		Use:   "version <ts>",
		Short: "Show one pricing version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := parseTS(args[0])
			if err != nil {
				return err
			}
			backend, err := c.backend(cmd.Context())
			if err != nil {
				return err
			}
			snap, err := backend.Get(cmd.Context(), ts)
			if err != nil {
				return err
			}

			if !asText {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			req := snap.Data.Prefill.Request(snap.Data.RateConfiguration)
			return quote.Render(cmd.OutOrStdout(), quote.Quote{
				Title:    fmt.Sprintf("Cabinetry quote #%d", snap.TS),
				Currency: c.cfg.Currency,
				IssuedAt: snap.Time(),
				Request:  req,
				Result:   pricing.Estimate(req),
			})
		},
	}

	cmd.Flags().BoolVar(&asText, "text", false, "render the version as a quote")
	return cmd
}

func (c *cli) restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <ts>",
		Short: "Make a recorded version's configuration the active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := parseTS(args[0])
			if err != nil {
				return err
			}
			backend, err := c.backend(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := backend.Restore(cmd.Context(), ts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored pricing version %d.\n", ts)
			for _, category := range []string{pricing.CategoryBase, pricing.CategoryHanging, pricing.CategoryTall} {
				fmt.Fprintf(out, "  %-8s %s\n", category, quote.Money(cfg.BaseRates[category]))
			}
			return nil
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the active pricing configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the active pricing configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := c.backend(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := backend.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load pricing configuration: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSQL(); err != nil {
				return err
			}
			database, err := app.OpenDB(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := migrations.Up(database.DB, c.cfg.DBDriver); err != nil {
				return err
			}
			version, err := migrations.Version(database.DB, c.cfg.DBDriver)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d.\n", version)
			return nil
		},
	}
}

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create or backfill the active pricing configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireSQL(); err != nil {
				return err
			}
			database, err := app.OpenDB(cmd.Context(), c.cfg, c.log)
			if err != nil {
				return err
			}
			defer database.Close()

			stats, err := seed.Run(cmd.Context(), database)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seed finished: %d inserted, %d updated.\n", stats.Inserts, stats.Updates)
			return nil
		},
	}
}

func (c *cli) requireSQL() error {
	if c.cfg.StorageBackend != config.BackendSQL {
		return fmt.Errorf("STORAGE_BACKEND=%s has no schema; this command needs %s", c.cfg.StorageBackend, config.BackendSQL)
	}
	return nil
}

func readRequest(path string, stdin io.Reader) (pricing.EstimateRequest, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return pricing.EstimateRequest{}, fmt.Errorf("open request file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req pricing.EstimateRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return pricing.EstimateRequest{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

func parseTS(raw string) (int64, error) {
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		return 0, errors.New("ts must be a positive integer (epoch milliseconds)")
	}
	return ts, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
