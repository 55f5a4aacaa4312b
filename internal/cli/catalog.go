package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/yourneighborhoodchef/skuwatch/internal/config"
	"github.com/yourneighborhoodchef/skuwatch/internal/model"
	"golang.org/x/term"
)

type catalogFetcher interface {
	FetchCatalog(ctx context.Context) (model.Catalog, error)
}

// newCatalogFetcher is swapped in tests.
var newCatalogFetcher = func(cfg *config.Config, log *slog.Logger) (catalogFetcher, error) {
	return newVendor(cfg, log, nil)
}

func newProductsCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the configured products and whether they are monitored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root, true)
			if err != nil {
				return err
			}
			printProducts(cmd.OutOrStdout(), cfg.ProductSpecs())
			return nil
		},
	}
}

func printProducts(out io.Writer, products []model.ProductSpec) {
	if len(products) == 0 {
		fmt.Fprintln(out, "No products configured.")
		return
	}

	on := color.New(color.FgGreen).SprintFunc()
	off := color.New(color.FgRed).SprintFunc()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRODUCT\tSTATE\tPINNED SKU")
	for _, p := range products {
		state := off("disabled")
		if p.Enabled {
			state = on("enabled")
		}
		pinned := p.PinnedSKU
		if pinned == "" {
			pinned = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, state, pinned)
	}
	_ = tw.Flush()
}

type skusOptions struct {
	locale string
	json   bool
}

func newSkusCommand(root *rootOptions) *cobra.Command {
	opts := &skusOptions{}

	cmd := &cobra.Command{
		Use:   "skus",
		Short: "Fetch the vendor catalog and print SKU and name pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, root, true)
			if err != nil {
				return err
			}
			log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))

			fetcher, err := newCatalogFetcher(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			stopSpin := startSpinner(cmd.ErrOrStderr(), "Fetching catalog for "+cfg.Locale.Locale)
			catalog, err := fetcher.FetchCatalog(ctx)
			stopSpin()
			if err != nil {
				return fmt.Errorf("fetching catalog: %w", err)
			}

			if opts.json {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Entries())
			}
			printCatalog(cmd.OutOrStdout(), cfg.Locale.Locale, catalog)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.locale, "locale", "", "Catalog locale, for example en-gb or de-de (default from config)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the catalog as JSON")
	return cmd
}

func printCatalog(out io.Writer, locale string, catalog model.Catalog) {
	fmt.Fprintf(out, "%d products listed for %s\n\n", catalog.Len(), locale)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNAME")
	for _, e := range catalog.Entries() {
		fmt.Fprintf(tw, "%s\t%s\n", e.SKU, e.DisplayName)
	}
	_ = tw.Flush()
}

// startSpinner animates msg on w when w is a terminal and returns the stop func.
func startSpinner(w io.Writer, msg string) func() {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Writer = f
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}
