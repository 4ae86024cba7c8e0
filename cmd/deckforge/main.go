// Package main provides the deckforge command line tool. It assembles
// commander decks from an imported collection and reports on the value
// of that collection over time.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ramonehamilton/deckforge/internal/analytics"
	"github.com/ramonehamilton/deckforge/internal/charts"
	"github.com/ramonehamilton/deckforge/internal/collection"
	"github.com/ramonehamilton/deckforge/internal/config"
	"github.com/ramonehamilton/deckforge/internal/metrics"
	"github.com/ramonehamilton/deckforge/internal/mtga/cards"
	"github.com/ramonehamilton/deckforge/internal/service"
	"github.com/ramonehamilton/deckforge/internal/stats"
	"github.com/ramonehamilton/deckforge/internal/version"
)

const appName = "deckforge"

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
}

func (o *globalOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, cfg.NewLogger(os.Stderr), nil
}

// withService opens the service for the duration of fn.
func (o *globalOptions) withService(fn func(svc *service.Service) error) error {
	cfg, logger, err := o.load()
	if err != nil {
		return err
	}
	svc, err := service.Open(cfg, metrics.NewEngine(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Error("Error closing service", "error", err)
		}
	}()
	return fn(svc)
}

func rootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Commander deck builder and collection value tracker",
		Long: `deckforge builds commander decks from the cards you own and tracks
what your collection is worth.

Import a collection from CSV, refresh prices, then assemble decks within a
budget or report on value trends, return on investment and volatility.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file path (default: ~/.deckforge/config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		assembleCmd(opts),
		importCmd(opts),
		decksCmd(opts),
		recordGameCmd(opts),
		trendCmd(opts),
		breakdownCmd(opts),
		roiCmd(opts),
		volatilityCmd(opts),
		ceiCmd(opts),
		costToWinCmd(opts),
		refreshPricesCmd(opts),
		catalogCmd(opts),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String(appName))
		},
	}
}

func assembleCmd(opts *globalOptions) *cobra.Command {
	var (
		req    service.AssembleRequest
		format string
		budget string
	)

	cmd := &cobra.Command{
		Use:   "assemble COMMANDER",
		Short: "Assemble a deck around a commander from owned cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Commander = args[0]
			req.Format = cards.Format(format)
			if budget != "" {
				b, err := decimal.NewFromString(strings.TrimPrefix(budget, "$"))
				if err != nil {
					return fmt.Errorf("invalid budget %q: %w", budget, err)
				}
				req.Budget = &b
			}

			return opts.withService(func(svc *service.Service) error {
				result, err := svc.AssembleDeck(cmd.Context(), req)
				if result != nil {
					printResult(cmd.OutOrStdout(), result)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(cards.FormatCommander), "Deck format (commander, brawl)")
	cmd.Flags().StringVar(&req.CommanderSet, "set", "", "Commander printing set code")
	cmd.Flags().StringVarP(&budget, "budget", "b", "", "Maximum deck price in USD")
	cmd.Flags().StringVar(&req.Name, "name", "", "Deck name (default: the commander)")
	cmd.Flags().BoolVar(&req.RefreshPrices, "refresh-prices", false, "Fetch today's prices before a budgeted build")
	cmd.Flags().BoolVar(&req.Save, "save", false, "Save the deck for cost-to-win tracking")
	return cmd
}

func importCmd(opts *globalOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import FILE.csv",
		Short: "Import owned cards from a CSV file",
		Long: `Import owned cards from a CSV file with a header row. The name and
quantity columns are required; set, purchase_price and purchase_date
(YYYY-MM-DD) are optional.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open import file: %w", err)
			}
			defer func() { _ = f.Close() }()

			records, err := collection.ParseCSV(f)
			if err != nil {
				return err
			}

			return opts.withService(func(svc *service.Service) error {
				coll, err := svc.ImportCollection(cmd.Context(), records, replace)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records. Collection: %d printings, %d cards.\n",
					len(records), coll.Len(), coll.TotalQuantity())
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the stored collection instead of merging")
	return cmd
}

func decksCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decks",
		Short: "List saved decks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(func(svc *service.Service) error {
				decks, err := svc.ListDecks(cmd.Context())
				if err != nil {
					return err
				}
				printDecks(cmd.OutOrStdout(), decks)
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show DECK_ID",
		Short: "Show a saved deck",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				deck, err := svc.GetDeck(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printDeck(cmd.OutOrStdout(), deck)
				return nil
			})
		},
	}, &cobra.Command{
		Use:   "delete DECK_ID",
		Short: "Delete a saved deck and its game record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				return svc.DeleteDeck(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}

func recordGameCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "record-game DECK_ID win|loss|draw",
		Short:     "Record a game result for a saved deck",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(stats.Win), string(stats.Loss), string(stats.Draw)},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				return svc.RecordGame(cmd.Context(), stats.Game{DeckID: args[0], Outcome: stats.Outcome(args[1])})
			})
		},
	}
}

// chartOptions are the flags of commands that can render a chart.
type chartOptions struct {
	path string
	open bool
}

func (c *chartOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&c.path, "chart", "", "Also write an HTML chart to this file")
	cmd.Flags().BoolVar(&c.open, "open", false, "Open the chart in the default browser")
}

func (c *chartOptions) write(cmd *cobra.Command, render func(cfg charts.ChartConfig) func(w io.Writer) error, subtitle string) error {
	if c.path == "" {
		return nil
	}
	cfg := charts.DefaultChartConfig()
	cfg.Subtitle = subtitle
	if err := charts.WriteFile(c.path, render(cfg)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Chart written to %s\n", c.path)
	if c.open {
		return charts.OpenInBrowser(c.path)
	}
	return nil
}

func trendCmd(opts *globalOptions) *cobra.Command {
	var (
		days       int
		start, end string
		chart      chartOptions
	)

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show the collection value per day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dr, err := trendRange(start, end, days)
			if err != nil {
				return err
			}
			return opts.withService(func(svc *service.Service) error {
				points, err := svc.GetTrend(cmd.Context(), dr)
				if err != nil {
					return err
				}
				printTrend(cmd.OutOrStdout(), dr, points)
				return chart.write(cmd, func(cfg charts.ChartConfig) func(io.Writer) error {
					return func(w io.Writer) error { return charts.RenderTrend(w, points, cfg) }
				}, dr.FormatPeriod())
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 30, "Number of days ending today")
	cmd.Flags().StringVar(&start, "start", "", "First day (YYYY-MM-DD), overrides --days")
	cmd.Flags().StringVar(&end, "end", "", "Last day (YYYY-MM-DD, default today)")
	chart.register(cmd)
	return cmd
}

// trendRange resolves the trend flags to a date range.
func trendRange(start, end string, days int) (stats.DateRange, error) {
	if start == "" {
		if end != "" {
			return stats.DateRange{}, fmt.Errorf("--end requires --start")
		}
		if days < 1 {
			return stats.DateRange{}, fmt.Errorf("--days must be positive")
		}
		return stats.LastDays(time.Now(), days), nil
	}
	if end == "" {
		end = time.Now().UTC().Format(collection.DateLayout)
	}
	return stats.ParseDateRange(start, end)
}

func breakdownCmd(opts *globalOptions) *cobra.Command {
	var (
		by    string
		chart chartOptions
	)

	cmd := &cobra.Command{
		Use:   "breakdown",
		Short: "Show the collection value by rarity or set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dim, err := analytics.ParseDimension(by)
			if err != nil {
				return err
			}
			return opts.withService(func(svc *service.Service) error {
				b, err := svc.GetBreakdown(cmd.Context(), dim)
				if err != nil {
					return err
				}
				printBreakdown(cmd.OutOrStdout(), b)
				return chart.write(cmd, func(cfg charts.ChartConfig) func(io.Writer) error {
					return func(w io.Writer) error { return charts.RenderBreakdown(w, b, cfg) }
				}, "Total "+analytics.FormatUSD(b.Total))
			})
		},
	}

	cmd.Flags().StringVar(&by, "by", string(analytics.ByRarity), "Group by rarity or set")
	chart.register(cmd)
	return cmd
}

func roiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roi",
		Short: "Show the return on investment of the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(func(svc *service.Service) error {
				report, err := svc.GetROI(cmd.Context())
				if err != nil {
					return err
				}
				printROI(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

// parseCardRefs reads "Name" or "Name|set" card arguments.
func parseCardRefs(args []string) []collection.CardRef {
	refs := make([]collection.CardRef, 0, len(args))
	for _, a := range args {
		name, set, _ := strings.Cut(a, "|")
		if name = strings.TrimSpace(name); name == "" {
			continue
		}
		refs = append(refs, collection.CardRef{Name: name, SetCode: strings.ToLower(strings.TrimSpace(set))})
	}
	return refs
}

func volatilityCmd(opts *globalOptions) *cobra.Command {
	var (
		window int
		chart  chartOptions
	)

	cmd := &cobra.Command{
		Use:   "volatility [CARD|SET ...]",
		Short: "Show price volatility and spikes",
		Long: `Show the price volatility of the named cards over a trailing window of
daily prices. Without arguments every owned card is analysed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				rows, err := svc.GetVolatility(cmd.Context(), parseCardRefs(args), window)
				if err != nil {
					return err
				}
				printVolatility(cmd.OutOrStdout(), rows)
				return chart.write(cmd, func(cfg charts.ChartConfig) func(io.Writer) error {
					return func(w io.Writer) error { return charts.RenderPriceHistory(w, rows, cfg) }
				}, "")
			})
		},
	}

	cmd.Flags().IntVarP(&window, "window", "w", 0, "Trailing window in days (default from config)")
	chart.register(cmd)
	return cmd
}

func ceiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cei [CARD|SET ...]",
		Short: "Show the card efficiency index (inclusion rate per dollar)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				rows, err := svc.GetCEI(cmd.Context(), parseCardRefs(args))
				if err != nil {
					return err
				}
				printCEI(cmd.OutOrStdout(), rows)
				return nil
			})
		},
	}
}

func costToWinCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cost-to-win [DECK_ID ...]",
		Short: "Relate saved deck prices to their win rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(func(svc *service.Service) error {
				rows, err := svc.GetCostToWin(cmd.Context(), args)
				if err != nil {
					return err
				}
				printCostToWin(cmd.OutOrStdout(), rows)
				return nil
			})
		},
	}
}

func refreshPricesCmd(opts *globalOptions) *cobra.Command {
	var recompute bool

	cmd := &cobra.Command{
		Use:   "refresh-prices",
		Short: "Fetch today's price for every owned printing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withService(func(svc *service.Service) error {
				result, err := svc.RefreshPrices(cmd.Context())
				if err != nil {
					return err
				}
				printRefresh(cmd.OutOrStdout(), result)

				if recompute {
					n, err := svc.RecomputeInclusionRates(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Inclusion rates recomputed for %d cards.\n", n)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&recompute, "inclusion", false, "Also recompute card inclusion rates from saved decks")
	return cmd
}

func catalogCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the card catalog",
	}

	var bulkType string
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Download the Scryfall bulk card file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			return syncCatalog(cmd, cfg, bulkType, logger)
		},
	}
	sync.Flags().StringVar(&bulkType, "type", "default_cards", "Scryfall bulk data type")

	cmd.AddCommand(sync)
	return cmd
}

// syncCatalog downloads into a temporary file next to the bulk path and
// renames it into place, so a running watcher never sees a partial file.
func syncCatalog(cmd *cobra.Command, cfg *config.Config, bulkType string, logger *slog.Logger) error {
	dir := filepath.Dir(cfg.Catalog.BulkPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bulk-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	logger.Info("Downloading card catalog", "type", bulkType)
	meta, err := service.NewScryfallClient(cfg).DownloadBulk(cmd.Context(), bulkType, tmp)
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	if err != nil {
		return err
	}

	// Reject a download the catalog cannot parse before replacing the old one.
	catalog, err := cards.LoadBulkFile(tmp.Name())
	if err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), cfg.Catalog.BulkPath); err != nil {
		return fmt.Errorf("failed to install catalog: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Catalog updated: %d cards (%s, %s)\n",
		catalog.Len(), meta.Type, meta.UpdatedAt)
	return nil
}
