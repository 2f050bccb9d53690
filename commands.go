package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sjsage522/psa10finder/config"
	"sjsage522/psa10finder/internal/card"
	"sjsage522/psa10finder/internal/server"
	"sjsage522/psa10finder/internal/store"
	"sjsage522/psa10finder/logger"
	"sjsage522/psa10finder/pkg/errors"
	"sjsage522/psa10finder/services/lookup"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "psa10finder [name] [set] [number]",
		Short: "Find the cheapest PSA 10 listing of a card on SNKRDUNK",
		Long: "Find the cheapest PSA 10 listing of a card on SNKRDUNK.\n" +
			"Called with arguments it behaves like the query command.",
		Args:          cobra.MaximumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runQuery,
	}

	rootCmd.AddCommand(newQueryCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newNormalizeCommand())

	return rootCmd
}

func newQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <name> [set] [number]",
		Short: "Print the latest cached price, scraping SNKRDUNK on a miss",
		Args:  cobra.MaximumNArgs(3),
		RunE:  runQuery,
	}
}

// runQuery prints one JSON result line. Without a name it reports
// "No keyword provided" and exits 1; every other outcome exits 0.
func runQuery(cmd *cobra.Command, args []string) error {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		if err := writeResult(cmd, lookup.Failure("No keyword provided")); err != nil {
			return err
		}
		return exitError{code: 1}
	}

	name := args[0]
	set := card.DefaultSetName
	if len(args) > 1 {
		set = args[1]
	}
	number := ""
	if len(args) > 2 {
		number = args[2]
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return writeResult(cmd, lookup.Failure(err.Error()))
	}
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		return writeResult(cmd, lookup.Failure(err.Error()))
	}
	defer services.Cleanup()

	return writeResult(cmd, services.Lookup.Query(ctx, name, set, number))
}

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search endpoint over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}

			services, err := initializeServices(ctx, cfg)
			if err != nil {
				return err
			}
			defer services.Cleanup()

			handler := server.NewHandler(services.Lookup).WithUpstream(server.NewUpstream(cfg))
			router := server.SetupRouter(cfg, handler)

			logger.ForServer().Info().
				Str("addr", cfg.HTTPAddr).
				Str("environment", cfg.Environment).
				Str("renderer", cfg.Renderer).
				Str("store", cfg.StoreDriver).
				Msg("Starting HTTP bridge")

			if err := server.Run(ctx, cfg.HTTPAddr, router); err != nil {
				return err
			}
			logger.ForServer().Info().Msg("Shutting down gracefully...")
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "history <name>",
		Short: "List stored prices whose card name contains name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.History(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, historyJSON(records))
			}
			if len(records) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No records for %q\n", args[0])
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderHistory(records))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records (0 for all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of a table")
	return cmd
}

func newNormalizeCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "normalize <name> [set] [number]",
		Short: "Show the search term and match tokens derived from a card",
		Args:  cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := card.Identifier{RawName: args[0], RawSet: card.DefaultSetName}
			if len(args) > 1 {
				id.RawSet = args[1]
			}
			if len(args) > 2 {
				id.CardNumber = args[2]
			}
			q := card.NewQuery(id)

			if jsonOut {
				return writeJSON(cmd, q)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderQuery(q))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of a table")
	return cmd
}

type historyRecord struct {
	ID        int64    `json:"id"`
	CardName  string   `json:"cardName"`
	Price     *float64 `json:"price"`
	ScrapedAt string   `json:"scrapedAt"`
	URL       string   `json:"url"`
	ItemCount int      `json:"itemCount"`
}

func historyJSON(records []store.PriceRecord) []historyRecord {
	out := make([]historyRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, historyRecord{
			ID:        rec.ID,
			CardName:  rec.CardName,
			Price:     rec.Price,
			ScrapedAt: rec.ScrapedAt.UTC().Format(historyTimeLayout),
			URL:       rec.URL,
			ItemCount: rec.ItemCount,
		})
	}
	return out
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, errors.NewConfiguration("failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.NewConfiguration("invalid configuration", err)
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// writeResult prints a query result as one compact JSON line
func writeResult(cmd *cobra.Command, result lookup.Result) error {
	return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
}

// writeJSON encodes v as indented JSON to the command's stdout
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
