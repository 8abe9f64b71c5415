// Package cli implements the michelin-scraper command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"michelin-scraper/config"
	"michelin-scraper/models"
	"michelin-scraper/pipeline"
	"michelin-scraper/scraper/michelin"
	"michelin-scraper/services"
	"michelin-scraper/storage"
	"michelin-scraper/utils"
)

// options holds flag values. Flags only override the environment when they
// are set explicitly.
type options struct {
	maxPages       int
	singlePage     int
	maxRestaurants int
	startIndex     int
	noHeadless     bool
	resume         bool
	selectorsPath  string
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run so the
// browser is shut down and progress is saved.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "michelin-scraper",
		Short:         "Scrape Michelin Guide restaurants",
		Long:          "Scrape the Michelin Guide listing and each restaurant's page into JSON and CSV files.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().BoolVar(&opts.noHeadless, "no-headless", false, "show the browser window")
	root.PersistentFlags().StringVar(&opts.selectorsPath, "selectors", "", "YAML file overriding the page selectors")

	root.AddCommand(listingCommand(opts), detailsCommand(opts), allCommand(opts))
	return root
}

func listingCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Stage 1: scrape the paginated restaurant listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, p *pipeline.Pipeline) error {
				_, err := runListing(ctx, p, opts)
				return err
			})
		},
	}
	addListingFlags(cmd, opts)
	return cmd
}

func detailsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "details",
		Short: "Stage 2: scrape each restaurant page from the saved listing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, p *pipeline.Pipeline) error {
				_, err := p.RunDetailsFromFile(ctx)
				return err
			})
		},
	}
	addDetailFlags(cmd, opts)
	return cmd
}

func allCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run the listing stage, then the detail stage on its results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts, func(ctx context.Context, p *pipeline.Pipeline) error {
				if opts.singlePage <= 0 {
					return p.Run(ctx)
				}
				summaries, err := runListing(ctx, p, opts)
				if err != nil {
					return err
				}
				_, err = p.RunDetails(ctx, summaries)
				return err
			})
		},
	}
	addListingFlags(cmd, opts)
	addDetailFlags(cmd, opts)
	return cmd
}

func addListingFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVar(&opts.maxPages, "max-pages", 0, "maximum listing pages to visit (default from MAX_PAGES)")
	cmd.Flags().IntVar(&opts.singlePage, "single-page", 0, "scrape only this listing page, without pagination")
}

func addDetailFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVar(&opts.maxRestaurants, "max-restaurants", 0, "maximum restaurants to visit, 0 for all")
	cmd.Flags().IntVar(&opts.startIndex, "start-index", 0, "index of the first restaurant to visit")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "continue from the saved checkpoint")
}

func runListing(ctx context.Context, p *pipeline.Pipeline, opts *options) ([]models.SummaryRecord, error) {
	if opts.singlePage > 0 {
		return p.RunSinglePage(ctx, opts.singlePage)
	}
	return p.RunListing(ctx)
}

// run loads configuration, wires the pipeline and hands it to stage.
func run(cmd *cobra.Command, opts *options, stage func(context.Context, *pipeline.Pipeline) error) error {
	ctx := cmd.Context()

	cfg := config.Load()
	applyFlags(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	sel, err := config.LoadSelectors(cfg.SelectorsPath)
	if err != nil {
		return err
	}

	pipeOpts := []pipeline.Option{
		pipeline.WithInsights(services.NewInsightService(logger, cmd.OutOrStdout())),
	}
	if cfg.PostgresEnabled {
		pg, err := storage.NewPostgresWriter(ctx, cfg.DSN(), logger)
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			logger.Error("Make sure Docker is running: docker compose up -d")
			return err
		}
		defer pg.Close()
		pipeOpts = append(pipeOpts, pipeline.WithSink(pg))
	}

	newBrowser := func(ctx context.Context) (michelin.Browser, error) {
		return michelin.NewSession(ctx, cfg, logger)
	}
	p := pipeline.New(cfg, sel, newBrowser, logger, pipeOpts...)

	if err := stage(ctx, p); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name(), err)
	}
	logger.Info("Done. Listing -> %s.{json,csv} | Details -> %s.{json,csv}", cfg.ListingOutput, cfg.DetailOutput)
	return nil
}

// applyFlags copies explicitly set flags over the environment configuration.
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts *options) {
	flags := cmd.Flags()
	if flags.Changed("max-pages") {
		cfg.MaxPages = opts.maxPages
	}
	if flags.Changed("max-restaurants") {
		cfg.MaxRestaurants = opts.maxRestaurants
	}
	if flags.Changed("start-index") {
		cfg.StartIndex = opts.startIndex
	}
	if flags.Changed("resume") {
		cfg.Resume = opts.resume
	}
	if flags.Changed("selectors") {
		cfg.SelectorsPath = opts.selectorsPath
	}
	if opts.noHeadless {
		cfg.Headless = false
	}
}
