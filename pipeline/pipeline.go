// Package pipeline runs the two scraping stages: the paginated listing crawl
// and the per-restaurant detail crawl.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"michelin-scraper/config"
	"michelin-scraper/models"
	"michelin-scraper/scraper/michelin"
	"michelin-scraper/services"
	"michelin-scraper/storage"
	"michelin-scraper/utils"
)

// BrowserFactory opens a browser for one stage. Each stage opens its own and
// closes it before returning.
type BrowserFactory func(ctx context.Context) (michelin.Browser, error)

// Pipeline wires the stages to their configuration and outputs.
type Pipeline struct {
	cfg         *config.Config
	sel         config.Selectors
	newBrowser  BrowserFactory
	logger      *utils.Logger
	checkpoints *storage.CheckpointStore

	sink     storage.RecordSink
	insights *services.InsightService
	now      func() time.Time
}

type Option func(*Pipeline)

// WithSink mirrors every written record file into sink.
func WithSink(sink storage.RecordSink) Option {
	return func(p *Pipeline) { p.sink = sink }
}

// WithInsights prints a summary table after each stage.
func WithInsights(svc *services.InsightService) Option {
	return func(p *Pipeline) { p.insights = svc }
}

func New(cfg *config.Config, sel config.Selectors, newBrowser BrowserFactory, logger *utils.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:         cfg,
		sel:         sel,
		newBrowser:  newBrowser,
		logger:      logger,
		checkpoints: storage.NewCheckpointStore(cfg.CheckpointPath),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the listing stage and feeds its records straight into the
// detail stage.
func (p *Pipeline) Run(ctx context.Context) error {
	summaries, err := p.RunListing(ctx)
	if err != nil {
		return err
	}
	_, err = p.RunDetails(ctx, summaries)
	return err
}

// RunListing crawls every listing page up to MaxPages and writes the
// deduplicated records.
func (p *Pipeline) RunListing(ctx context.Context) ([]models.SummaryRecord, error) {
	return p.listing(ctx, func(pg *michelin.Paginator) ([]models.SummaryRecord, error) {
		return pg.ScrapeAll(ctx, p.cfg.MaxPages), nil
	})
}

// RunSinglePage scrapes one listing page and writes its records.
func (p *Pipeline) RunSinglePage(ctx context.Context, page int) ([]models.SummaryRecord, error) {
	return p.listing(ctx, func(pg *michelin.Paginator) ([]models.SummaryRecord, error) {
		return pg.ScrapeSinglePage(ctx, page)
	})
}

func (p *Pipeline) listing(ctx context.Context, scrape func(*michelin.Paginator) ([]models.SummaryRecord, error)) ([]models.SummaryRecord, error) {
	p.logger.Info("=== Stage 1: listing %s ===", p.cfg.ListingURL)

	records, err := p.scrapeListing(ctx, scrape)
	if err != nil {
		return nil, err
	}

	if err := storage.Write(p.cfg.ListingOutput, records); err != nil {
		return records, fmt.Errorf("pipeline: write listing: %w", err)
	}
	p.logger.Info("[listing] Saved %d restaurants to %s.{json,csv}", len(records), p.cfg.ListingOutput)

	if p.sink != nil {
		if err := p.sink.WriteSummaries(ctx, records); err != nil {
			p.logger.Error("[listing] Database write failed: %v", err)
		}
	}
	if p.insights != nil {
		p.insights.PrintListing(p.insights.Listing(records))
	}
	return records, ctx.Err()
}

func (p *Pipeline) scrapeListing(ctx context.Context, scrape func(*michelin.Paginator) ([]models.SummaryRecord, error)) ([]models.SummaryRecord, error) {
	browser, err := p.newBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: listing: %w", err)
	}
	defer p.closeBrowser(browser)

	extractor := michelin.NewListingExtractor(p.sel.Listing, p.logger)
	paginator := michelin.NewPaginator(browser, extractor, p.cfg.ListingURL, p.sel.Listing.Ready, p.logger)
	records, err := scrape(paginator)
	if err != nil {
		return nil, fmt.Errorf("pipeline: listing: %w", err)
	}
	return records, nil
}

// RunDetailsFromFile runs the detail stage over the listing records saved by
// an earlier run.
func (p *Pipeline) RunDetailsFromFile(ctx context.Context) ([]models.DetailRecord, error) {
	summaries, err := storage.ReadSummaries(p.cfg.ListingOutput)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load listing records (run the listing stage first): %w", err)
	}
	p.logger.Info("[details] Loaded %d restaurants from %s", len(summaries), p.cfg.ListingOutput)
	return p.RunDetails(ctx, summaries)
}

// RunDetails visits the detail page of each summary in the configured window.
// After every item the detail files and the checkpoint are rewritten, so an
// interrupted run loses at most the item in flight. Items whose page cannot
// be fetched are skipped and listed in the checkpoint.
func (p *Pipeline) RunDetails(ctx context.Context, summaries []models.SummaryRecord) ([]models.DetailRecord, error) {
	targets := selectTargets(summaries, p.cfg.StartIndex, p.cfg.MaxRestaurants)
	p.logger.Info("=== Stage 2: details for %d of %d restaurants ===", len(targets), len(summaries))

	cp, details := p.startCheckpoint(len(targets))
	if cp.NextIndex >= len(targets) {
		return p.finishDetails(ctx, cp, details)
	}

	browser, err := p.newBrowser(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: details: %w", err)
	}
	defer p.closeBrowser(browser)

	extractor := michelin.NewDetailExtractor(p.sel.Detail, p.logger)
	for i := cp.NextIndex; i < len(targets); i++ {
		if ctx.Err() != nil {
			break
		}
		summary := targets[i]
		p.logger.Info("[details] (%d/%d) %s", i+1, len(targets), summary.Name)

		doc, err := browser.Fetch(ctx, summary.URL, p.sel.Detail.Ready)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			p.logger.Warn("[details] Skipping %s: %v", summary.URL, err)
			cp.Failed = append(cp.Failed, summary.URL)
		} else {
			details = append(details, extractor.Extract(doc, summary))
		}

		cp.NextIndex = i + 1
		if err := p.saveProgress(cp, details); err != nil {
			return details, err
		}
	}

	if err := ctx.Err(); err != nil {
		p.logger.Warn("[details] Interrupted after %d/%d restaurants; rerun with --resume to continue", cp.NextIndex, len(targets))
		return details, err
	}
	return p.finishDetails(ctx, cp, details)
}

// startCheckpoint resumes a matching unfinished checkpoint when Resume is set,
// reloading the records it already wrote. Otherwise a new run starts at 0.
func (p *Pipeline) startCheckpoint(total int) (*models.Checkpoint, []models.DetailRecord) {
	fresh := &models.Checkpoint{
		RunID:      uuid.NewString(),
		Source:     p.cfg.ListingOutput,
		StartIndex: p.cfg.StartIndex,
		Total:      total,
		UpdatedAt:  p.now().UTC(),
	}
	if !p.cfg.Resume {
		return fresh, nil
	}

	cp, err := p.checkpoints.Load()
	switch {
	case err != nil:
		p.logger.Warn("[details] Ignoring unreadable checkpoint: %v", err)
		return fresh, nil
	case cp == nil:
		p.logger.Info("[details] No checkpoint at %s, starting from the beginning", p.checkpoints.Path())
		return fresh, nil
	case cp.Completed, cp.Source != fresh.Source, cp.StartIndex != fresh.StartIndex, cp.Total != total:
		p.logger.Info("[details] Checkpoint %s does not match this run, starting from the beginning", cp.RunID)
		return fresh, nil
	}

	details, err := storage.ReadDetails(p.cfg.DetailOutput)
	if err != nil {
		p.logger.Warn("[details] Cannot reload %s, starting from the beginning: %v", p.cfg.DetailOutput, err)
		return fresh, nil
	}
	p.logger.Info("[details] Resuming run %s at %d/%d with %d saved records", cp.RunID, cp.NextIndex, total, len(details))
	return cp, details
}

func (p *Pipeline) saveProgress(cp *models.Checkpoint, details []models.DetailRecord) error {
	if err := storage.Write(p.cfg.DetailOutput, details); err != nil {
		return fmt.Errorf("pipeline: write details: %w", err)
	}
	cp.UpdatedAt = p.now().UTC()
	if err := p.checkpoints.Save(cp); err != nil {
		return fmt.Errorf("pipeline: save checkpoint: %w", err)
	}
	return nil
}

func (p *Pipeline) finishDetails(ctx context.Context, cp *models.Checkpoint, details []models.DetailRecord) ([]models.DetailRecord, error) {
	cp.Completed = true
	if err := p.saveProgress(cp, details); err != nil {
		return details, err
	}
	p.logger.Info("[details] Saved %d restaurants to %s.{json,csv} (%d failed)", len(details), p.cfg.DetailOutput, len(cp.Failed))

	if p.sink != nil {
		if err := p.sink.WriteDetails(ctx, details); err != nil {
			p.logger.Error("[details] Database write failed: %v", err)
		}
	}
	if p.insights != nil {
		p.insights.PrintDetail(p.insights.Detail(details))
	}
	return details, nil
}

func (p *Pipeline) closeBrowser(b michelin.Browser) {
	if err := b.Close(); err != nil {
		p.logger.Warn("[session] Close failed: %v", err)
	}
}

// selectTargets drops records without a usable url or with a repeated one,
// then applies the start/limit window. limit 0 means no limit.
func selectTargets(summaries []models.SummaryRecord, start, limit int) []models.SummaryRecord {
	seen := utils.NewDeduplicator()
	usable := make([]models.SummaryRecord, 0, len(summaries))
	for _, s := range summaries {
		if s.URL == "" || s.URL == models.NotAvailable || !seen.Admit(s.URL) {
			continue
		}
		usable = append(usable, s)
	}

	if start >= len(usable) {
		return nil
	}
	usable = usable[max(start, 0):]
	if limit > 0 && limit < len(usable) {
		usable = usable[:limit]
	}
	return usable
}
