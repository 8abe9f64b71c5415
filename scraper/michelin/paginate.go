package michelin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"michelin-scraper/models"
	"michelin-scraper/utils"
)

// Paginator walks the listing pages in order.
type Paginator struct {
	fetcher   PageFetcher
	extractor *ListingExtractor
	baseURL   string
	ready     string
	logger    *utils.Logger
}

// NewPaginator creates a Paginator for the listing rooted at baseURL. ready is
// the selector that marks a rendered listing page.
func NewPaginator(fetcher PageFetcher, extractor *ListingExtractor, baseURL, ready string, logger *utils.Logger) *Paginator {
	return &Paginator{
		fetcher:   fetcher,
		extractor: extractor,
		baseURL:   strings.TrimRight(baseURL, "/"),
		ready:     ready,
		logger:    logger,
	}
}

// PageURL returns the URL of the 1-based listing page.
func (p *Paginator) PageURL(page int) string {
	if page <= 1 {
		return p.baseURL
	}
	return p.baseURL + "/page/" + strconv.Itoa(page)
}

// ScrapeSinglePage returns the records of one page. No deduplication is
// applied.
func (p *Paginator) ScrapeSinglePage(ctx context.Context, page int) ([]models.SummaryRecord, error) {
	pageURL := p.PageURL(page)
	p.logger.Info("[listing] Scraping page %d: %s", page, pageURL)

	doc, err := p.fetcher.Fetch(ctx, pageURL, p.ready)
	if err != nil {
		return nil, fmt.Errorf("michelin: listing page %d: %w", page, err)
	}
	records := p.extractor.Extract(doc)
	p.logger.Debug("[listing] Page %d: %d cards", page, len(records))
	return records, nil
}

// ScrapeAll fetches pages 1..maxPages and stops at the first page without
// restaurants or the first page that fails to load. Records whose URL was
// already seen earlier in the run are dropped.
func (p *Paginator) ScrapeAll(ctx context.Context, maxPages int) []models.SummaryRecord {
	seen := utils.NewDeduplicator()
	all := make([]models.SummaryRecord, 0)

	for page := 1; page <= maxPages; page++ {
		records, err := p.ScrapeSinglePage(ctx, page)
		if err != nil {
			p.logger.Error("[listing] Page %d failed, stopping pagination: %v", page, err)
			break
		}
		if len(records) == 0 {
			p.logger.Info("[listing] Page %d has no restaurants, stopping", page)
			break
		}

		added := 0
		for _, rec := range records {
			if !seen.Admit(rec.URL) {
				p.logger.Debug("[listing] Skipping duplicate: %s", rec.URL)
				continue
			}
			all = append(all, rec)
			added++
		}
		p.logger.Info("[listing] Page %d done: %d new, %d collected so far", page, added, len(all))
	}

	p.logger.Info("[listing] Scraping finished: %d restaurants", len(all))
	return all
}
