package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"michelin-scraper/config"
	"michelin-scraper/models"
	"michelin-scraper/scraper/michelin"
	"michelin-scraper/services"
	"michelin-scraper/storage"
	"michelin-scraper/utils"
)

const listingURL = "https://guide.michelin.com/th/en/selection/thailand/restaurants"

func restaurantURL(slug string) string {
	return "https://guide.michelin.com/th/en/restaurant/" + slug
}

func card(name, slug string) string {
	return fmt.Sprintf(`<div class="card__menu">
<h3 class="card__menu-content--title"><a href="/th/en/restaurant/%s">%s</a></h3>
<div class="card__menu-footer--score">Bangkok</div>
<div class="card__menu-footer--score">฿฿ · Thai</div>
</div>`, slug, name)
}

func listingPage(cards ...string) string {
	return "<html><body>" + strings.Join(cards, "\n") + "</body></html>"
}

func detailPage(slug string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1>
<div class="restaurant-details__heading--address">address of %s</div></body></html>`, slug, slug)
}

// fakeBrowser serves canned pages. Unknown URLs render as an empty page.
type fakeBrowser struct {
	pages    map[string]string
	errs     map[string]error
	onFetch  func(pageURL string)
	requests []string
	opened   int
	closed   int
}

func newSite() *fakeBrowser {
	b := &fakeBrowser{pages: map[string]string{
		listingURL:             listingPage(card("A", "a"), card("B", "b")),
		listingURL + "/page/2": listingPage(card("B", "b"), card("C", "c")),
	}}
	for _, slug := range []string{"a", "b", "c", "d"} {
		b.pages[restaurantURL(slug)] = detailPage(slug)
	}
	return b
}

func (b *fakeBrowser) factory() BrowserFactory {
	return func(context.Context) (michelin.Browser, error) {
		b.opened++
		return b, nil
	}
}

func (b *fakeBrowser) Fetch(ctx context.Context, pageURL, _ string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.requests = append(b.requests, pageURL)
	if b.onFetch != nil {
		b.onFetch(pageURL)
	}
	if err, ok := b.errs[pageURL]; ok {
		return nil, err
	}
	html, ok := b.pages[pageURL]
	if !ok {
		html = "<html><body></body></html>"
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	doc.Url, _ = url.Parse(pageURL)
	return doc, nil
}

func (b *fakeBrowser) Close() error {
	b.closed++
	return nil
}

// detailRequests filters out listing page fetches.
func (b *fakeBrowser) detailRequests() []string {
	var out []string
	for _, r := range b.requests {
		if strings.Contains(r, "/restaurant/") {
			out = append(out, r)
		}
	}
	return out
}

type fakeSink struct {
	summaries []models.SummaryRecord
	details   []models.DetailRecord
	err       error
}

func (s *fakeSink) WriteSummaries(_ context.Context, recs []models.SummaryRecord) error {
	s.summaries = recs
	return s.err
}

func (s *fakeSink) WriteDetails(_ context.Context, recs []models.DetailRecord) error {
	s.details = recs
	return s.err
}

func (s *fakeSink) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ListingURL:     listingURL,
		MaxPages:       5,
		ListingOutput:  filepath.Join(dir, "michelin_thailand"),
		DetailOutput:   filepath.Join(dir, "michelin_thailand_details"),
		CheckpointPath: filepath.Join(dir, "checkpoint.json"),
	}
}

func newPipeline(cfg *config.Config, b *fakeBrowser, opts ...Option) *Pipeline {
	return New(cfg, config.DefaultSelectors(), b.factory(), utils.NewNopLogger(), opts...)
}

func summaries(slugs ...string) []models.SummaryRecord {
	out := make([]models.SummaryRecord, 0, len(slugs))
	for _, s := range slugs {
		u := restaurantURL(s)
		if s == "" {
			u = models.NotAvailable
		}
		out = append(out, models.SummaryRecord{Name: strings.ToUpper(s), URL: u})
	}
	return out
}

func detailNames(recs []models.DetailRecord) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Name)
	}
	return out
}

func loadCheckpoint(t *testing.T, cfg *config.Config) *models.Checkpoint {
	t.Helper()
	cp, err := storage.NewCheckpointStore(cfg.CheckpointPath).Load()
	require.NoError(t, err)
	require.NotNil(t, cp)
	return cp
}

func TestRunBothStages(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()
	sink := &fakeSink{}
	var out bytes.Buffer

	p := newPipeline(cfg, site,
		WithSink(sink),
		WithInsights(services.NewInsightService(utils.NewNopLogger(), &out)))
	require.NoError(t, p.Run(context.Background()))

	listed, err := storage.ReadSummaries(cfg.ListingOutput)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, restaurantURL("c"), listed[2].URL)

	details, err := storage.ReadDetails(cfg.DetailOutput)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, detailNames(details))
	assert.Equal(t, "address of b", details[1].Address)
	assert.Equal(t, models.NotAvailable, details[1].Phone)
	assert.Equal(t, listed[1], details[1].SummaryRecord)

	cp := loadCheckpoint(t, cfg)
	assert.True(t, cp.Completed)
	assert.Equal(t, 3, cp.Total)
	assert.Equal(t, 3, cp.NextIndex)
	assert.Empty(t, cp.Failed)
	_, err = uuid.Parse(cp.RunID)
	assert.NoError(t, err)

	assert.Equal(t, 2, site.opened)
	assert.Equal(t, 2, site.closed)
	assert.Equal(t, []string{restaurantURL("a"), restaurantURL("b"), restaurantURL("c")}, site.detailRequests())
	assert.Len(t, sink.summaries, 3)
	assert.Len(t, sink.details, 3)
	assert.Contains(t, out.String(), "Total restaurants")
	assert.Contains(t, out.String(), "Coverage")
}

func TestSinkFailureDoesNotFailRun(t *testing.T) {
	cfg := testConfig(t)
	p := newPipeline(cfg, newSite(), WithSink(&fakeSink{err: errors.New("connection refused")}))

	require.NoError(t, p.Run(context.Background()))
	_, err := os.Stat(storage.JSONPath(cfg.DetailOutput))
	assert.NoError(t, err)
}

func TestRunSinglePage(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()

	recs, err := newPipeline(cfg, site).RunSinglePage(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{listingURL + "/page/2"}, site.requests)

	listed, err := storage.ReadSummaries(cfg.ListingOutput)
	require.NoError(t, err)
	assert.Equal(t, recs, listed)
	assert.Equal(t, "B", listed[0].Name)
	assert.Equal(t, "C", listed[1].Name)
}

func TestSessionStartFailureIsFatal(t *testing.T) {
	cfg := testConfig(t)
	factory := func(context.Context) (michelin.Browser, error) {
		return nil, fmt.Errorf("%w: chrome not found", michelin.ErrSessionStart)
	}
	p := New(cfg, config.DefaultSelectors(), factory, utils.NewNopLogger())

	err := p.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, michelin.ErrSessionStart))

	_, statErr := os.Stat(storage.JSONPath(cfg.ListingOutput))
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))
}

func TestRunDetailsWindowSkipsUnusableURLs(t *testing.T) {
	cfg := testConfig(t)
	cfg.StartIndex = 1
	cfg.MaxRestaurants = 2
	site := newSite()

	details, err := newPipeline(cfg, site).RunDetails(context.Background(), summaries("a", "", "b", "a", "c", "d"))
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, detailNames(details))
	assert.Equal(t, []string{restaurantURL("b"), restaurantURL("c")}, site.requests)
	assert.Equal(t, 2, loadCheckpoint(t, cfg).Total)
}

func TestRunDetailsSkipsFailedFetch(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()
	site.errs = map[string]error{restaurantURL("b"): michelin.ErrFetchTimeout}

	details, err := newPipeline(cfg, site).RunDetails(context.Background(), summaries("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "C"}, detailNames(details))
	cp := loadCheckpoint(t, cfg)
	assert.True(t, cp.Completed)
	assert.Equal(t, []string{restaurantURL("b")}, cp.Failed)
}

func TestRunDetailsNothingToDo(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()

	details, err := newPipeline(cfg, site).RunDetails(context.Background(), summaries("", ""))
	require.NoError(t, err)
	assert.Empty(t, details)
	assert.Zero(t, site.opened)

	data, err := os.ReadFile(storage.JSONPath(cfg.DetailOutput))
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))
}

func TestRunDetailsResumesAfterInterrupt(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onFetch = func(pageURL string) {
		if pageURL == restaurantURL("b") {
			cancel()
		}
	}

	_, err := newPipeline(cfg, site).RunDetails(ctx, summaries("a", "b", "c"))
	require.ErrorIs(t, err, context.Canceled)

	first := loadCheckpoint(t, cfg)
	assert.False(t, first.Completed)
	assert.Equal(t, 2, first.NextIndex)
	saved, err := storage.ReadDetails(cfg.DetailOutput)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, detailNames(saved))

	cfg.Resume = true
	site.onFetch = nil
	site.requests = nil

	details, err := newPipeline(cfg, site).RunDetails(context.Background(), summaries("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, []string{restaurantURL("c")}, site.requests)
	assert.Equal(t, []string{"A", "B", "C"}, detailNames(details))
	final := loadCheckpoint(t, cfg)
	assert.True(t, final.Completed)
	assert.Equal(t, first.RunID, final.RunID)
}

func TestResumeIgnoresCheckpointFromOtherSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Resume = true
	require.NoError(t, storage.NewCheckpointStore(cfg.CheckpointPath).Save(&models.Checkpoint{
		RunID:     "old",
		Source:    "somewhere/else",
		Total:     3,
		NextIndex: 2,
	}))
	site := newSite()

	details, err := newPipeline(cfg, site).RunDetails(context.Background(), summaries("a", "b", "c"))
	require.NoError(t, err)
	assert.Len(t, details, 3)
	assert.Len(t, site.requests, 3)
	assert.NotEqual(t, "old", loadCheckpoint(t, cfg).RunID)
}

func TestResumeIgnoresCheckpointFromOtherWindow(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	site.onFetch = func(pageURL string) {
		if pageURL == restaurantURL("b") {
			cancel()
		}
	}
	cfg.MaxRestaurants = 2
	_, err := newPipeline(cfg, site).RunDetails(ctx, summaries("a", "b", "c", "d"))
	require.ErrorIs(t, err, context.Canceled)
	first := loadCheckpoint(t, cfg)
	assert.Equal(t, 0, first.StartIndex)
	assert.Equal(t, 2, first.NextIndex)

	cfg.Resume = true
	cfg.StartIndex = 2
	site.onFetch = nil
	site.requests = nil

	details, err := newPipeline(cfg, site).RunDetails(context.Background(), summaries("a", "b", "c", "d"))
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D"}, detailNames(details))
	assert.Equal(t, []string{restaurantURL("c"), restaurantURL("d")}, site.requests)

	final := loadCheckpoint(t, cfg)
	assert.NotEqual(t, first.RunID, final.RunID)
	assert.Equal(t, 2, final.StartIndex)
}

func TestRunDetailsFromFileFillsMissingColumns(t *testing.T) {
	cfg := testConfig(t)
	csvText := "name,url\nA," + restaurantURL("a") + "\n"
	require.NoError(t, os.WriteFile(storage.CSVPath(cfg.ListingOutput), []byte(csvText), 0o644))
	site := newSite()

	details, err := newPipeline(cfg, site).RunDetailsFromFile(context.Background())
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, models.NotAvailable, details[0].Location)
	assert.Equal(t, models.NotAvailable, details[0].Price)
	assert.Equal(t, models.NotAvailable, details[0].Cuisine)

	saved, err := storage.ReadDetails(cfg.DetailOutput)
	require.NoError(t, err)
	assert.Equal(t, details, saved)
}

func TestRunDetailsFromFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, storage.Write(cfg.ListingOutput, summaries("a", "", "c")))
	require.NoError(t, os.Remove(storage.JSONPath(cfg.ListingOutput)))
	site := newSite()

	details, err := newPipeline(cfg, site).RunDetailsFromFile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, detailNames(details))
}

func TestRunDetailsFromFileWithoutListing(t *testing.T) {
	cfg := testConfig(t)
	site := newSite()

	_, err := newPipeline(cfg, site).RunDetailsFromFile(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Zero(t, site.opened)
}

func TestSelectTargets(t *testing.T) {
	all := summaries("a", "", "b", "c", "b", "d")

	tests := []struct {
		name  string
		start int
		limit int
		want  []string
	}{
		{"everything", 0, 0, []string{"A", "B", "C", "D"}},
		{"limit", 0, 2, []string{"A", "B"}},
		{"start", 2, 0, []string{"C", "D"}},
		{"window", 1, 2, []string{"B", "C"}},
		{"limit past end", 3, 10, []string{"D"}},
		{"start past end", 9, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range selectTargets(all, tt.start, tt.limit) {
				got = append(got, s.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
