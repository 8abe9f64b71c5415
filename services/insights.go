package services

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"michelin-scraper/models"
	"michelin-scraper/utils"
)

const topLocations = 10

// InsightService summarises scraped records for the console.
type InsightService struct {
	logger *utils.Logger
	out    io.Writer
}

// NewInsightService prints to out, or to stdout when out is nil.
func NewInsightService(logger *utils.Logger, out io.Writer) *InsightService {
	if out == nil {
		out = os.Stdout
	}
	return &InsightService{logger: logger, out: out}
}

// Listing aggregates the listing-stage records.
func (s *InsightService) Listing(records []models.SummaryRecord) *models.ListingReport {
	report := &models.ListingReport{ByStars: make(map[int]int)}
	if len(records) == 0 {
		return report
	}

	report.TotalRestaurants = len(records)
	byLocation := make(map[string]int)
	for _, r := range records {
		if r.Stars > 0 {
			report.Starred++
			report.ByStars[r.Stars]++
		}
		if r.Distinction == models.DistinctionBibGourmand {
			report.BibGourmand++
		}
		if r.Location != "" && r.Location != models.NotAvailable {
			byLocation[r.Location]++
		}
	}

	for loc, n := range byLocation {
		report.TopLocations = append(report.TopLocations, models.LocationCount{Location: loc, Count: n})
	}
	sort.Slice(report.TopLocations, func(i, j int) bool {
		a, b := report.TopLocations[i], report.TopLocations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Location < b.Location
	})
	if len(report.TopLocations) > topLocations {
		report.TopLocations = report.TopLocations[:topLocations]
	}
	return report
}

// Detail counts how many detail records carry each contact field.
func (s *InsightService) Detail(records []models.DetailRecord) *models.DetailReport {
	report := &models.DetailReport{Total: len(records)}
	for _, r := range records {
		if r.Phone != models.NotAvailable {
			report.WithPhone++
		}
		if r.Address != models.NotAvailable {
			report.WithAddress++
		}
		if r.Description != models.NotAvailable {
			report.WithDescription++
		}
		if r.Website != models.NotAvailable {
			report.WithWebsite++
		}
	}
	return report
}

func (s *InsightService) PrintListing(r *models.ListingReport) {
	if r.TotalRestaurants == 0 {
		s.logger.Warn("[insights] Listing is empty, nothing to summarise")
	}
	s.banner("MICHELIN GUIDE LISTING SUMMARY")

	t := s.newTable()
	t.AppendHeader(table.Row{"Metric", "Count"})
	t.AppendRow(table.Row{"Total restaurants", r.TotalRestaurants})
	t.AppendRow(table.Row{"Starred", r.Starred})
	for stars := 3; stars >= 1; stars-- {
		t.AppendRow(table.Row{fmt.Sprintf("  %d star", stars), r.ByStars[stars]})
	}
	t.AppendRow(table.Row{"Bib Gourmand", r.BibGourmand})
	t.Render()

	if len(r.TopLocations) == 0 {
		fmt.Fprintln(s.out, "  No location data")
		return
	}
	locs := s.newTable()
	locs.SetTitle("Top %d locations", topLocations)
	locs.AppendHeader(table.Row{"#", "Location", "Restaurants"})
	for i, lc := range r.TopLocations {
		locs.AppendRow(table.Row{i + 1, lc.Location, lc.Count})
	}
	locs.Render()
}

func (s *InsightService) PrintDetail(r *models.DetailReport) {
	if r.Total == 0 {
		s.logger.Warn("[insights] No detail records, nothing to summarise")
	}
	s.banner("MICHELIN GUIDE DETAIL SUMMARY")

	t := s.newTable()
	t.AppendHeader(table.Row{"Field", "Records", "Coverage"})
	t.AppendRow(table.Row{"Total scraped", r.Total, ""})
	for _, row := range []struct {
		name string
		n    int
	}{
		{"Phone", r.WithPhone},
		{"Address", r.WithAddress},
		{"Description", r.WithDescription},
		{"Website", r.WithWebsite},
	} {
		t.AppendRow(table.Row{row.name, row.n, fmt.Sprintf("%.1f%%", percent(row.n, r.Total))})
	}
	t.Render()
}

func (s *InsightService) banner(title string) {
	fmt.Fprintf(s.out, "\n%s\n", text.Colors{text.Bold, text.FgMagenta}.Sprint("  "+title))
}

func (s *InsightService) newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(s.out)
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return t
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(float64(n)*1000/float64(total)+0.5)) / 10
}
