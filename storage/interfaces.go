package storage

import (
	"context"

	"michelin-scraper/models"
)

// Tabular is a record that can be flattened into a CSV row.
type Tabular interface {
	Header() []string
	Row() []string
}

// RecordSink is an optional secondary store for scraped restaurants. The
// record files remain the primary output.
type RecordSink interface {
	WriteSummaries(ctx context.Context, records []models.SummaryRecord) error
	WriteDetails(ctx context.Context, records []models.DetailRecord) error
	Close() error
}
