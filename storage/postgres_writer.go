package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"michelin-scraper/models"
	"michelin-scraper/utils"
)

const (
	restaurantsTable = "restaurants"
	upsertBatchSize  = 50
)

var summaryColumns = []string{"name", "url", "stars", "distinction", "location", "price", "cuisine"}

var detailColumns = append(append([]string(nil), summaryColumns...),
	"address", "phone", "description", "opening_hours", "price_range",
	"cuisine_type", "website", "facilities", "nearby_restaurants",
)

// PostgresWriter mirrors scraped restaurants into PostgreSQL, one row per url.
// Listing rows are upserted first; the detail stage later fills in the rest
// of the columns for the same url.
type PostgresWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresWriter opens a connection, waits for the server to accept it and
// creates the schema when missing.
func NewPostgresWriter(ctx context.Context, dsn string, logger *utils.Logger) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	ping := &utils.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, Logger: logger}
	if err := ping.Do(ctx, "postgres ping", func() error { return db.PingContext(ctx) }); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	pw := &PostgresWriter{db: db, logger: logger}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return pw, nil
}

func (pw *PostgresWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS restaurants (
			id                 SERIAL PRIMARY KEY,
			url                TEXT        UNIQUE NOT NULL,
			name               TEXT        NOT NULL,
			stars              SMALLINT    NOT NULL DEFAULT 0,
			distinction        TEXT,
			location           TEXT        NOT NULL DEFAULT 'N/A',
			price              TEXT        NOT NULL DEFAULT 'N/A',
			cuisine            TEXT        NOT NULL DEFAULT 'N/A',
			address            TEXT,
			phone              TEXT,
			description        TEXT,
			opening_hours      JSONB,
			price_range        TEXT,
			cuisine_type       TEXT,
			website            TEXT,
			facilities         TEXT[],
			nearby_restaurants JSONB,
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_restaurants_stars       ON restaurants(stars);
		CREATE INDEX IF NOT EXISTS idx_restaurants_distinction ON restaurants(distinction);
		CREATE INDEX IF NOT EXISTS idx_restaurants_location    ON restaurants(location);
	`)
	return err
}

// WriteSummaries upserts the listing columns of each record.
func (pw *PostgresWriter) WriteSummaries(ctx context.Context, records []models.SummaryRecord) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, summaryArgs(r))
	}
	return pw.upsert(ctx, summaryColumns, rows)
}

// WriteDetails upserts every column of each record.
func (pw *PostgresWriter) WriteDetails(ctx context.Context, records []models.DetailRecord) error {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, detailArgs(r))
	}
	return pw.upsert(ctx, detailColumns, rows)
}

func (pw *PostgresWriter) upsert(ctx context.Context, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := 0; i < len(rows); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(rows))
		query, args := buildUpsert(columns, rows[i:end])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: upsert rows %d-%d: %w", i, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	pw.logger.Info("[postgres] Upserted %d rows into %s", len(rows), restaurantsTable)
	return nil
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// buildUpsert renders a multi-row INSERT that updates every non-key column
// when the url already exists.
func buildUpsert(columns []string, rows [][]any) (string, []any) {
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*len(columns))

	n := 1
	for _, row := range rows {
		ph := make([]string, len(columns))
		for i := range columns {
			ph[i] = fmt.Sprintf("$%d", n)
			n++
		}
		values = append(values, "("+strings.Join(ph, ",")+")")
		args = append(args, row...)
	}

	updates := make([]string, 0, len(columns))
	for _, c := range columns {
		if c == "url" {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	updates = append(updates, "updated_at = NOW()")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (url) DO UPDATE SET %s",
		restaurantsTable,
		strings.Join(columns, ", "),
		strings.Join(values, ","),
		strings.Join(updates, ", "),
	)
	return query, args
}

func summaryArgs(r models.SummaryRecord) []any {
	return []any{
		r.Name,
		r.URL,
		r.Stars,
		sql.NullString{String: string(r.Distinction), Valid: !r.Distinction.IsNone()},
		r.Location,
		r.Price,
		r.Cuisine,
	}
}

// detailArgs follows detailColumns. Empty hours, facilities and nearby lists
// are stored as NULL rather than the "N/A" text used in the files.
func detailArgs(r models.DetailRecord) []any {
	var hours, nearby sql.NullString
	if len(r.OpeningHours) > 0 {
		hours = sql.NullString{String: r.OpeningHours.String(), Valid: true}
	}
	if len(r.NearbyRestaurants) > 0 {
		nearby = sql.NullString{String: r.NearbyRestaurants.String(), Valid: true}
	}

	return append(summaryArgs(r.SummaryRecord),
		r.Address,
		r.Phone,
		r.Description,
		hours,
		r.PriceRange,
		r.CuisineType,
		r.Website,
		pq.Array([]string(r.Facilities)),
		nearby,
	)
}
