package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"michelin-scraper/models"
)

// ReadSummaries loads the listing records written by Write. The JSON file is
// preferred; when it does not exist the CSV file is read instead. If neither
// exists the returned error wraps fs.ErrNotExist.
func ReadSummaries(basePath string) ([]models.SummaryRecord, error) {
	var records []models.SummaryRecord
	err := readJSON(JSONPath(basePath), &records)
	if err == nil {
		return records, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return readSummaryCSV(CSVPath(basePath))
}

// ReadDetails loads the detail records from <basePath>.json.
func ReadDetails(basePath string) ([]models.DetailRecord, error) {
	var records []models.DetailRecord
	if err := readJSON(JSONPath(basePath), &records); err != nil {
		return nil, err
	}
	return records, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("storage: read %q: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %q: %w", path, err)
	}
	return nil
}

// readSummaryCSV maps columns by header name, so column order in the file
// does not matter and unknown columns are ignored. Missing or blank text
// columns read as "N/A".
func readSummaryCSV(path string) ([]models.SummaryRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("storage: decode %q: %w", path, err)
	}
	if len(rows) == 0 {
		return []models.SummaryRecord{}, nil
	}

	col := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["url"]; !ok {
		return nil, fmt.Errorf("storage: decode %q: no url column", path)
	}
	get := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	text := func(row []string, name string) string {
		return models.OrNA(models.TextField(get(row, name)))
	}

	records := make([]models.SummaryRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		stars, _ := strconv.Atoi(get(row, "stars"))
		records = append(records, models.SummaryRecord{
			Name:        text(row, "name"),
			URL:         text(row, "url"),
			Stars:       stars,
			Distinction: models.ParseDistinction(get(row, "distinction")),
			Location:    text(row, "location"),
			Price:       text(row, "price"),
			Cuisine:     text(row, "cuisine"),
		})
	}
	return records, nil
}
