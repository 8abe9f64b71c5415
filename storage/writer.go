package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// JSONPath returns the JSON half of the record file pair at basePath.
func JSONPath(basePath string) string {
	return basePath + ".json"
}

// CSVPath returns the CSV half of the record file pair at basePath.
func CSVPath(basePath string) string {
	return basePath + ".csv"
}

// Write persists records as <basePath>.json and <basePath>.csv, replacing any
// previous pair. Each file is written to a temporary file first and renamed
// into place, so a reader never sees a partial file. The same records always
// produce the same bytes.
func Write[T Tabular](basePath string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(basePath), 0o755); err != nil {
		return fmt.Errorf("storage: create output dir: %w", err)
	}

	data, err := encodeJSON(records)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", JSONPath(basePath), err)
	}
	if err := writeAtomic(JSONPath(basePath), data); err != nil {
		return err
	}

	data, err = encodeCSV(records)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", CSVPath(basePath), err)
	}
	return writeAtomic(CSVPath(basePath), data)
}

func encodeJSON[T any](records []T) ([]byte, error) {
	if records == nil {
		records = []T{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCSV[T Tabular](records []T) ([]byte, error) {
	var zero T
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(zero.Header()); err != nil {
		return nil, err
	}
	for _, rec := range records {
		if err := w.Write(rec.Row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create dir %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp for %q: %w", path, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("storage: write %q: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("storage: sync %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("storage: close %q: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("storage: chmod %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("storage: replace %q: %w", path, err)
	}
	return nil
}
