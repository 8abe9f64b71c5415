package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"

	"michelin-scraper/models"
)

// CheckpointStore keeps Stage 2 progress in a single JSON file.
type CheckpointStore struct {
	path string
}

func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Path returns the checkpoint file location.
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load returns the saved checkpoint, or nil when there is none.
func (s *CheckpointStore) Load() (*models.Checkpoint, error) {
	var cp models.Checkpoint
	if err := readJSON(s.path, &cp); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &cp, nil
}

// Save replaces the checkpoint file.
func (s *CheckpointStore) Save(cp *models.Checkpoint) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode checkpoint: %w", err)
	}
	return writeAtomic(s.path, append(data, '\n'))
}
