// Package persistence stores the outcome of the last successful run of a job.
// The runtime compares it against the current source to skip runs whose
// input and outputs have not changed.
package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/rowsift/runtime/internal/logger"
)

// DefaultStatePath is the default directory for state files.
const DefaultStatePath = "./rowsift-data/state"

// Common errors
var (
	// ErrInvalidJobID is returned when the job ID is empty.
	ErrInvalidJobID = errors.New("job ID is required")

	// ErrNilState is returned when state is nil.
	ErrNilState = errors.New("state is nil")
)

// State is the persisted record of a job's last successful run.
type State struct {
	// JobID identifies the job.
	JobID string `json:"jobId"`

	// SourcePath is the resolved source file that was read.
	SourcePath string `json:"sourcePath"`

	// SourceDigest is the hex SHA-256 of the source file contents.
	SourceDigest string `json:"sourceDigest"`

	// JobDigest is the hex SHA-256 of the job settings that shape the output.
	JobDigest string `json:"jobDigest"`

	// Outputs lists the sink targets that were written.
	Outputs []string `json:"outputs,omitempty"`

	// RecordsWritten is the number of records written per sink.
	RecordsWritten int `json:"recordsWritten"`

	// LastRunAt is when the run started.
	LastRunAt time.Time `json:"lastRunAt"`
}

// Matches reports whether s describes a run over the same source content,
// with the same job settings, writing the same targets.
func (s *State) Matches(sourcePath, sourceDigest, jobDigest string, outputs []string) bool {
	if s == nil {
		return false
	}
	return s.SourcePath == sourcePath &&
		s.SourceDigest == sourceDigest &&
		s.JobDigest == jobDigest &&
		slices.Equal(s.Outputs, outputs)
}

// OutputsExist reports whether every recorded output file is still present.
func (s *State) OutputsExist() bool {
	if s == nil {
		return false
	}
	for _, p := range s.Outputs {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// StateStore provides thread-safe persistence of job state.
// State files are stored as JSON in the configured base path.
type StateStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewStateStore creates a new StateStore with the specified base path.
// If basePath is empty, DefaultStatePath is used.
func NewStateStore(basePath string) *StateStore {
	if basePath == "" {
		basePath = DefaultStatePath
	}
	return &StateStore{
		basePath: basePath,
	}
}

// filePath returns the full path for a job's state file.
func (s *StateStore) filePath(jobID string) string {
	// Sanitize job ID to prevent directory traversal
	safeName := filepath.Base(jobID)
	return filepath.Join(s.basePath, safeName+".json")
}

// Save persists the state for a job.
// Uses atomic write (temp file + rename) to prevent corruption.
// Creates the base directory if it doesn't exist.
func (s *StateStore) Save(jobID string, state *State) error {
	if jobID == "" {
		return ErrInvalidJobID
	}
	if state == nil {
		return ErrNilState
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.basePath, 0o700); err != nil {
		logger.Warn("failed to create state directory",
			"path", s.basePath,
			"error", err.Error(),
		)
		return fmt.Errorf("creating state directory: %w", err)
	}

	state.JobID = jobID

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	filePath := s.filePath(jobID)
	tempPath := filePath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0o600); err != nil {
		logger.Warn("failed to write temp state file",
			"job_id", jobID,
			"path", tempPath,
			"error", err.Error(),
		)
		return fmt.Errorf("writing temp state file: %w", err)
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		_ = os.Remove(tempPath)
		logger.Warn("failed to rename state file",
			"job_id", jobID,
			"temp_path", tempPath,
			"final_path", filePath,
			"error", err.Error(),
		)
		return fmt.Errorf("renaming state file: %w", err)
	}

	logger.Debug("state saved",
		"job_id", jobID,
		"path", filePath,
		"source_digest", state.SourceDigest,
	)
	return nil
}

// Load retrieves the state for a job.
// Returns nil, nil if the state file doesn't exist (first run).
func (s *StateStore) Load(jobID string) (*State, error) {
	if jobID == "" {
		return nil, ErrInvalidJobID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	filePath := s.filePath(jobID)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no state file found (first run)",
				"job_id", jobID,
				"path", filePath,
			)
			return nil, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("failed to unmarshal state",
			"job_id", jobID,
			"path", filePath,
			"error", err.Error(),
		)
		return nil, fmt.Errorf("unmarshaling state: %w", err)
	}
	return &state, nil
}

// Delete removes the state file for a job.
// Returns nil if the file doesn't exist.
func (s *StateStore) Delete(jobID string) error {
	if jobID == "" {
		return ErrInvalidJobID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(jobID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting state file: %w", err)
	}
	return nil
}

// Exists checks if a state file exists for a job.
func (s *StateStore) Exists(jobID string) (bool, error) {
	if jobID == "" {
		return false, ErrInvalidJobID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.filePath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking state file: %w", err)
	}
	return true, nil
}
