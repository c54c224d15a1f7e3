package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gramops/pkg/logger"
	"gramops/pkg/models"
)

// Sink stores scraped members for one operation, keyed by member ID so that a
// resumed operation re-fetching a partial batch never duplicates results.
type Sink struct {
	path    string
	mu      sync.Mutex
	seen    map[int64]bool
	members []models.Member
	logger  logger.Logger
}

// resultFile is the on-disk layout.
type resultFile struct {
	OperationID string          `json:"operation_id"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Members     []models.Member `json:"members"`
}

// NewSink opens the result sink for an operation, loading any members already
// written by a previous run.
func NewSink(dir, operationID string, log logger.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	s := &Sink{
		path:   filepath.Join(dir, fmt.Sprintf("%s.members.json", operationID)),
		seen:   make(map[int64]bool),
		logger: log,
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	var existing resultFile
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("failed to parse results file: %w", err)
	}
	for _, m := range existing.Members {
		s.seen[m.ID] = true
	}
	s.members = existing.Members

	log.InfoWithFields("Loaded existing results", map[string]interface{}{
		"operation_id": operationID,
		"members":      len(s.members),
	})

	return s, nil
}

// Add records a member. Returns false when the member was already stored.
func (s *Sink) Add(m models.Member) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[m.ID] {
		return false
	}
	s.seen[m.ID] = true
	s.members = append(s.members, m)
	return true
}

// Contains reports whether a member ID was already stored.
func (s *Sink) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[id]
}

// Count returns the number of stored members.
func (s *Sink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Members returns a snapshot of the stored members.
func (s *Sink) Members() []models.Member {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Member, len(s.members))
	copy(out, s.members)
	return out
}

// Save writes the sink to disk atomically: the file is written to a temp
// path, synced, then renamed over the previous version.
func (s *Sink) Save(operationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := resultFile{
		OperationID: operationID,
		UpdatedAt:   time.Now(),
		Members:     s.members,
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary results file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&out); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode results: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync results file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close results file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace results file: %w", err)
	}

	return nil
}

// Path returns the sink's on-disk location.
func (s *Sink) Path() string {
	return s.path
}

// LoadMembers reads a member list from disk. The file is either a results
// file written by Save or a plain JSON array of members.
func LoadMembers(path string) ([]models.Member, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file resultFile
	if err := json.Unmarshal(data, &file); err == nil && file.Members != nil {
		return file.Members, nil
	}

	var members []models.Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, fmt.Errorf("failed to parse members file: %w", err)
	}
	return members, nil
}
