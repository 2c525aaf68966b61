// Package run persists pipeline run records on disk so past reports can be
// listed and replayed.
package run

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/pipeline"
	"github.com/KaramelBytes/dataloom-cli/internal/utils"
)

const recordFileName = "run.json"

// Record is one persisted pipeline run.
type Record struct {
	ID         string                 `json:"id"`
	Dataset    string                 `json:"dataset"`
	CreatedAt  time.Time              `json:"created_at"`
	DurationMS int64                  `json:"duration_ms"`
	Stages     []pipeline.StageStatus `json:"stages"`
	Warnings   []string               `json:"warnings,omitempty"`
	Report     json.RawMessage        `json:"report"`
}

// NewRecord builds a Record from a finished pipeline result.
func NewRecord(dataset string, res *pipeline.Result) (*Record, error) {
	report, err := json.Marshal(res.Report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return &Record{
		ID:         res.RunID,
		Dataset:    dataset,
		CreatedAt:  time.Now().UTC(),
		DurationMS: res.Duration.Milliseconds(),
		Stages:     res.Stages,
		Warnings:   res.Warnings,
		Report:     report,
	}, nil
}

// Store persists run records under root/<id>/run.json.
type Store struct {
	root string
}

func NewStore(root string) *Store { return &Store{root: root} }

// DefaultDir returns the per-user run record root.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".dataloom", "runs"), nil
}

// Save writes the record using an atomic write.
func (s *Store) Save(r *Record) error {
	if r.ID == "" {
		return errors.New("record id not set")
	}
	dir := filepath.Join(s.root, r.ID)
	if err := utils.EnsureDir(dir); err != nil {
		return fmt.Errorf("ensure dir: %w", err)
	}
	data, err := utils.PrettyJSON(r)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(filepath.Join(dir, recordFileName), data)
}

// Load reads one record by id.
func (s *Store) Load(id string) (*Record, error) {
	path := filepath.Join(s.root, id, recordFileName)
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("run %s not found: %w", id, err)
		}
		return nil, fmt.Errorf("read run: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("parse run: %w", err)
	}
	return &r, nil
}

// List returns every readable record, newest first. Directories without a
// run.json are skipped.
func (s *Store) List() ([]*Record, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read runs dir: %w", err)
	}
	var out []*Record
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r, err := s.Load(e.Name())
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
