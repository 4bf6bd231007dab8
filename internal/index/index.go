// Package index implements the Index File Store (C2): the sidecar
// "<target>.zoe.idx" file that lets a download resume byte-exact across
// process restarts. Save is atomic: write to a sibling temp file, fsync,
// rename over the old index.
package index

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zoedl/zoedl/internal/model"
)

// Rejection is returned by Load when the on-disk index can't be trusted
// for resume; it carries the specific reason the caller should surface.
type Rejection struct {
	Result model.Result
	Reason string
}

func (r *Rejection) Error() string { return fmt.Sprintf("index: %s: %s", r.Result, r.Reason) }

// Store owns the index file for one download target. It serializes all
// writes with its own mutex.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store for the index file belonging to targetPath.
func New(targetPath string) *Store {
	return &Store{path: targetPath + ".zoe.idx"}
}

// Path returns the index file's location.
func (s *Store) Path() string { return s.path }

// Save atomically persists rec, stamping SavedAt and SchemaVersion.
func (s *Store) Save(rec *model.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.SchemaVersion = model.IndexSchemaVersion
	rec.SavedAt = time.Now()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("index: marshal: %w", err)
	}

	tmp := s.path + ".new"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("index: create sibling temp: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("index: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("index: fsync: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("index: close: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("index: rename: %w", err)
	}
	return nil
}

// Delete removes the index file. Missing files are not an error.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadOptions carries the inputs Load needs to validate a saved record
// against the current download request.
type LoadOptions struct {
	OriginURL            string
	RedirectCheckEnabled bool
	TmpExpiry            time.Duration // < 0 means never expires
	TmpFilePath          string
}

// Load reads and validates the index file. A missing file returns
// (nil, nil): that's a cold start, not an error. Any structural or
// consistency problem returns a *Rejection.
func (s *Store) Load(opts LoadOptions) (*model.IndexRecord, error) {
	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("index: read: %w", err)
	}

	var rec model.IndexRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &Rejection{Result: model.ResultInvalidIndexFormat, Reason: err.Error()}
	}
	if err := structurallyValid(&rec); err != nil {
		return nil, &Rejection{Result: model.ResultInvalidIndexFormat, Reason: err.Error()}
	}

	if opts.RedirectCheckEnabled && rec.OriginURL != "" && rec.OriginURL != opts.OriginURL {
		return nil, &Rejection{Result: model.ResultURLDifferent, Reason: "origin url changed since last run"}
	}

	if opts.TmpExpiry >= 0 && time.Since(rec.SavedAt) >= opts.TmpExpiry {
		return nil, &Rejection{Result: model.ResultTmpFileExpired, Reason: "temp file exceeded tmp_expiry_seconds"}
	}

	if opts.TmpFilePath != "" {
		if fi, statErr := os.Stat(opts.TmpFilePath); statErr == nil {
			var sum int64
			for _, sl := range rec.Slices {
				sum += sl.Completed
			}
			if rec.ContentLength >= 0 && fi.Size() != sum && fi.Size() != rec.ContentLength {
				return nil, &Rejection{Result: model.ResultTmpFileSizeError, Reason: "temp file size inconsistent with recorded slice progress"}
			}
		}
	}

	return &rec, nil
}

func structurallyValid(rec *model.IndexRecord) error {
	if rec.SchemaVersion != model.IndexSchemaVersion {
		return fmt.Errorf("unsupported schema version %d", rec.SchemaVersion)
	}
	if rec.OriginURL == "" {
		return errors.New("missing originUrl")
	}
	for i, sl := range rec.Slices {
		if sl.EndExclusive >= 0 && sl.Begin > sl.EndExclusive {
			return fmt.Errorf("slice %d: begin > end", i)
		}
		if sl.Completed < 0 || (sl.EndExclusive >= 0 && sl.Begin+sl.Completed > sl.EndExclusive) {
			return fmt.Errorf("slice %d: completed out of range", i)
		}
	}
	return nil
}

// DirOf returns the directory an index/temp file pair should live in:
// the target's own directory.
func DirOf(targetPath string) string { return filepath.Dir(targetPath) }
