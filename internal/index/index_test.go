package index

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zoedl/zoedl/internal/model"
)

func newRecord(originURL string) *model.IndexRecord {
	return &model.IndexRecord{
		OriginURL:     originURL,
		EffectiveURL:  originURL,
		ContentLength: 1000,
		Slices: []model.SliceRecord{
			{Begin: 0, EndExclusive: 500, Completed: 500},
			{Begin: 500, EndExclusive: 1000, Completed: 100},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	target := filepath.Join(t.TempDir(), "movie.mp4")
	s := New(target)

	rec := newRecord("http://example.com/movie.mp4")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(LoadOptions{OriginURL: "http://example.com/movie.mp4", TmpExpiry: -1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record, got nil (cold start)")
	}
	if got.OriginURL != rec.OriginURL || len(got.Slices) != 2 {
		t.Errorf("round-tripped record mismatch: %+v", got)
	}
	if got.SchemaVersion != model.IndexSchemaVersion {
		t.Errorf("expected schema version %d, got %d", model.IndexSchemaVersion, got.SchemaVersion)
	}
}

func TestLoadMissingFileIsColdStart(t *testing.T) {
	target := filepath.Join(t.TempDir(), "missing.mp4")
	s := New(target)

	rec, err := s.Load(LoadOptions{OriginURL: "http://example.com/missing.mp4", TmpExpiry: -1})
	if err != nil {
		t.Fatalf("expected no error for a missing index, got %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil record for cold start, got %+v", rec)
	}
}

func TestLoadRejectsUnsupportedSchemaVersion(t *testing.T) {
	target := filepath.Join(t.TempDir(), "old.mp4")
	s := New(target)

	rec := newRecord("http://example.com/old.mp4")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Corrupt the schema version directly on disk to simulate an old format.
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	data = []byte(replaceSchemaVersion(string(data)))
	if err := os.WriteFile(s.Path(), data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = s.Load(LoadOptions{OriginURL: "http://example.com/old.mp4", TmpExpiry: -1})
	rej, ok := err.(*Rejection)
	if !ok {
		t.Fatalf("expected *Rejection, got %T (%v)", err, err)
	}
	if rej.Result != model.ResultInvalidIndexFormat {
		t.Errorf("expected ResultInvalidIndexFormat, got %v", rej.Result)
	}
}

func replaceSchemaVersion(data string) string {
	// crude but sufficient: schemaVersion is the only integer field named
	// that way in the marshaled record.
	needle := `"schemaVersion": `
	idx := indexOf(data, needle)
	if idx < 0 {
		return data
	}
	start := idx + len(needle)
	end := start
	for end < len(data) && data[end] != ',' && data[end] != '\n' {
		end++
	}
	return data[:start] + "999" + data[end:]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func TestLoadRejectsURLDifferent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "movie.mp4")
	s := New(target)

	rec := newRecord("http://example.com/v1.mp4")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := s.Load(LoadOptions{OriginURL: "http://example.com/v2.mp4", RedirectCheckEnabled: true, TmpExpiry: -1})
	rej, ok := err.(*Rejection)
	if !ok {
		t.Fatalf("expected *Rejection, got %T", err)
	}
	if rej.Result != model.ResultURLDifferent {
		t.Errorf("expected ResultURLDifferent, got %v", rej.Result)
	}
}

func TestLoadRejectsExpiredTmpFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "movie.mp4")
	s := New(target)

	rec := newRecord("http://example.com/movie.mp4")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	_, err := s.Load(LoadOptions{OriginURL: "http://example.com/movie.mp4", TmpExpiry: 1 * time.Nanosecond})
	rej, ok := err.(*Rejection)
	if !ok {
		t.Fatalf("expected *Rejection, got %T", err)
	}
	if rej.Result != model.ResultTmpFileExpired {
		t.Errorf("expected ResultTmpFileExpired, got %v", rej.Result)
	}
}

func TestLoadRejectsTmpFileSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "movie.mp4.zoe.tmp")
	s := New(filepath.Join(dir, "movie.mp4"))

	rec := newRecord("http://example.com/movie.mp4")
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Record claims 600 bytes completed (500+100) and a 1000-byte total,
	// but the temp file on disk is neither.
	if err := os.WriteFile(target, make([]byte, 42), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := s.Load(LoadOptions{OriginURL: "http://example.com/movie.mp4", TmpExpiry: -1, TmpFilePath: target})
	rej, ok := err.(*Rejection)
	if !ok {
		t.Fatalf("expected *Rejection, got %T", err)
	}
	if rej.Result != model.ResultTmpFileSizeError {
		t.Errorf("expected ResultTmpFileSizeError, got %v", rej.Result)
	}
}

func TestDeleteMissingFileIsNotAnError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope.mp4"))
	if err := s.Delete(); err != nil {
		t.Fatalf("Delete on a missing index should be a no-op, got %v", err)
	}
}
