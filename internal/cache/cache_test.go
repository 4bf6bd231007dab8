package cache

import (
	"os"
	"testing"
)

func TestShareClampedToBounds(t *testing.T) {
	tests := []struct {
		name                          string
		remaining, activeRemaining, total int64
		want                          int64
	}{
		{"below floor clamps to minShare", 100, 100, 1000, minShare},
		{"above ceiling clamps to maxShare", 100 << 20, 100 << 20, 1 << 30, maxShare},
		{"proportional share within bounds", 1 << 20, 4 << 20, 4 << 20, 1 << 20},
		{"zero total falls back to minShare", 1 << 20, 1 << 20, 0, minShare},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Share(tt.remaining, tt.activeRemaining, tt.total)
			if got != tt.want {
				t.Errorf("Share(%d,%d,%d) = %d, want %d", tt.remaining, tt.activeRemaining, tt.total, got, tt.want)
			}
		})
	}
}

func TestSliceWriterFlushesAtBudget(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "slice")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w := NewSliceWriter(f, 0, 0, minShare)
	payload := make([]byte, minShare+10)
	for i := range payload {
		payload[i] = byte(i)
	}

	n, err := w.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	got := make([]byte, len(payload))
	if _, err := f.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i := range payload {
		if got[i] != payload[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], payload[i])
		}
	}
}

func TestTwoSliceWritersDontOverlap(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "slice")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	w1 := NewSliceWriter(f, 0, 0, minShare)
	w2 := NewSliceWriter(f, 1, 100, minShare)

	if _, err := w1.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if _, err := w2.Write([]byte("xyz")); err != nil {
		t.Fatal(err)
	}
	if err := w1.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := w2.Flush(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 3)
	f.ReadAt(buf, 0)
	if string(buf) != "abc" {
		t.Errorf("offset 0: got %q, want %q", buf, "abc")
	}
	f.ReadAt(buf, 100)
	if string(buf) != "xyz" {
		t.Errorf("offset 100: got %q, want %q", buf, "xyz")
	}
}

func TestEnsureSizeGrowsOnly(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "grow")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := EnsureSize(f, 1000); err != nil {
		t.Fatalf("EnsureSize: %v", err)
	}
	fi, _ := f.Stat()
	if fi.Size() != 1000 {
		t.Fatalf("expected size 1000, got %d", fi.Size())
	}

	if err := EnsureSize(f, 500); err != nil {
		t.Fatalf("EnsureSize (shrink request): %v", err)
	}
	fi, _ = f.Stat()
	if fi.Size() != 1000 {
		t.Errorf("EnsureSize should never shrink, got %d", fi.Size())
	}
}
