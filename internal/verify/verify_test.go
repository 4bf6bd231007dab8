package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zoedl/zoedl/internal/model"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestComputeKnownDigests(t *testing.T) {
	path := writeTemp(t, "hello world")

	tests := []struct {
		kind model.HashType
		want string
	}{
		{model.HashMD5, "5eb63bbbe01eeed093cb22bb8f5acdc3"},
		{model.HashSHA256, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			got, err := Compute(path, tt.kind)
			if err != nil {
				t.Fatalf("Compute: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestVerifyIsCaseInsensitive(t *testing.T) {
	path := writeTemp(t, "hello world")
	if err := Verify(path, model.HashMD5, "5EB63BBBE01EEED093CB22BB8F5ACDC3"); err != nil {
		t.Fatalf("expected uppercase digest to match: %v", err)
	}
}

func TestVerifyMismatch(t *testing.T) {
	path := writeTemp(t, "hello world")
	err := Verify(path, model.HashMD5, "0000000000000000000000000000000")
	if err == nil {
		t.Fatal("expected a mismatch error")
	}
	var mismatch *MismatchError
	if !asMismatch(err, &mismatch) {
		t.Fatalf("expected *MismatchError, got %T", err)
	}
}

func asMismatch(err error, target **MismatchError) bool {
	m, ok := err.(*MismatchError)
	if ok {
		*target = m
	}
	return ok
}
