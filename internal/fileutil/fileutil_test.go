package fileutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.xml")

	res, err := WriteAtomic(dst, 0o640, func(w io.Writer) error {
		_, err := io.WriteString(w, "<collection/>")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "<collection/>" {
		t.Fatalf("content mismatch: got %q", got)
	}
	sum := sha256.Sum256(got)
	if res.SHA256 != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest mismatch: %s", res.SHA256)
	}
	if res.Bytes != int64(len(got)) {
		t.Fatalf("expected %d bytes, got %d", len(got), res.Bytes)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o640 {
		t.Fatalf("expected mode 0640, got %v", info.Mode().Perm())
	}
}

func TestWriteAtomicKeepsExistingFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out.xml")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	_, err := WriteAtomic(dst, 0o644, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "old" {
		t.Fatalf("existing file modified: %q", got)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected temp file cleanup, found %d entries", len(entries))
	}
}
