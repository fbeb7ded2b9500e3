package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeBackingFiles(t *testing.T, dir, id string) (src, out string) {
	t.Helper()
	src = filepath.Join(dir, id+".cpp")
	out = filepath.Join(dir, id)
	if err := os.WriteFile(src, []byte("int main() {}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(out, []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	return src, out
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "cpp_files.json"))
	now := time.Now()

	staleSrc, staleOut := writeBackingFiles(t, dir, "stale")
	freshSrc, freshOut := writeBackingFiles(t, dir, "fresh")
	if err := s.Put("stale", Record{SourcePath: staleSrc, OutputPath: staleOut, Expiration: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("fresh", Record{SourcePath: freshSrc, OutputPath: freshOut, Expiration: now.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	removed, errs := s.Sweep(now)
	if len(errs) != 0 {
		t.Fatalf("expected no cleanup errors, got %v", errs)
	}
	if len(removed) != 1 || removed[0] != "stale" {
		t.Fatalf("expected [stale] removed, got %v", removed)
	}
	for _, p := range []string{staleSrc, staleOut} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", p)
		}
	}
	for _, p := range []string{freshSrc, freshOut} {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("expected %s kept: %v", p, err)
		}
	}

	// removal is persisted
	s2 := New(s.path)
	s2.Load()
	if _, ok := s2.Get("stale"); ok {
		t.Fatal("expected stale record gone after reload")
	}
	if _, ok := s2.Get("fresh"); !ok {
		t.Fatal("expected fresh record kept after reload")
	}
}

func TestSweepNothingExpired(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "cpp_files.json"))
	if err := s.Put("a", Record{Expiration: time.Now().Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	removed, errs := s.Sweep(time.Now())
	if len(removed) != 0 || len(errs) != 0 {
		t.Fatalf("expected no-op sweep, got removed=%v errs=%v", removed, errs)
	}
}

func TestSweepMissingBackingFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "cpp_files.json"))
	if err := s.Put("gone", Record{
		SourcePath: filepath.Join(dir, "gone.cpp"),
		OutputPath: filepath.Join(dir, "gone"),
		Expiration: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	// already-missing files are not cleanup failures
	removed, errs := s.Sweep(time.Now())
	if len(errs) != 0 {
		t.Fatalf("expected no cleanup errors for missing files, got %v", errs)
	}
	if len(removed) != 1 {
		t.Fatalf("expected one record removed, got %v", removed)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "cpp_files.json"))
	src, out := writeBackingFiles(t, dir, "a")
	if err := s.Put("a", Record{SourcePath: src, OutputPath: out, Expiration: time.Now()}); err != nil {
		t.Fatal(err)
	}

	if errs := s.Remove("a"); len(errs) != 0 {
		t.Fatalf("expected no cleanup errors, got %v", errs)
	}
	if _, ok := s.Get("a"); ok {
		t.Fatal("expected record removed")
	}
	for _, p := range []string{src, out} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", p)
		}
	}

	if errs := s.Remove("absent"); errs != nil {
		t.Fatalf("expected removing absent id to be a no-op, got %v", errs)
	}
}
