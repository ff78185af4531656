package diskstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/discochess/coach/internal/store"
	"github.com/discochess/coach/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := New(t.TempDir())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, WithShards(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.Put(context.Background(), "entry/104233", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path := s.path("entry/104233")
	if !strings.HasPrefix(path, dir) {
		t.Fatalf("path %s outside root %s", path, dir)
	}
	if got := filepath.Base(path); got != "entry%2F104233" {
		t.Errorf("file name = %q, want %q", got, "entry%2F104233")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stat stored file: %v", err)
	}
}

func TestStore_IgnoresTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, WithShards(1))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Put(ctx, "entry/1", []byte("x")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	// Leftover of a crashed write.
	leftover := filepath.Join(filepath.Dir(s.path("entry/1")), tempPrefix+"123")
	if err := os.WriteFile(leftover, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}

	keys, err := s.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "entry/1" {
		t.Errorf("Keys() = %v, want [entry/1]", keys)
	}
}

func TestNew_InvalidPath(t *testing.T) {
	if _, err := New("/nonexistent/path"); err == nil {
		t.Error("New() with invalid path should return error")
	}
}

func TestNew_NotDirectory(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "test")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()

	if _, err := New(f.Name()); err == nil {
		t.Error("New() with file path should return error")
	}
}
