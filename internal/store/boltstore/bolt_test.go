package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/discochess/coach/internal/store"
	"github.com/discochess/coach/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(filepath.Join(t.TempDir(), "cache.db"), WithNoSync())
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := Open(path, WithBucket("test"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Put(ctx, "entry/1", []byte("persisted")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	s, err = Open(path, WithBucket("test"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	got, err := s.Get(ctx, "entry/1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Get() = %q, want %q", got, "persisted")
	}
}

func TestStore_Compact(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(filepath.Join(dir, "cache.db"), WithNoSync())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	for _, k := range []string{"entry/1", "entry/2"} {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}
	dst := filepath.Join(dir, "compacted.db")
	if err := s.Compact(dst); err != nil {
		t.Fatalf("Compact() error = %v", err)
	}

	c, err := Open(dst)
	if err != nil {
		t.Fatalf("Open(compacted) error = %v", err)
	}
	defer c.Close()
	keys, err := c.Keys(ctx, "entry/")
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("compacted Keys() = %v, want 2 keys", keys)
	}
}

func TestStore_ClosedOperations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Close()
	if _, err := s.Get(context.Background(), "k"); err == nil {
		t.Error("Get() on closed store should fail")
	}
}
