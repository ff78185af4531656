// Package storetest provides a behavioral test suite shared by store
// implementations.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/discochess/coach/internal/store"
)

// Run exercises the store.Store contract against stores built by newStore.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(context.Background(), "entry/missing"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("PutGetReplace", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Put(ctx, "entry/1", []byte("first")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := s.Put(ctx, "entry/1", []byte("second")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, err := s.Get(ctx, "entry/1")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != "second" {
			t.Errorf("Get() = %q, want %q", got, "second")
		}
	})

	t.Run("PutCopiesValue", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		value := []byte("value")
		if err := s.Put(ctx, "k", value); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		value[0] = 'X'
		got, err := s.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if string(got) != "value" {
			t.Errorf("Get() = %q, caller mutation leaked into the store", got)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Put(ctx, "game/9", []byte("x")); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := s.Delete(ctx, "game/9"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := s.Get(ctx, "game/9"); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "game/9"); err != nil {
			t.Errorf("Delete() of missing key error = %v", err)
		}
	})

	t.Run("KeysSortedByPrefix", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, k := range []string{"entry/b", "game/a", "entry/a", "entry/c", "meta/manifest"} {
			if err := s.Put(ctx, k, []byte(k)); err != nil {
				t.Fatalf("Put(%s) error = %v", k, err)
			}
		}
		keys, err := s.Keys(ctx, "entry/")
		if err != nil {
			t.Fatalf("Keys() error = %v", err)
		}
		want := []string{"entry/a", "entry/b", "entry/c"}
		if fmt.Sprint(keys) != fmt.Sprint(want) {
			t.Errorf("Keys() = %v, want %v", keys, want)
		}

		all, err := s.Keys(ctx, "")
		if err != nil {
			t.Fatalf("Keys() error = %v", err)
		}
		if len(all) != 5 {
			t.Errorf("Keys(\"\") returned %d keys, want 5", len(all))
		}
	})

	t.Run("InvalidKey", func(t *testing.T) {
		s := newStore(t)
		for _, k := range []string{"", "../escape", "a//b"} {
			if err := s.Put(context.Background(), k, []byte("x")); !errors.Is(err, store.ErrInvalidKey) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidKey", k, err)
			}
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		s := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := s.Get(ctx, "k"); !errors.Is(err, context.Canceled) {
			t.Errorf("Get() error = %v, want context.Canceled", err)
		}
	})

	t.Run("ConcurrentPutGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("entry/%d", i)
				want := bytes.Repeat([]byte{byte('a' + i)}, 4096)
				for j := 0; j < 20; j++ {
					if err := s.Put(ctx, key, want); err != nil {
						t.Errorf("Put() error = %v", err)
						return
					}
					got, err := s.Get(ctx, key)
					if err != nil {
						t.Errorf("Get() error = %v", err)
						return
					}
					if !bytes.Equal(got, want) {
						t.Errorf("Get(%s) returned another key's value", key)
						return
					}
				}
			}(i)
		}
		wg.Wait()
	})
}
