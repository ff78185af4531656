package gcsstore

import (
	"testing"
)

func TestWithPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", ""},
		{"prefix", "prefix/"},
		{"prefix/", "prefix/"},
		{"a/b/c", "a/b/c/"},
		{"a/b/c/", "a/b/c/"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			s := &Store{}
			WithPrefix(tt.input)(s)
			if s.prefix != tt.want {
				t.Errorf("prefix = %q, want %q", s.prefix, tt.want)
			}
		})
	}
}

func TestStore_KeyMapping(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		object string
	}{
		{"", "entry/104233", "entry/104233"},
		{"coach/alice/", "entry/104233", "coach/alice/entry/104233"},
		{"coach/alice/", "meta/manifest", "coach/alice/meta/manifest"},
	}

	for _, tt := range tests {
		s := &Store{prefix: tt.prefix}
		if got := s.objectKey(tt.key); got != tt.object {
			t.Errorf("objectKey(%q) = %q, want %q", tt.key, got, tt.object)
		}
		if got := s.storeKey(tt.object); got != tt.key {
			t.Errorf("storeKey(%q) = %q, want %q", tt.object, got, tt.key)
		}
	}
}
