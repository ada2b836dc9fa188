package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("Révolution", 3); got != "Rév..." {
		t.Errorf("multibyte truncate: got %q", got)
	}
}

func TestHead(t *testing.T) {
	if got := Head("lumière", 4); got != "lumi" {
		t.Errorf("got %q", got)
	}
	if got := Head("abc", 10); got != "abc" {
		t.Errorf("got %q", got)
	}
}

func TestCauseChain(t *testing.T) {
	root := errors.New("disk full")
	mid := fmt.Errorf("write row: %w", root)
	top := fmt.Errorf("insert match: %w", mid)

	chain := CauseChain(top, 5, 0)
	if len(chain) != 3 {
		t.Fatalf("expected 3 links, got %d: %v", len(chain), chain)
	}
	if chain[2] != "disk full" {
		t.Errorf("last link = %q", chain[2])
	}

	short := CauseChain(top, 2, 6)
	if len(short) != 2 {
		t.Fatalf("depth not honored: %v", short)
	}
	if short[0] != "insert..." {
		t.Errorf("truncation not applied: %q", short[0])
	}
	if FormatChain([]string{"a", "b"}) != "a <- b" {
		t.Error("unexpected chain format")
	}
}

func TestCauseChain_joined(t *testing.T) {
	err := errors.Join(errors.New("first"), errors.New("second"))
	chain := CauseChain(err, 3, 0)
	if len(chain) != 2 || chain[1] != "first" {
		t.Errorf("got %v", chain)
	}
}
