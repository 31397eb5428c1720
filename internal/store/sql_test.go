package store

import (
	"encoding/hex"
	"testing"
)

func TestDedupKeyFromID(t *testing.T) {
	body := []byte(`{"id":"evt_123","type":"x"}`)
	got := dedupKey(body)
	if got != "evt_123" {
		t.Fatalf("want evt_123, got %s", got)
	}
}

func TestDedupKeyFromHash(t *testing.T) {
	body := []byte(`{"notId":"x"}`)
	got := dedupKey(body)
	// hex-encoded first 8 bytes -> 16 hex chars
	b, err := hex.DecodeString(got)
	if err != nil {
		t.Fatalf("invalid hex: %v", err)
	}
	if len(b) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(b))
	}
	if dedupKey(body) != got {
		t.Fatalf("hash key not stable")
	}
}

func TestRebind(t *testing.T) {
	got := rebind(`SELECT a FROM t WHERE x=? AND (y < ? OR z = ?)`)
	want := `SELECT a FROM t WHERE x=$1 AND (y < $2 OR z = $3)`
	if got != want {
		t.Fatalf("want %q, got %q", want, got)
	}
	if rebind("SELECT 1") != "SELECT 1" {
		t.Fatalf("query without placeholders changed")
	}
}
