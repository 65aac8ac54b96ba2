package repository

import (
	"testing"
	"time"
)

func TestInboxCursorRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	encoded := encodeInboxCursor(now, "u1_u2")
	if encoded == "" {
		t.Fatalf("expected non-empty cursor")
	}

	decoded, ok := decodeInboxCursor(encoded)
	if !ok {
		t.Fatalf("expected decodable cursor")
	}
	if decoded.Key != "u1_u2" || decoded.LastActivity != now.UnixNano() {
		t.Fatalf("round trip lost data: %+v", decoded)
	}
}

func TestInboxCursorMalformed(t *testing.T) {
	for _, s := range []string{"", "!!!", "bm90LWpzb24"} {
		if _, ok := decodeInboxCursor(s); ok {
			t.Fatalf("expected %q to be rejected", s)
		}
	}
}

func TestSeqCursorRoundTrip(t *testing.T) {
	if got := DecodeSeqCursor(EncodeSeqCursor(42)); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestSeqCursorMalformedMeansStart(t *testing.T) {
	for _, s := range []string{"", "!!!", "bm90LWpzb24"} {
		if got := DecodeSeqCursor(s); got != 0 {
			t.Fatalf("expected 0 for %q, got %d", s, got)
		}
	}
}
