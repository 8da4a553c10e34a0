package token

import (
	"encoding/base64"
	"testing"
)

func TestMintLengthAndAlphabet(t *testing.T) {
	tok, err := NewIssuer().Mint()
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(tok) != Length {
		t.Fatalf("expected length %d, got %d", Length, len(tok))
	}
	if len(tok) < 16 {
		t.Fatalf("token too short: %q", tok)
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	if len(raw) != Size {
		t.Fatalf("expected %d random bytes, got %d", Size, len(raw))
	}
}

func TestMintUnique(t *testing.T) {
	issuer := NewIssuer()
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		tok, err := issuer.Mint()
		if err != nil {
			t.Fatalf("mint: %v", err)
		}
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token after %d mints", i)
		}
		seen[tok] = struct{}{}
	}
}
