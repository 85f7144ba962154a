package security

import "testing"

func TestNewJoinTokenIsRandomAndURLSafe(t *testing.T) {
	first, err := NewJoinToken()
	if err != nil {
		t.Fatalf("NewJoinToken: %v", err)
	}
	second, err := NewJoinToken()
	if err != nil {
		t.Fatalf("NewJoinToken: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct tokens")
	}
	if len(first) != 43 {
		t.Fatalf("expected 43 chars for 32 raw bytes, got %d", len(first))
	}
	for _, r := range first {
		if r == '+' || r == '/' || r == '=' {
			t.Fatalf("token %q is not url safe", first)
		}
	}
}

func TestDigestJoinTokenIsStable(t *testing.T) {
	a := DigestJoinToken("abc")
	b := DigestJoinToken(" abc ")
	if a != b {
		t.Fatalf("expected whitespace-insensitive digest, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == DigestJoinToken("abd") {
		t.Fatal("different tokens must not collide")
	}
}
