package security

import (
	"strings"
	"testing"
)

func TestGenerateNumericCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode returned error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if strings.Trim(code, "0123456789") != "" {
			t.Fatalf("expected only digits, got %q", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 150 {
		t.Fatalf("codes look insufficiently random: %d unique of 200", len(seen))
	}
}

func TestGenerateNumericCodeRejectsInvalidLength(t *testing.T) {
	for _, length := range []int{0, -1, 19} {
		if _, err := GenerateNumericCode(length); err == nil {
			t.Fatalf("expected error for length %d", length)
		}
	}
}

func TestHashToken(t *testing.T) {
	first := HashToken("123456")
	if first != HashToken("123456") {
		t.Fatal("expected deterministic hash")
	}
	if first == HashToken("123457") {
		t.Fatal("expected different inputs to hash differently")
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %q", first)
	}
}
