package validator

import (
	"strings"
	"testing"
)

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"alice", "Alice", "a", "jean-luc.picard", "名前"} {
		if err := ValidateUsername(ok); err != nil {
			t.Fatalf("expected %q to be valid, got %v", ok, err)
		}
	}
	for _, bad := range []string{"", "two words", "tab\there", strings.Repeat("x", 65)} {
		if err := ValidateUsername(bad); err != ErrInvalidUsername {
			t.Fatalf("expected %q to be invalid, got %v", bad, err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("x"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bad := range []string{"", "   ", strings.Repeat("p", 73)} {
		if err := ValidatePassword(bad); err != ErrInvalidPassword {
			t.Fatalf("expected invalid password for %q, got %v", bad, err)
		}
	}
}
