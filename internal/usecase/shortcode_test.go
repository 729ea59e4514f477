package usecase

import (
	"strings"
	"testing"
	"time"
)

func TestRandCodeShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := randCode(shortCodeLen)
		if len(code) != shortCodeLen {
			t.Fatalf("code %q has length %d, want %d", code, len(code), shortCodeLen)
		}
		for _, r := range code {
			if !strings.ContainsRune(codeAlphabet, r) {
				t.Fatalf("code %q contains %q, not in alphabet", code, r)
			}
		}
	}
}

func TestCodeAlphabetExcludesAmbiguous(t *testing.T) {
	for _, r := range "0O1I" {
		if strings.ContainsRune(codeAlphabet, r) {
			t.Errorf("alphabet must not contain %q", r)
		}
	}
	if len(codeAlphabet) != 32 {
		t.Errorf("alphabet size = %d, want 32", len(codeAlphabet))
	}
}

func TestFallbackCode(t *testing.T) {
	code := fallbackCode(time.Now())
	if !strings.HasPrefix(code, "X") {
		t.Errorf("fallback %q should start with X", code)
	}
	if len(code) <= shortCodeLen {
		t.Errorf("fallback %q should be longer than a regular code", code)
	}
	if code != strings.ToUpper(code) {
		t.Errorf("fallback %q should be uppercase", code)
	}
}

func TestNewOrderID(t *testing.T) {
	id := newOrderID(time.Now())
	if !strings.HasPrefix(id, "o_") {
		t.Errorf("id %q should start with o_", id)
	}
	if strings.Count(id, "_") != 2 {
		t.Errorf("id %q should have two separators", id)
	}
}
