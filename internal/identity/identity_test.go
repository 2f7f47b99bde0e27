package identity

import (
	"strings"
	"testing"
)

func TestNewIsUniqueV4(t *testing.T) {
	seen := make(map[string]bool, 1000)
	for i := 0; i < 1000; i++ {
		id := New()
		if _, ok := Parse(id); !ok {
			t.Fatalf("New() produced unparseable id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestParse(t *testing.T) {
	valid := New()
	tests := []struct {
		name string
		raw  string
		ok   bool
	}{
		{"valid", valid, true},
		{"upper case", strings.ToUpper(valid), true},
		{"empty", "", false},
		{"garbage", "not-a-session", false},
		{"v1 uuid", "6ba7b810-9dad-11d1-80b4-00c04fd430c8", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			if ok != tt.ok {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != valid {
				t.Fatalf("Parse(%q) = %q, want canonical %q", tt.raw, got, valid)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	id := New()
	if got := Resolve(id); got != id {
		t.Fatalf("Resolve kept = %q, want %q", got, id)
	}
	if got := Resolve("bogus"); got == "bogus" || got == "" {
		t.Fatalf("Resolve(bogus) = %q, want fresh identity", got)
	}
}
