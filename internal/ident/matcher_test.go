package ident

import (
	"slices"
	"testing"
)

func TestKeyConvergesAcrossFormats(t *testing.T) {
	variants := []string{
		"5551234567",
		"(555) 123-4567",
		"+15551234567",
		"555-123-4567",
	}
	want := Key(variants[0])
	if want == "" {
		t.Fatal("empty canonical key")
	}
	for _, v := range variants {
		if !slices.Contains(Keys(v), want) {
			t.Errorf("Keys(%q) = %v, missing canonical key %q", v, Keys(v), want)
		}
	}
}

func TestKeysSingleNumber(t *testing.T) {
	keys := Keys("+1 (555) 123-4567")
	for _, want := range []string{"34567", "1234567", "5551234567", "15551234567"} {
		if !slices.Contains(keys, want) {
			t.Errorf("keys %v missing %q", keys, want)
		}
	}
}

func TestKeysEmptyAddress(t *testing.T) {
	if keys := Keys(""); keys != nil {
		t.Errorf("Keys(\"\") = %v, want nil", keys)
	}
	if keys := Keys("  ,  "); keys != nil {
		t.Errorf("Keys of blanks = %v, want nil", keys)
	}
	if Key("") != "" {
		t.Error("Key(\"\") should be empty")
	}
}

func TestGroupKeyOrderFree(t *testing.T) {
	a := Key("555-111-2222, (555) 333-4444")
	b := Key("+15553334444, 5551112222")
	// The country-code digit differs, so only the exact membership in two
	// orders of the same formatting must converge.
	c := Key("555-333-4444, 555-111-2222")
	if a != c {
		t.Errorf("group key order-sensitive: %q vs %q", a, c)
	}
	if a == "" || b == "" {
		t.Error("group keys should not be empty")
	}
}

func TestGroupNotMatchedPerParticipant(t *testing.T) {
	group := Keys("5551112222, 5553334444")
	if len(group) != 1 {
		t.Fatalf("group should derive exactly one key, got %v", group)
	}
	single := Keys("5551112222")
	if slices.Contains(single, group[0]) {
		t.Errorf("group key %q must not collide with single-number keys %v", group[0], single)
	}
}

func TestShortCode(t *testing.T) {
	if Key("40404") != "40404" {
		t.Errorf("short code key = %q, want 40404", Key("40404"))
	}
	if Key("GOOGLE") != "google" {
		t.Errorf("alpha sender key = %q, want google", Key("GOOGLE"))
	}
}
