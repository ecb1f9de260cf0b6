// Package ident derives normalized lookup keys from telephony addresses so
// that one logical conversation survives inconsistent number formatting
// across sources ("555-1234" and "+15551234" are the same address).
package ident

import (
	"sort"
	"strings"
)

// Separator joins participants of a group address list.
const Separator = ", "

// Digits strips an address down to its digit characters. Alphanumeric
// short codes (e.g. "GOOGLE") have no digits worth matching and are
// lowercased instead.
func Digits(address string) string {
	var b strings.Builder
	for _, r := range address {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return strings.ToLower(strings.TrimSpace(address))
	}
	return b.String()
}

func suffix(digits string, n int) string {
	if len(digits) <= n {
		return digits
	}
	return digits[len(digits)-n:]
}

// Keys returns every normalized representation of an address (or
// comma-separated address list) that may appear as a stored matcher key.
// Lookups OR these against the conversation table. An empty address has
// no keys and therefore never matches anything.
func Keys(addresses string) []string {
	parts := split(addresses)
	if len(parts) == 0 {
		return nil
	}
	if len(parts) > 1 {
		// Group threads match on the whole joined participant set;
		// per-participant matching would merge a group with each of
		// its members' individual conversations.
		return []string{groupKey(parts)}
	}

	raw := parts[0]
	d := Digits(raw)
	seen := make(map[string]struct{}, 6)
	var keys []string
	add := func(k string) {
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}

	add(suffix(d, 5))
	add(suffix(d, 7))
	add(suffix(d, 10))
	add(d)
	add(strings.TrimSpace(raw))
	return keys
}

// Key returns the canonical matcher key stored on a conversation row:
// the last seven digits for ordinary numbers, the full digit string for
// anything shorter, and the joined normalized set for groups. Empty
// input yields an empty key, which is never matched.
func Key(addresses string) string {
	parts := split(addresses)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return suffix(Digits(parts[0]), 7)
	default:
		return groupKey(parts)
	}
}

// Join renders a participant list in its stored, order-stable form.
func Join(parts []string) string {
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	return strings.Join(trimmed, Separator)
}

func split(addresses string) []string {
	var parts []string
	for _, p := range strings.Split(addresses, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func groupKey(parts []string) string {
	norm := make([]string, len(parts))
	for i, p := range parts {
		norm[i] = Digits(p)
	}
	// Membership order varies by source, so the key is order-free.
	sort.Strings(norm)
	return strings.Join(norm, ",")
}
