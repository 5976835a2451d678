// Package tokens normalizes seed data and derives the atoms the mutation engine
// works on: the raw values themselves, their contiguous substrings, and the
// day/month/year parts of date-like values.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"permutex/internal/types"
)

// Normalize trims values, drops empties and duplicates within a category and
// drops empty categories. Case is preserved. Category order in the result is
// irrelevant; use Categories for a stable order.
func Normalize(in types.TokenSet) types.TokenSet {
	out := make(types.TokenSet, len(in))
	for cat, values := range in {
		cat = strings.TrimSpace(cat)
		if cat == "" {
			continue
		}
		seen := make(map[string]struct{}, len(values))
		kept := out[cat]
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" || !utf8.ValidString(v) {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			kept = append(kept, v)
		}
		if len(kept) > 0 {
			out[cat] = kept
		}
	}
	return out
}

// Categories returns the category labels in sorted order. Every ordered walk
// over a TokenSet goes through this so index spaces are stable across runs.
func Categories(ts types.TokenSet) []string {
	cats := make([]string, 0, len(ts))
	for c := range ts {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	return cats
}

// Count returns the number of values across all categories.
func Count(ts types.TokenSet) int {
	n := 0
	for _, v := range ts {
		n += len(v)
	}
	return n
}

// Hash returns a hex SHA-256 over the canonical (sorted category, ordered
// value) form of the set.
func Hash(ts types.TokenSet) string {
	h := sha256.New()
	for _, cat := range Categories(ts) {
		h.Write([]byte(cat))
		h.Write([]byte{0})
		for _, v := range ts[cat] {
			h.Write([]byte(v))
			h.Write([]byte{0})
		}
		h.Write([]byte{1})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Runes returns the unique runes of every value, in first-appearance order
// over sorted categories. It is the derived alphabet for chaos mode.
func Runes(ts types.TokenSet) []rune {
	seen := make(map[rune]struct{})
	var out []rune
	for _, cat := range Categories(ts) {
		for _, v := range ts[cat] {
			for _, r := range v {
				if _, ok := seen[r]; ok {
					continue
				}
				seen[r] = struct{}{}
				out = append(out, r)
			}
		}
	}
	return out
}
