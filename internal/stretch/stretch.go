// Package stretch implements smart stretching: a bounded, heuristic completion
// of a short token up to a minimum length using predictable human repetition
// ("aaaaaa", "passssss", "passpass") and a small fixed suffix dictionary
// ("pass1234", "pass1111"). Every token yields at most MaxCandidates outputs
// regardless of the minimum length.
package stretch

import (
	"iter"
	"strings"
)

// Suffixes is the fixed pad dictionary. Each entry is cycled to exactly the
// number of runes the token is missing.
var Suffixes = []string{
	"123456789",  // ascending digits
	"1",          // repeated one
	"0",          // repeated zero
	"!",          // repeated bang
	"qwertyuiop", // top keyboard row
	"asdfghjkl",  // home row
}

// MaxCandidates bounds the output of Stretch for any token.
var MaxCandidates = 2 + len(Suffixes)

// Stretch returns the lazy-pattern expansions of token that reach minLen
// runes. Tokens already at or above minLen, and empty tokens, yield nothing.
// The order is fixed: trailing-rune repeat, repeating-unit cycle, then one
// candidate per suffix in dictionary order. Duplicates are skipped.
func Stretch(token string, minLen int) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(token)
		need := minLen - len(runes)
		if len(runes) == 0 || need <= 0 {
			return
		}

		seen := make(map[string]struct{}, MaxCandidates)
		emit := func(s string) bool {
			if _, ok := seen[s]; ok {
				return true
			}
			seen[s] = struct{}{}
			return yield(s)
		}

		last := runes[len(runes)-1]
		if !emit(token + strings.Repeat(string(last), need)) {
			return
		}

		unit := runes[:Period(runes)]
		if !emit(token + cycle(rotate(unit, len(runes)), need)) {
			return
		}

		for _, suffix := range Suffixes {
			if !emit(token + cycle([]rune(suffix), need)) {
				return
			}
		}
	}
}

// Collect materializes Stretch into a slice.
func Collect(token string, minLen int) []string {
	var out []string
	for s := range Stretch(token, minLen) {
		out = append(out, s)
	}
	return out
}

// Period returns the length of the smallest unit u such that runes is a
// prefix of u repeated. A token with no repetition has period len(runes).
func Period(runes []rune) int {
	n := len(runes)
	// KMP failure function; period = n - border.
	fail := make([]int, n)
	k := 0
	for i := 1; i < n; i++ {
		for k > 0 && runes[i] != runes[k] {
			k = fail[k-1]
		}
		if runes[i] == runes[k] {
			k++
		}
		fail[i] = k
	}
	if n == 0 {
		return 0
	}
	return n - fail[n-1]
}

// rotate returns unit rotated so that cycling it continues a token of length
// n that was built from unit.
func rotate(unit []rune, n int) []rune {
	off := n % len(unit)
	out := make([]rune, 0, len(unit))
	out = append(out, unit[off:]...)
	return append(out, unit[:off]...)
}

func cycle(pattern []rune, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteRune(pattern[i%len(pattern)])
	}
	return b.String()
}
