package tokens

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AtomOptions controls derived-atom expansion.
type AtomOptions struct {
	Substrings   bool // all contiguous substrings of length >= MinSubstring
	MinSubstring int
	Dates        bool // day/month/year parts of date-like values
}

// DefaultMinSubstring is used when AtomOptions.MinSubstring is not positive.
const DefaultMinSubstring = 3

// title allocates a caser per call; cases.Caser is stateful and must not be
// shared between goroutines.
func title(s string) string {
	return cases.Title(language.Und).String(s)
}

// Atoms returns the ordered, de-duplicated atoms for one value: the value
// itself, then date parts (date-like values) or substrings (everything else).
func Atoms(category, value string, opts AtomOptions) []string {
	out := newOrderedSet()
	out.add(value)

	if opts.Dates && IsDateLike(category, value) {
		if mixes := DateMixes(value); len(mixes) > 0 {
			for _, m := range mixes {
				out.add(m)
			}
			return out.items
		}
	}

	if opts.Substrings {
		minLen := opts.MinSubstring
		if minLen <= 0 {
			minLen = DefaultMinSubstring
		}
		for _, s := range Substrings(value, minLen) {
			out.add(s)
			out.add(strings.ToLower(s))
			out.add(title(s))
		}
	}
	return out.items
}

// Substrings returns every contiguous substring with at least minLen runes,
// shortest first, then by position. The full value is included last.
func Substrings(value string, minLen int) []string {
	runes := []rune(value)
	n := len(runes)
	if minLen < 1 {
		minLen = 1
	}
	seen := newOrderedSet()
	for l := minLen; l <= n; l++ {
		for i := 0; i+l <= n; i++ {
			seen.add(string(runes[i : i+l]))
		}
	}
	return seen.items
}

// IsDateLike reports whether a value should be split into date parts: the
// category is a date category, or the value starts with a digit and has at
// least six characters.
func IsDateLike(category, value string) bool {
	c := strings.ToLower(category)
	if c == "dob" || c == "date" || strings.HasSuffix(c, "_date") {
		return true
	}
	r := []rune(value)
	return len(r) >= 6 && unicode.IsDigit(r[0])
}

// DateParts holds the atomic parts of a DDMMYYYY / DDMMYY value.
type DateParts struct {
	D, M, Y, y string
}

// ParseDate splits a date-like value. Separators (-/._ and spaces) are
// ignored. Six-digit values assume a 20xx year. ok is false for anything that
// is not 6 or 8 digits.
func ParseDate(value string) (DateParts, bool) {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r == '-' || r == '/' || r == '.' || r == '_' || unicode.IsSpace(r):
			continue
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return DateParts{}, false
		}
	}
	clean := b.String()
	switch len(clean) {
	case 8:
		return DateParts{D: clean[:2], M: clean[2:4], Y: clean[4:], y: clean[6:]}, true
	case 6:
		return DateParts{D: clean[:2], M: clean[2:4], Y: "20" + clean[4:], y: clean[4:]}, true
	default:
		return DateParts{}, false
	}
}

// DateMixes returns the cleaned date followed by its parts and common mixes in
// a fixed order: D, M, Y, y, DM, MD, Dy, yD, My, DMy.
func DateMixes(value string) []string {
	p, ok := ParseDate(value)
	if !ok {
		return nil
	}
	out := newOrderedSet()
	out.add(p.D + p.M + p.Y)
	for _, m := range []string{
		p.D, p.M, p.Y, p.y,
		p.D + p.M, p.M + p.D,
		p.D + p.y, p.y + p.D,
		p.M + p.y,
		p.D + p.M + p.y,
	} {
		out.add(m)
	}
	return out.items
}

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
