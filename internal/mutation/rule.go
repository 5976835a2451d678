package mutation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"permutex/internal/stretch"
)

// RuleKind tags a MutationRule variant.
type RuleKind string

const (
	KindCase    RuleKind = "case"
	KindLeet    RuleKind = "leet"
	KindReverse RuleKind = "reverse"
	KindYears   RuleKind = "years"
	KindStretch RuleKind = "stretch"
)

// Phase declares whether a rule runs on single words before category pairs
// are concatenated, or on the concatenated candidate.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// Rule is one mutation variant. Apply returns the rule's variants of s in a
// fixed order; it may return s itself or duplicates, the engine filters both.
// Apply must be safe for concurrent use.
type Rule interface {
	Kind() RuleKind
	Phase() Phase
	Apply(s string) []string
	String() string
}

// =============================================================================
// CASE TOGGLE
// =============================================================================

// DefaultMaxCaseVariants caps exhaustive casing per string.
const DefaultMaxCaseVariants = 50

// exhaustiveLetterLimit is the longest letter count enumerated exhaustively;
// longer strings fall back to the four simple forms.
const exhaustiveLetterLimit = 8

// CaseToggle produces lower, upper, title and swapped case. In exhaustive mode
// it enumerates every upper/lower combination of the letters (bit j of the
// counter uppercases letter j), capped at MaxVariants.
type CaseToggle struct {
	At          Phase
	Exhaustive  bool
	MaxVariants int
}

func (r CaseToggle) Kind() RuleKind { return KindCase }
func (r CaseToggle) Phase() Phase   { return r.At }

func (r CaseToggle) String() string {
	return fmt.Sprintf("case(%s,exhaustive=%t,max=%d)", r.At, r.Exhaustive, r.maxVariants())
}

func (r CaseToggle) maxVariants() int {
	if r.MaxVariants <= 0 {
		return DefaultMaxCaseVariants
	}
	return r.MaxVariants
}

func (r CaseToggle) Apply(s string) []string {
	runes := []rune(s)
	var letters []int
	for i, c := range runes {
		if unicode.IsLetter(c) {
			letters = append(letters, i)
		}
	}
	if !r.Exhaustive || len(letters) > exhaustiveLetterLimit {
		return []string{
			strings.ToLower(s),
			strings.ToUpper(s),
			cases.Title(language.Und).String(s),
			swapCase(s),
		}
	}

	limit := r.maxVariants()
	out := make([]string, 0, min(limit, 1<<len(letters)))
	buf := make([]rune, len(runes))
	for mask := 0; mask < 1<<len(letters) && len(out) < limit; mask++ {
		copy(buf, runes)
		for j, pos := range letters {
			if mask>>j&1 == 1 {
				buf[pos] = unicode.ToUpper(buf[pos])
			} else {
				buf[pos] = unicode.ToLower(buf[pos])
			}
		}
		out = append(out, string(buf))
	}
	return out
}

func swapCase(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsUpper(r):
			return unicode.ToLower(r)
		case unicode.IsLower(r):
			return unicode.ToUpper(r)
		default:
			return r
		}
	}, s)
}

// =============================================================================
// LEET SUBSTITUTE
// =============================================================================

// LeetPair maps one source character (matched case-insensitively) to its
// replacements in declared order.
type LeetPair struct {
	From rune
	To   []rune
}

// DefaultLeetTable is the classic substitution table.
var DefaultLeetTable = []LeetPair{
	{From: 'a', To: []rune{'@'}},
	{From: 'o', To: []rune{'0'}},
	{From: 'i', To: []rune{'1'}},
	{From: 's', To: []rune{'$'}},
	{From: 'e', To: []rune{'3'}},
	{From: 't', To: []rune{'7'}},
}

// LeetSubstitute first emits the full substitution (every mapped character
// replaced by its first replacement), then one variant per pair and
// replacement with only that character replaced.
type LeetSubstitute struct {
	At    Phase
	Table []LeetPair
}

func (r LeetSubstitute) Kind() RuleKind { return KindLeet }
func (r LeetSubstitute) Phase() Phase   { return r.At }

func (r LeetSubstitute) table() []LeetPair {
	if len(r.Table) == 0 {
		return DefaultLeetTable
	}
	return r.Table
}

func (r LeetSubstitute) String() string {
	var b strings.Builder
	for i, p := range r.table() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteRune(p.From)
		b.WriteByte('=')
		b.WriteString(string(p.To))
	}
	return fmt.Sprintf("leet(%s,%s)", r.At, b.String())
}

func (r LeetSubstitute) Apply(s string) []string {
	table := r.table()
	full := strings.Map(func(c rune) rune {
		for _, p := range table {
			if len(p.To) > 0 && unicode.ToLower(c) == unicode.ToLower(p.From) {
				return p.To[0]
			}
		}
		return c
	}, s)

	out := []string{full}
	for _, p := range table {
		if !strings.ContainsFunc(s, func(c rune) bool { return unicode.ToLower(c) == unicode.ToLower(p.From) }) {
			continue
		}
		for _, to := range p.To {
			out = append(out, strings.Map(func(c rune) rune {
				if unicode.ToLower(c) == unicode.ToLower(p.From) {
					return to
				}
				return c
			}, s))
		}
	}
	return out
}

// =============================================================================
// REVERSAL
// =============================================================================

// Reversal reverses the string rune by rune.
type Reversal struct {
	At Phase
}

func (r Reversal) Kind() RuleKind { return KindReverse }
func (r Reversal) Phase() Phase   { return r.At }
func (r Reversal) String() string { return fmt.Sprintf("reverse(%s)", r.At) }

func (r Reversal) Apply(s string) []string {
	runes := []rune(s)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return []string{string(runes)}
}

// =============================================================================
// YEAR APPEND
// =============================================================================

// YearAppend appends every year in [From, To], and with Short also its last
// two digits, ascending.
type YearAppend struct {
	At       Phase
	From, To int
	Short    bool
}

func (r YearAppend) Kind() RuleKind { return KindYears }
func (r YearAppend) Phase() Phase   { return r.At }

func (r YearAppend) String() string {
	return fmt.Sprintf("years(%s,%d-%d,short=%t)", r.At, r.From, r.To, r.Short)
}

func (r YearAppend) Apply(s string) []string {
	if r.To < r.From {
		return nil
	}
	out := make([]string, 0, (r.To-r.From+1)*2)
	for y := r.From; y <= r.To; y++ {
		full := strconv.Itoa(y)
		out = append(out, s+full)
		if r.Short && len(full) >= 2 {
			out = append(out, s+full[len(full)-2:])
		}
	}
	return out
}

// =============================================================================
// STRETCH PATTERN
// =============================================================================

// StretchPattern delegates to the stretch engine for strings shorter than
// MinLength.
type StretchPattern struct {
	At        Phase
	MinLength int
}

func (r StretchPattern) Kind() RuleKind { return KindStretch }
func (r StretchPattern) Phase() Phase   { return r.At }
func (r StretchPattern) String() string { return fmt.Sprintf("stretch(%s,min=%d)", r.At, r.MinLength) }

func (r StretchPattern) Apply(s string) []string {
	return stretch.Collect(s, r.MinLength)
}
