package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/stackforge/pkg/errors"
)

// Range is a parsed version range.
type Range struct {
	expr       string
	prerelease bool
	cons       *semver.Constraints
}

// IsRange reports whether s is written in range syntax ("[...]").
func IsRange(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) >= 2 && s[0] == '[' && s[len(s)-1] == ']'
}

// ParseRange parses a range. The surrounding brackets are optional.
//
// The expression is a space-separated conjunction of comparisons, with "||"
// separating alternatives. Comma-separated trailing fields are flags; the
// only flag is include_prerelease.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return Range{}, errors.New(errors.ErrCodeInvalidRange, "empty version range")
	}

	fields := strings.Split(s, ",")
	exprs := []string{strings.TrimSpace(fields[0])}
	var r Range
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		switch f {
		case "":
		case "include_prerelease":
			r.prerelease = true
		default:
			// Tolerate "[>=1.0, <2.0]" as a conjunction.
			exprs = append(exprs, f)
		}
	}
	r.expr = strings.Join(exprs, " ")

	cons, err := semver.NewConstraint(r.expr)
	if err != nil {
		return Range{}, errors.Wrap(errors.ErrCodeInvalidRange, err, "invalid version range %q", s)
	}
	cons.IncludePrerelease = r.prerelease
	r.cons = cons
	return r, nil
}

// MustParseRange is like [ParseRange] but panics on error.
func MustParseRange(s string) Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the range in bracket syntax.
func (r Range) String() string {
	if r.prerelease {
		return "[" + r.expr + ", include_prerelease]"
	}
	return "[" + r.expr + "]"
}

// IncludesPrerelease reports whether the range admits pre-release versions.
func (r Range) IncludesPrerelease() bool { return r.prerelease }

// Contains reports whether v satisfies the range. Versions that are not
// semantic versions never satisfy a range.
func (r Range) Contains(v Version) bool {
	if r.cons == nil || v.sv == nil {
		return false
	}
	return r.cons.Check(v.sv)
}

// Best returns the highest candidate that satisfies every range.
func Best(candidates []Version, ranges ...Range) (Version, bool) {
	var best Version
	found := false
	for _, c := range candidates {
		if !containsAll(ranges, c) {
			continue
		}
		if !found || best.Compare(c) < 0 {
			best, found = c, true
		}
	}
	return best, found
}

func containsAll(ranges []Range, v Version) bool {
	for _, r := range ranges {
		if !r.Contains(v) {
			return false
		}
	}
	return true
}
