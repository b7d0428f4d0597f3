// Package version implements package versions and version ranges.
//
// Versions are arbitrary strings. When a version parses as a semantic version
// (Masterminds/semver/v3, which also accepts "1" and "1.2"), comparisons are
// semver-aware: numeric segments compare numerically and pre-releases sort
// before the corresponding release. Versions that do not parse, such as
// "1.2.3.4" or "cci.20230101", fall back to a dotted-segment comparison.
//
// Ranges use the bracket syntax found in requirement strings:
//
//	[>=1.0 <2.0]
//	[~1.2]
//	[^1.0]
//	[1.0 - 2.0]
//	[>1 || <0.5]
//	[>=1.0, include_prerelease]
package version

import (
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Version is a package version. The zero value is the empty version.
type Version struct {
	raw string
	sv  *semver.Version
}

// New creates a Version from a string. It never fails: strings that are not
// semantic versions are kept verbatim and ordered segment by segment.
func New(s string) Version {
	s = strings.TrimSpace(s)
	v := Version{raw: s}
	if sv, err := semver.NewVersion(s); err == nil {
		v.sv = sv
	}
	return v
}

// String returns the version exactly as written.
func (v Version) String() string { return v.raw }

// IsZero reports whether v is empty.
func (v Version) IsZero() bool { return v.raw == "" }

// Semver returns the parsed semantic version, or nil.
func (v Version) Semver() *semver.Version { return v.sv }

// IsPrerelease reports whether v carries a pre-release tag.
func (v Version) IsPrerelease() bool { return v.sv != nil && v.sv.Prerelease() != "" }

// Equal reports whether v and o are written identically.
//
// "1.0" and "1.0.0" compare as equal with [Version.Compare] but are distinct
// references, so Equal does not use semver semantics.
func (v Version) Equal(o Version) bool { return v.raw == o.raw }

// Compare returns -1, 0 or +1.
func (v Version) Compare(o Version) int {
	if v.sv != nil && o.sv != nil {
		if c := v.sv.Compare(o.sv); c != 0 {
			return c
		}
		// Equal precedence ("1.0" vs "1.0.0", or differing build metadata).
		return strings.Compare(v.raw, o.raw)
	}
	return compareSegments(v.raw, o.raw)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Segments returns the dot-separated main segments of the version, without
// pre-release or build metadata.
func (v Version) Segments() []string {
	main := v.raw
	if i := strings.IndexAny(main, "-+"); i >= 0 {
		main = main[:i]
	}
	if main == "" {
		return nil
	}
	return strings.Split(main, ".")
}

// Major returns the first segment of the version.
func (v Version) Major() string {
	segs := v.Segments()
	if len(segs) == 0 {
		return ""
	}
	return segs[0]
}

// Truncate keeps the first n segments and replaces the remaining ones, up to
// three, with the placeholders Y and Z. Truncate(1) of "1.2.3" is "1.Y.Z",
// Truncate(2) is "1.2.Z".
func (v Version) Truncate(n int) string {
	segs := v.Segments()
	out := make([]string, 0, 3)
	for i := 0; i < n && i < len(segs); i++ {
		out = append(out, segs[i])
	}
	placeholders := []string{"X", "Y", "Z"}
	for i := len(out); i < 3; i++ {
		out = append(out, placeholders[i])
	}
	return strings.Join(out, ".")
}

// compareSegments orders two non-semver version strings. Numeric segments
// compare numerically, other segments lexically, and a numeric segment sorts
// before an alphanumeric one. A version with extra trailing segments sorts
// after its prefix.
func compareSegments(a, b string) int {
	as, bs := splitSegments(a), splitSegments(b)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func splitSegments(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' || r == '+' })
}

func compareSegment(a, b string) int {
	an, aerr := strconv.ParseUint(a, 10, 64)
	bn, berr := strconv.ParseUint(b, 10, 64)
	switch {
	case aerr == nil && berr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		}
		return 0
	case aerr == nil:
		return -1
	case berr == nil:
		return 1
	}
	return strings.Compare(a, b)
}
