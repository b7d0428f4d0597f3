package values

import (
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
)

// Origin records where an assignment came from.
type Origin int

const (
	OriginDefault Origin = iota // recipe-declared default
	OriginRecipe                // set by a requirer's recipe for a dependency
	OriginProfile               // profile file
	OriginCLI                   // command line
)

func (o Origin) String() string {
	switch o {
	case OriginRecipe:
		return "recipe"
	case OriginProfile:
		return "profile"
	case OriginCLI:
		return "cli"
	}
	return "default"
}

// Assignment is one scoped assignment "pattern:key=value". An empty pattern
// targets the consumer only, as does "&".
type Assignment struct {
	Pattern   string
	Key       string
	Value     string
	Important bool
	Origin    Origin
	Source    string // requirer reference, profile path, ...
}

// ParseAssignment parses one of:
//
//	key=value
//	pattern:key=value
//	&:key=value
//	key!=value
//	pattern:key!=value
func ParseAssignment(s string) (Assignment, error) {
	var a Assignment
	lhs, value, ok := strings.Cut(s, "=")
	if !ok {
		return a, errors.New(errors.ErrCodeInvalidInput, "invalid assignment %q: expected key=value", s)
	}
	if strings.HasSuffix(lhs, "!") {
		a.Important = true
		lhs = strings.TrimSuffix(lhs, "!")
	}
	if i := strings.LastIndexByte(lhs, ':'); i >= 0 {
		a.Pattern = strings.TrimSpace(lhs[:i])
		lhs = lhs[i+1:]
	}
	a.Key = strings.TrimSpace(lhs)
	a.Value = strings.TrimSpace(value)
	if a.Key == "" {
		return a, errors.New(errors.ErrCodeInvalidInput, "invalid assignment %q: empty key", s)
	}
	return a, nil
}

// ParseAssignments parses a list of assignment strings, stamping each with
// origin and source.
func ParseAssignments(items []string, origin Origin, source string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(items))
	for _, s := range items {
		a, err := ParseAssignment(s)
		if err != nil {
			return nil, err
		}
		a.Origin, a.Source = origin, source
		out = append(out, a)
	}
	return out, nil
}

// String formats the assignment back into its textual form.
func (a Assignment) String() string {
	var b strings.Builder
	if a.Pattern != "" {
		b.WriteString(a.Pattern)
		b.WriteByte(':')
	}
	b.WriteString(a.Key)
	if a.Important {
		b.WriteByte('!')
	}
	b.WriteByte('=')
	b.WriteString(a.Value)
	return b.String()
}

// IsDirect reports whether the assignment targets the consumer itself.
func (a Assignment) IsDirect() bool { return a.Pattern == "" || a.Pattern == "&" }
