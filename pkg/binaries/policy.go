package binaries

import (
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/values"
)

// BuildPolicy decides which packages are built from source. The zero value
// builds nothing: a missing binary is an error.
type BuildPolicy struct {
	// Never forbids building anything.
	Never bool
	// Missing builds every package without a binary.
	Missing bool
	// Cascade rebuilds every package with a dependency being built.
	Cascade bool
	// Force lists patterns of packages built even when a binary exists.
	Force []string
	// MissingOnly lists patterns of packages built when their binary is
	// missing.
	MissingOnly []string
	// Exclude lists patterns of packages never built.
	Exclude []string
}

// ParsePolicy parses --build values:
//
//	never          build nothing
//	missing        build what has no binary
//	cascade        rebuild consumers of anything being built
//	always         build everything (same as "*")
//	<pattern>      build matching packages from source
//	missing:<pat>  build matching packages when their binary is missing
//	!<pattern>     never build matching packages
func ParsePolicy(items []string) (BuildPolicy, error) {
	var p BuildPolicy
	for _, item := range items {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
			continue
		case item == "never":
			p.Never = true
		case item == "missing":
			p.Missing = true
		case item == "cascade":
			p.Cascade = true
		case item == "always":
			p.Force = append(p.Force, "*")
		case strings.HasPrefix(item, "missing:"):
			pat := strings.TrimPrefix(item, "missing:")
			if pat == "" {
				return p, errors.New(errors.ErrCodeInvalidInput, "empty pattern in --build=%s", item)
			}
			p.MissingOnly = append(p.MissingOnly, pat)
		case strings.HasPrefix(item, "!") || strings.HasPrefix(item, "~"):
			pat := item[1:]
			if pat == "" {
				return p, errors.New(errors.ErrCodeInvalidInput, "empty pattern in --build=%s", item)
			}
			p.Exclude = append(p.Exclude, pat)
		default:
			p.Force = append(p.Force, item)
		}
	}
	if p.Never && (p.Missing || p.Cascade || len(p.Force) > 0 || len(p.MissingOnly) > 0) {
		return p, errors.New(errors.ErrCodeInvalidInput, "--build=never cannot be combined with other build policies")
	}
	return p, nil
}

// String renders the policy in --build form.
func (p BuildPolicy) String() string {
	var parts []string
	if p.Never {
		parts = append(parts, "never")
	}
	if p.Missing {
		parts = append(parts, "missing")
	}
	if p.Cascade {
		parts = append(parts, "cascade")
	}
	parts = append(parts, p.Force...)
	for _, pat := range p.MissingOnly {
		parts = append(parts, "missing:"+pat)
	}
	for _, pat := range p.Exclude {
		parts = append(parts, "!"+pat)
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, ",")
}

func (p BuildPolicy) excluded(r ref.Reference) bool {
	return matchAny(p.Exclude, r)
}

// forced reports whether r is built even when its binary exists.
func (p BuildPolicy) forced(r ref.Reference) bool {
	return !p.Never && !p.excluded(r) && matchAny(p.Force, r)
}

// buildMissing reports whether r is built when its binary is missing.
func (p BuildPolicy) buildMissing(r ref.Reference) bool {
	if p.Never || p.excluded(r) {
		return false
	}
	return p.Missing || matchAny(p.MissingOnly, r) || matchAny(p.Force, r)
}

func matchAny(patterns []string, r ref.Reference) bool {
	for _, pat := range patterns {
		if values.Match(pat, r, false) {
			return true
		}
	}
	return false
}
