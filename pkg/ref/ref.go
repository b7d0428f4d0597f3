// Package ref defines recipe and package references.
//
// A [Reference] identifies a recipe: name/version@user/channel#revision.
// A [PackageReference] identifies one built binary of a recipe:
// name/version@user/channel#revision:package_id#package_revision.
//
// Both types are immutable values. Revisions are assigned by the store after
// the reference is created; use [Reference.WithRevision] to obtain a copy
// carrying one.
//
// # Equality
//
// Two references are equal when name, version, user and channel match. The
// revision only participates when both sides carry one:
//
//	a := ref.MustParse("zlib/1.2.13")
//	b := ref.MustParse("zlib/1.2.13#abc")
//	a.Equal(b) // true
package ref

import (
	"fmt"
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/version"
)

// Reference identifies a recipe.
type Reference struct {
	Name     string
	Version  version.Version
	User     string
	Channel  string
	Revision string
}

// New creates a reference without user, channel or revision.
func New(name, ver string) Reference {
	return Reference{Name: name, Version: version.New(ver)}
}

// Parse parses "name/version[@user[/channel]][#revision]".
func Parse(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reference{}, errors.New(errors.ErrCodeInvalidReference, "empty reference")
	}

	var r Reference
	if i := strings.IndexByte(s, '#'); i >= 0 {
		r.Revision = s[i+1:]
		s = s[:i]
		if r.Revision == "" {
			return Reference{}, errors.New(errors.ErrCodeInvalidReference, "empty revision in %q", s)
		}
	}
	if i := strings.IndexByte(s, '@'); i >= 0 {
		uc := s[i+1:]
		s = s[:i]
		user, channel, _ := strings.Cut(uc, "/")
		r.User, r.Channel = user, channel
		if err := errors.ValidateUserChannel("user", r.User); err != nil {
			return Reference{}, err
		}
		if err := errors.ValidateUserChannel("channel", r.Channel); err != nil {
			return Reference{}, err
		}
	}
	name, ver, ok := strings.Cut(s, "/")
	if !ok || ver == "" {
		return Reference{}, errors.New(errors.ErrCodeInvalidReference, "invalid reference %q: expected name/version", s)
	}
	if err := errors.ValidatePackageName(name); err != nil {
		return Reference{}, err
	}
	r.Name = name
	r.Version = version.New(ver)
	return r, nil
}

// MustParse is like [Parse] but panics on error. Intended for tests and
// package-level variables.
func MustParse(s string) Reference {
	r, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return r
}

// IsZero reports whether r is the zero reference.
func (r Reference) IsZero() bool { return r.Name == "" }

// String returns "name/version[@user/channel]" without the revision.
func (r Reference) String() string {
	if r.Name == "" {
		return ""
	}
	s := r.Name + "/" + r.Version.String()
	if r.User != "" || r.Channel != "" {
		s += "@" + r.User
		if r.Channel != "" {
			s += "/" + r.Channel
		}
	}
	return s
}

// Repr returns the full form including the revision, if any.
func (r Reference) Repr() string {
	if r.Revision == "" {
		return r.String()
	}
	return r.String() + "#" + r.Revision
}

// Equal reports whether r and o identify the same recipe. Revisions are
// compared only when both references carry one.
func (r Reference) Equal(o Reference) bool {
	if r.Name != o.Name || r.User != o.User || r.Channel != o.Channel {
		return false
	}
	if !r.Version.Equal(o.Version) {
		return false
	}
	if r.Revision != "" && o.Revision != "" {
		return r.Revision == o.Revision
	}
	return true
}

// WithRevision returns a copy of r with the given revision.
func (r Reference) WithRevision(rev string) Reference {
	r.Revision = rev
	return r
}

// WithoutRevision returns a copy of r with the revision cleared.
func (r Reference) WithoutRevision() Reference {
	r.Revision = ""
	return r
}

// Compare orders references by name, then version, then user/channel, then
// revision. Used for deterministic listings and lock files.
func (r Reference) Compare(o Reference) int {
	if c := strings.Compare(r.Name, o.Name); c != 0 {
		return c
	}
	if c := r.Version.Compare(o.Version); c != 0 {
		return c
	}
	if c := strings.Compare(r.User, o.User); c != 0 {
		return c
	}
	if c := strings.Compare(r.Channel, o.Channel); c != 0 {
		return c
	}
	return strings.Compare(r.Revision, o.Revision)
}

// PackageReference identifies one binary of one recipe.
type PackageReference struct {
	Ref       Reference
	PackageID string
	Revision  string
}

// NewPackage creates a package reference.
func NewPackage(r Reference, packageID string) PackageReference {
	return PackageReference{Ref: r, PackageID: packageID}
}

// ParsePackage parses "name/version[@u/c][#rrev]:package_id[#prev]".
func ParsePackage(s string) (PackageReference, error) {
	head, tail, ok := strings.Cut(s, ":")
	if !ok || tail == "" {
		return PackageReference{}, errors.New(errors.ErrCodeInvalidReference, "invalid package reference %q: missing package id", s)
	}
	r, err := Parse(head)
	if err != nil {
		return PackageReference{}, err
	}
	pref := PackageReference{Ref: r}
	pref.PackageID, pref.Revision, _ = strings.Cut(tail, "#")
	if pref.PackageID == "" {
		return PackageReference{}, errors.New(errors.ErrCodeInvalidReference, "invalid package reference %q: empty package id", s)
	}
	return pref, nil
}

// String returns the package reference including the recipe revision when
// present, but without the package revision.
func (p PackageReference) String() string {
	return fmt.Sprintf("%s:%s", p.Ref.Repr(), p.PackageID)
}

// Repr returns the full form including the package revision, if any.
func (p PackageReference) Repr() string {
	if p.Revision == "" {
		return p.String()
	}
	return p.String() + "#" + p.Revision
}

// Equal reports whether p and o identify the same binary. Package revisions
// are compared only when both sides carry one.
func (p PackageReference) Equal(o PackageReference) bool {
	if !p.Ref.Equal(o.Ref) || p.PackageID != o.PackageID {
		return false
	}
	if p.Revision != "" && o.Revision != "" {
		return p.Revision == o.Revision
	}
	return true
}

// WithRevision returns a copy of p with the given package revision.
func (p PackageReference) WithRevision(rev string) PackageReference {
	p.Revision = rev
	return p
}
