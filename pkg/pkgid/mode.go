package pkgid

import (
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ref"
)

// Mode selects how much of a dependency's reference takes part in a
// consumer's package ID.
type Mode string

const (
	UnrelatedMode       Mode = "unrelated_mode"
	SemverMode          Mode = "semver_mode"
	MajorMode           Mode = "major_mode"
	MinorMode           Mode = "minor_mode"
	PatchMode           Mode = "patch_mode"
	FullVersionMode     Mode = "full_version_mode"
	RecipeRevisionMode  Mode = "recipe_revision_mode"
	PackageRevisionMode Mode = "package_revision_mode"
	FullMode            Mode = "full_mode"
)

var modes = map[Mode]bool{
	UnrelatedMode: true, SemverMode: true, MajorMode: true, MinorMode: true, PatchMode: true,
	FullVersionMode: true, RecipeRevisionMode: true, PackageRevisionMode: true, FullMode: true,
}

// ParseMode parses a mode name such as "minor_mode".
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !modes[m] {
		return "", errors.New(errors.ErrCodeInvalidConfig, "unknown requirement mode %q", s)
	}
	return m, nil
}

// RequirementInfo is the part of a dependency that takes part in a
// consumer's package ID, after its mode has been applied.
type RequirementInfo struct {
	Name            string
	Version         string
	User            string
	Channel         string
	RecipeRevision  string
	PackageID       string
	PackageRevision string
}

// NewRequirementInfo truncates a dependency's package reference according to
// mode. It reports false for [UnrelatedMode].
func NewRequirementInfo(pref ref.PackageReference, mode Mode) (RequirementInfo, bool) {
	r := pref.Ref
	info := RequirementInfo{Name: r.Name, User: r.User, Channel: r.Channel}
	v := r.Version
	switch mode {
	case UnrelatedMode:
		return RequirementInfo{}, false
	case SemverMode:
		if v.Major() == "0" {
			info.Version = v.String()
		} else {
			info.Version = v.Truncate(1)
		}
	case MajorMode:
		info.Version = v.Truncate(1)
	case MinorMode:
		info.Version = v.Truncate(2)
	case PatchMode:
		info.Version = v.Truncate(3)
	case FullVersionMode:
		info.Version = v.String()
	case RecipeRevisionMode:
		info.Version = v.String()
		info.RecipeRevision = r.Revision
	case FullMode:
		info.Version = v.String()
		info.RecipeRevision = r.Revision
		info.PackageID = pref.PackageID
	case PackageRevisionMode:
		info.Version = v.String()
		info.RecipeRevision = r.Revision
		info.PackageID = pref.PackageID
		info.PackageRevision = pref.Revision
	default:
		info.Version = v.String()
	}
	return info, true
}

// String renders the entry as it appears in the hashed document.
func (r RequirementInfo) String() string {
	s := r.Name + "/" + r.Version
	if r.User != "" || r.Channel != "" {
		s += "@" + r.User
		if r.Channel != "" {
			s += "/" + r.Channel
		}
	}
	if r.RecipeRevision != "" {
		s += "#" + r.RecipeRevision
	}
	if r.PackageID != "" {
		s += ":" + r.PackageID
		if r.PackageRevision != "" {
			s += "#" + r.PackageRevision
		}
	}
	return s
}
