package recipe

import (
	"maps"

	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/values"
)

// Func implements [Recipe] with static data and optional function fields.
// The zero value is a recipe with no options and no requirements.
type Func struct {
	OptionDefs values.OptionDefs
	Requires   []requirement.Requirement
	Rules      []pkgid.Compatible
	ReqModes   map[string]pkgid.Mode

	ConfigureFunc     func(*ConfigureContext) error
	RequirementsFunc  func(*RequirementsContext) ([]requirement.Requirement, error)
	PackageIDFunc     func(*pkgid.Info) error
	CompatibilityFunc func(*pkgid.Info) []pkgid.Compatible
}

var _ Recipe = (*Func)(nil)

// Options implements [Recipe].
func (f *Func) Options() values.OptionDefs { return f.OptionDefs }

// Configure implements [Recipe].
func (f *Func) Configure(c *ConfigureContext) error {
	if f.ConfigureFunc == nil {
		return nil
	}
	return f.ConfigureFunc(c)
}

// Requirements implements [Recipe]. Static requirements come first.
func (f *Func) Requirements(c *RequirementsContext) ([]requirement.Requirement, error) {
	reqs := append([]requirement.Requirement(nil), f.Requires...)
	if f.RequirementsFunc != nil {
		more, err := f.RequirementsFunc(c)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, more...)
	}
	return reqs, nil
}

// PackageID implements [Recipe].
func (f *Func) PackageID(info *pkgid.Info) error {
	if f.PackageIDFunc == nil {
		return nil
	}
	return f.PackageIDFunc(info)
}

// Compatibility implements [Recipe].
func (f *Func) Compatibility(info *pkgid.Info) []pkgid.Compatible {
	if f.CompatibilityFunc != nil {
		return f.CompatibilityFunc(info)
	}
	return f.Rules
}

// Modes implements [Recipe].
func (f *Func) Modes() map[string]pkgid.Mode { return maps.Clone(f.ReqModes) }
