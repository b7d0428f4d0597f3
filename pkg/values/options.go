package values

import (
	"maps"
	"slices"
	"strings"

	"github.com/matzehuels/stackforge/pkg/errors"
)

// AnyValue admits any value for an option or setting.
const AnyValue = "ANY"

// OptionDefs declares the options of a recipe.
type OptionDefs struct {
	Allowed  map[string][]string // option -> allowed values, or [AnyValue]
	Defaults map[string]string
}

// Declared reports whether key is a declared option.
func (d OptionDefs) Declared(key string) bool {
	_, ok := d.Allowed[key]
	return ok
}

// Names returns the declared options in sorted order.
func (d OptionDefs) Names() []string {
	return slices.Sorted(maps.Keys(d.Allowed))
}

// DefaultValues returns the declared defaults as Values.
func (d OptionDefs) DefaultValues() *Values {
	v := New()
	for _, k := range slices.Sorted(maps.Keys(d.Defaults)) {
		v.apply(Change{Key: k, Value: d.Defaults[k], Origin: OriginDefault})
	}
	return v
}

// Filter validates v against the definitions. Undeclared keys that were set
// through a wildcard pattern are dropped silently, since such patterns target
// many packages. Any other undeclared key, or a value outside the allowed
// list, fails with code INVALID_OPTION.
func (d OptionDefs) Filter(v *Values, owner string) error {
	for _, k := range v.Keys() {
		allowed, ok := d.Allowed[k]
		if !ok {
			if w, _ := v.Winner(k); IsWildcard(w.Pattern) || strings.HasPrefix(w.Pattern, "!") {
				delete(v.data, k)
				continue
			}
			return errors.New(errors.ErrCodeInvalidOption, "%s: option %q does not exist; possible options are %v", owner, k, d.Names())
		}
		val, _ := v.Get(k)
		if !allows(allowed, val) {
			return errors.New(errors.ErrCodeInvalidOption, "%s: %q is not a valid value for option %q; possible values are %v", owner, val, k, allowed)
		}
	}
	return nil
}

func allows(allowed []string, val string) bool {
	for _, a := range allowed {
		if a == AnyValue || a == val {
			return true
		}
	}
	return false
}
