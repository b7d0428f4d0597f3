package values

import (
	_ "embed"
	"fmt"
	"maps"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/stackforge/pkg/errors"
)

//go:embed settings.yml
var defaultSettingsYML []byte

// SettingsDefinition describes which settings exist and which values they
// accept. It is loaded from a settings.yml document: a setting maps either to
// a list of allowed values or to a map from each allowed value to its
// sub-settings. A null entry allows the setting to stay unset and "ANY"
// admits any value.
type SettingsDefinition struct {
	root settingsTree
}

type settingsTree map[string]*settingDef

type settingDef struct {
	any    bool
	values map[string]settingsTree
}

// DefaultSettingsDefinition returns the built-in definition.
func DefaultSettingsDefinition() *SettingsDefinition {
	d, err := LoadSettingsDefinition(defaultSettingsYML)
	if err != nil {
		panic(fmt.Sprintf("values: invalid built-in settings.yml: %v", err))
	}
	return d
}

// LoadSettingsDefinition parses a settings.yml document.
func LoadSettingsDefinition(data []byte) (*SettingsDefinition, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse settings definition")
	}
	tree, err := buildTree(raw)
	if err != nil {
		return nil, err
	}
	return &SettingsDefinition{root: tree}, nil
}

func buildTree(raw map[string]any) (settingsTree, error) {
	tree := make(settingsTree, len(raw))
	for name, spec := range raw {
		def := &settingDef{values: make(map[string]settingsTree)}
		switch s := spec.(type) {
		case nil:
		case string:
			if s != AnyValue {
				return nil, errors.New(errors.ErrCodeInvalidConfig, "setting %q: unexpected scalar %q", name, s)
			}
			def.any = true
		case []any:
			for _, item := range s {
				if item == nil {
					def.values[""] = nil
					continue
				}
				val := fmt.Sprint(item)
				if val == AnyValue {
					def.any = true
					continue
				}
				def.values[val] = nil
			}
		case map[string]any:
			for val, sub := range s {
				if val == AnyValue {
					def.any = true
					continue
				}
				if sub == nil {
					def.values[val] = nil
					continue
				}
				subMap, ok := sub.(map[string]any)
				if !ok {
					return nil, errors.New(errors.ErrCodeInvalidConfig, "setting %q value %q: sub-settings must be a map", name, val)
				}
				subTree, err := buildTree(subMap)
				if err != nil {
					return nil, err
				}
				def.values[val] = subTree
			}
		default:
			return nil, errors.New(errors.ErrCodeInvalidConfig, "setting %q: unsupported definition %T", name, spec)
		}
		tree[name] = def
	}
	return tree, nil
}

// Names returns the top-level setting names in sorted order.
func (d *SettingsDefinition) Names() []string {
	return slices.Sorted(maps.Keys(d.root))
}

// Validate checks every defined key in v. A sub-setting such as
// "compiler.version" is validated against the definition selected by the
// value of its parent, which must be set. Errors carry code INVALID_SETTING.
func (d *SettingsDefinition) Validate(v *Values) error {
	for _, key := range v.Keys() {
		if err := d.validateKey(v, key); err != nil {
			return err
		}
	}
	return nil
}

func (d *SettingsDefinition) validateKey(v *Values, key string) error {
	parts := strings.Split(key, ".")
	tree := d.root
	for i, part := range parts {
		def, ok := tree[part]
		if !ok {
			return errors.New(errors.ErrCodeInvalidSetting, "setting %q does not exist", key)
		}
		prefix := strings.Join(parts[:i+1], ".")
		val, err := v.Get(prefix)
		if err != nil {
			return errors.New(errors.ErrCodeInvalidSetting, "setting %q requires %q to be set", key, prefix)
		}
		if !def.any {
			if _, ok := def.values[val]; !ok {
				return errors.New(errors.ErrCodeInvalidSetting, "invalid value %q for setting %q; possible values are %v", val, prefix, def.allowed())
			}
		}
		if i == len(parts)-1 {
			return nil
		}
		tree = def.values[val]
		if tree == nil {
			return errors.New(errors.ErrCodeInvalidSetting, "setting %q does not exist for %s=%s", key, prefix, val)
		}
	}
	return nil
}

func (s *settingDef) allowed() []string {
	out := slices.Sorted(maps.Keys(s.values))
	if s.any {
		out = append(out, AnyValue)
	}
	return out
}
