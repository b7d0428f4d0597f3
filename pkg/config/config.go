// Package config loads the global stackforge configuration.
//
// The configuration lives in $XDG_CONFIG_HOME/stackforge/global.toml
// (~/.config/stackforge/global.toml when XDG_CONFIG_HOME is unset). A missing
// file is not an error: every field has a default.
//
//	parallel = 8
//	default_requirement_mode = "minor_mode"
//	default_build_mode = "unrelated_mode"
//	store_path = "/var/lib/stackforge"
//	cache = "redis"
//	redis_addr = "localhost:6379"
//	cache_prefix = "ci:"
//	timeout = "30s"
//	editable = ["mylib/*"]
//
//	[[remotes]]
//	name = "central"
//	url = "https://packages.example.com"
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/stackforge/pkg/cache"
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/pkgid"
	"github.com/matzehuels/stackforge/pkg/values"
)

const (
	// AppName names the configuration, cache and data directories.
	AppName = "stackforge"
	// FileName is the global configuration file name.
	FileName = "global.toml"

	DefaultParallel = 8
	DefaultTimeout  = 30 * time.Second
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Remote is a named remote store server.
type Remote struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

// Config is the global configuration.
type Config struct {
	Parallel               int           `toml:"parallel"`
	DefaultRequirementMode pkgid.Mode    `toml:"default_requirement_mode"`
	DefaultBuildMode       pkgid.Mode    `toml:"default_build_mode"`
	Remotes                []Remote      `toml:"remotes"`
	StorePath              string        `toml:"store_path"` // local Badger store directory
	Cache                  string        `toml:"cache"`      // file, redis or none
	RedisAddr              string        `toml:"redis_addr"`
	CachePrefix            string        `toml:"cache_prefix"` // scopes cache keys on a shared Redis
	Timeout                time.Duration `toml:"timeout"` // per remote operation
	SettingsYML            string        `toml:"settings_yml"`
	Editable               []string      `toml:"editable"` // reference patterns served from a workspace

	path string
}

// Path returns the file the configuration was loaded from, or "" when it
// holds defaults only.
func (c Config) Path() string { return c.path }

// WithDefaults returns a copy of Config with zero values replaced by
// defaults.
func (c Config) WithDefaults() Config {
	if c.Parallel <= 0 {
		c.Parallel = DefaultParallel
	}
	modes := c.Modes()
	c.DefaultRequirementMode, c.DefaultBuildMode = modes.Host, modes.Build
	if c.Cache == "" {
		c.Cache = CacheFile
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StorePath == "" {
		if dir, err := DataDir(); err == nil {
			c.StorePath = filepath.Join(dir, "store")
		}
	}
	return c
}

// Modes returns the default requirement modes.
func (c Config) Modes() pkgid.DefaultModes {
	return pkgid.DefaultModes{Host: c.DefaultRequirementMode, Build: c.DefaultBuildMode}.WithDefaults()
}

// Keyer returns the cache keyer, scoped by CachePrefix when one is set.
func (c Config) Keyer() cache.Keyer {
	if c.CachePrefix == "" {
		return cache.NewDefaultKeyer()
	}
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.CachePrefix)
}

// Validate checks field values that decoding cannot.
func (c Config) Validate() error {
	for _, m := range []pkgid.Mode{c.DefaultRequirementMode, c.DefaultBuildMode} {
		if m == "" {
			continue
		}
		if _, err := pkgid.ParseMode(string(m)); err != nil {
			return err
		}
	}
	switch c.Cache {
	case "", CacheFile, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache = %q requires redis_addr", c.Cache)
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache %q (want file, redis or none)", c.Cache)
	}
	seen := make(map[string]bool)
	for _, r := range c.Remotes {
		if r.Name == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "remote %q has no name", r.URL)
		}
		if seen[r.Name] {
			return errors.New(errors.ErrCodeInvalidConfig, "remote %q is defined twice", r.Name)
		}
		seen[r.Name] = true
		if err := errors.ValidateURL(r.URL); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "remote %q", r.Name)
		}
	}
	return nil
}

// Remote returns the remote called name.
func (c Config) Remote(name string) (Remote, bool) {
	for _, r := range c.Remotes {
		if r.Name == name {
			return r, true
		}
	}
	return Remote{}, false
}

// Settings returns the settings definition: settings_yml when set,
// otherwise the built-in one.
func (c Config) Settings() (*values.SettingsDefinition, error) {
	if c.SettingsYML == "" {
		return values.DefaultSettingsDefinition(), nil
	}
	data, err := os.ReadFile(c.SettingsYML)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read settings_yml")
	}
	def, err := values.LoadSettingsDefinition(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", c.SettingsYML)
	}
	return def, nil
}

// Load reads the configuration at path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Config{}.WithDefaults(), nil
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", path)
	}
	c.path = path
	return c, nil
}

// LoadDefault reads the configuration from [DefaultPath].
func LoadDefault() (Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return Config{}.WithDefaults(), nil
	}
	return Load(path)
}

// Parse decodes a configuration document and applies defaults.
func Parse(data []byte) (Config, error) {
	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse configuration")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "unknown key %q", undecoded[0].String())
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c.WithDefaults(), nil
}

// DefaultPath returns $XDG_CONFIG_HOME/stackforge/global.toml.
func DefaultPath() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// ProfilesDir returns $XDG_CONFIG_HOME/stackforge/profiles, where profiles
// are looked up by name.
func ProfilesDir() (string, error) {
	dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles"), nil
}

// CacheDir returns $XDG_CACHE_HOME/stackforge.
func CacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// DataDir returns $XDG_DATA_HOME/stackforge.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, AppName), nil
}
