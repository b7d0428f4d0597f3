package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/buildinfo"
	"github.com/matzehuels/stackforge/pkg/cache"
	"github.com/matzehuels/stackforge/pkg/config"
	"github.com/matzehuels/stackforge/pkg/engine"
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/ranges"
	"github.com/matzehuels/stackforge/pkg/recipe"
	"github.com/matzehuels/stackforge/pkg/recipe/hclrecipe"
	"github.com/matzehuels/stackforge/pkg/store"
	"github.com/matzehuels/stackforge/pkg/store/badgerstore"
	"github.com/matzehuels/stackforge/pkg/store/remote"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	// RunID identifies one invocation in logs and remote requests.
	RunID string

	configPath string
	recipeDirs []string
	cfg        config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	id := uuid.NewString()
	return &CLI{
		Logger: newLogger(w, level).With("run", id[:8]),
		RunID:  id,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Stackforge resolves package dependency graphs and their binaries",
		Long:         `Stackforge resolves the dependency graph of a recipe, computes the package ID of every node and decides whether each binary is cached, downloaded, built or missing.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "global configuration file (default $XDG_CONFIG_HOME/stackforge/global.toml)")
	root.PersistentFlags().StringArrayVar(&c.recipeDirs, "recipes", nil, "recipe directory laid out as <name>/<version>/recipe.hcl (repeatable)")

	// Register all subcommands
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.lockCommand())
	root.AddCommand(c.uploadCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() (config.Config, error) {
	if c.configPath != "" {
		if _, err := os.Stat(c.configPath); err != nil {
			return config.Config{}, errors.New(errors.ErrCodeFileNotFound, "config %s not found", c.configPath)
		}
		return config.Load(c.configPath)
	}
	return config.LoadDefault()
}

// =============================================================================
// Environment
// =============================================================================

// env holds the stores and engine of one command.
type env struct {
	local   *store.KVStore
	remotes []store.Store
	cache   cache.Cache
	eng     *engine.Engine
}

// Close releases the local store and the cache.
func (e *env) Close() error {
	err := e.local.Close()
	if cerr := e.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

// remote returns the remote called name.
func (e *env) remote(name string) (store.Store, error) {
	for _, r := range e.remotes {
		if r.Name() == name {
			return r, nil
		}
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "remote %q is not configured", name)
}

// openEnv opens the local store, the configured remotes (all of them when
// only is empty) and the cache, and wires them into an engine.
func (c *CLI) openEnv(ctx context.Context, only []string) (*env, error) {
	cfg := c.cfg.WithDefaults()

	local, err := badgerstore.New(badgerstore.Config{Path: cfg.StorePath, Logger: c.Logger})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "open local store %s", cfg.StorePath)
	}

	var remotes []store.Store
	for _, r := range cfg.Remotes {
		if len(only) > 0 && !slices.Contains(only, r.Name) {
			continue
		}
		cl, err := remote.NewClient(r.Name, r.URL, remote.ClientOptions{Timeout: cfg.Timeout, RunID: c.RunID})
		if err != nil {
			local.Close()
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "remote %q", r.Name)
		}
		remotes = append(remotes, cl)
	}
	for _, name := range only {
		if _, ok := cfg.Remote(name); !ok {
			local.Close()
			return nil, errors.New(errors.ErrCodeInvalidConfig, "remote %q is not configured", name)
		}
	}

	ch, err := newCache(ctx, cfg)
	if err != nil {
		local.Close()
		return nil, err
	}

	settings, err := cfg.Settings()
	if err != nil {
		local.Close()
		ch.Close()
		return nil, err
	}

	// Recipes come from the recipe directories, the local store, then the
	// remotes; versions are listed from the directories and the local store
	// by the engine and from the remotes by the range resolver.
	var chain recipe.Chain
	listings := []ranges.Source{}
	for _, dir := range c.recipeDirs {
		cat := hclrecipe.NewCatalog(dir)
		chain = append(chain, cat)
		listings = append(listings, cat)
	}
	chain = append(chain, hclrecipe.NewStoreEvaluator(local))
	for _, r := range remotes {
		chain = append(chain, hclrecipe.NewStoreEvaluator(r))
	}

	eng := engine.New(chain, local, remotes, ch, c.Logger)
	eng.Keyer = cfg.Keyer()
	eng.Listings = listings
	eng.Settings = settings
	return &env{local: local, remotes: remotes, cache: ch, eng: eng}, nil
}

// engineOptions returns the run options shared by every command.
func (c *CLI) engineOptions() engine.Options {
	cfg := c.cfg.WithDefaults()
	return engine.Options{
		Parallel:      cfg.Parallel,
		Modes:         cfg.Modes(),
		Editable:      cfg.Editable,
		RemoteTimeout: cfg.Timeout,
	}
}

func newCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisAddr, appName+":")
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to redis at %s", cfg.RedisAddr)
		}
		return rc, nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/stackforge/).
func cacheDir() (string, error) {
	return config.CacheDir()
}

// writeOutput writes data to path, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}
