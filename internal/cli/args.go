package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/stackforge/pkg/config"
	"github.com/matzehuels/stackforge/pkg/errors"
	"github.com/matzehuels/stackforge/pkg/graph"
	"github.com/matzehuels/stackforge/pkg/lockfile"
	"github.com/matzehuels/stackforge/pkg/profile"
	"github.com/matzehuels/stackforge/pkg/recipe/hclrecipe"
	"github.com/matzehuels/stackforge/pkg/ref"
	"github.com/matzehuels/stackforge/pkg/requirement"
	"github.com/matzehuels/stackforge/pkg/store"
)

// recipeFile is the recipe looked up in a directory argument.
const recipeFile = "recipe.hcl"

// resolveFlags are the flags shared by every command that builds a graph.
type resolveFlags struct {
	profile  string
	settings []string
	options  []string
	requires []string
	lockfile string
	update   bool
}

func (f *resolveFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.profile, "profile", "p", "", "profile name or path")
	cmd.Flags().StringArrayVarP(&f.settings, "settings", "s", nil, "setting assignment [pattern:]name=value (repeatable)")
	cmd.Flags().StringArrayVarP(&f.options, "options", "o", nil, "option assignment [pattern:]name=value (repeatable)")
	cmd.Flags().StringArrayVar(&f.requires, "requires", nil, "requirement of a command-line consumer, used without a recipe argument (repeatable)")
	cmd.Flags().StringVar(&f.lockfile, "lockfile", "", "lock file pinning ranges")
	cmd.Flags().BoolVarP(&f.update, "update", "u", false, "check remotes for newer versions")
	_ = cmd.RegisterFlagCompletionFunc("profile", completeProfiles)
}

// loadProfile builds the profile of a run: the named or given profile file
// followed by the command-line assignments.
func (f *resolveFlags) loadProfile() (*profile.Profile, error) {
	prof := profile.New("default")
	if f.profile != "" {
		path, err := profilePath(f.profile)
		if err != nil {
			return nil, err
		}
		if prof, err = profile.Load(path); err != nil {
			return nil, err
		}
	}
	if err := prof.Apply(f.settings, f.options); err != nil {
		return nil, err
	}
	return prof, nil
}

// loadLock reads the lock file when one is given. A missing file yields an
// empty lock, so the first run creates it.
func (f *resolveFlags) loadLock() (*lockfile.Lockfile, error) {
	if f.lockfile == "" {
		return nil, nil
	}
	if _, err := os.Stat(f.lockfile); os.IsNotExist(err) {
		return lockfile.New(), nil
	}
	return lockfile.Load(f.lockfile)
}

// profilePath returns name when it is an existing file, otherwise the
// profile of that name in the profiles directory.
func profilePath(name string) (string, error) {
	if fi, err := os.Stat(name); err == nil && !fi.IsDir() {
		return name, nil
	}
	dir, err := config.ProfilesDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", errors.New(errors.ErrCodeFileNotFound, "profile %q not found", name)
	}
	return path, nil
}

// loadRoot turns a command argument into a graph root. The argument is a
// recipe file, a directory holding recipe.hcl, or a reference loaded
// through the evaluator. With no argument the root is a consumer of the
// --requires requirements.
func (f *resolveFlags) loadRoot(args []string) (graph.Root, error) {
	if len(args) == 0 {
		if len(f.requires) == 0 {
			return graph.Root{}, errors.New(errors.ErrCodeInvalidInput, "a recipe path, a reference or --requires is needed")
		}
		reqs := make([]requirement.Requirement, len(f.requires))
		for i, s := range f.requires {
			req, err := requirement.Parse(s)
			if err != nil {
				return graph.Root{}, err
			}
			reqs[i] = req
		}
		return graph.Consumer(reqs...), nil
	}
	if len(f.requires) > 0 {
		return graph.Root{}, errors.New(errors.ErrCodeInvalidInput, "--requires cannot be combined with %s", args[0])
	}
	return loadRoot(args[0])
}

func loadRoot(arg string) (graph.Root, error) {
	fi, err := os.Stat(arg)
	if err != nil {
		r, perr := ref.Parse(arg)
		if perr != nil {
			return graph.Root{}, errors.Wrap(errors.ErrCodeInvalidInput, perr, "%s is neither a recipe file nor a reference", arg)
		}
		return graph.FromRef(r), nil
	}

	path := arg
	if fi.IsDir() {
		path = filepath.Join(arg, recipeFile)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return graph.Root{}, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
	}
	rec, err := hclrecipe.Parse(src, path)
	if err != nil {
		return graph.Root{}, err
	}
	r, err := rec.Reference()
	if err != nil {
		return graph.Root{}, err
	}
	if r.IsZero() {
		return graph.Root{Recipe: rec}, nil
	}
	r = r.WithRevision(store.Revision(src))
	return graph.Root{Ref: r, Recipe: rec.Bind(r)}, nil
}
