// Package config loads the repository-local persisted configuration file
// that FlagNormalizer folds into every install's EffectiveFlags.
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/BurntSushi/toml"

	lockstepfs "github.com/lockstep-dev/lockstep/fs"
	"github.com/lockstep-dev/lockstep/options"
)

// Filename is the config file's on-disk name.
const Filename = ".locksteprc.toml"

// Load reads Filename out of fsys. A missing file is not an error: it
// returns the zero Config, matching an install with no forcing options.
func Load(fsys lockstepfs.FS) (options.Config, error) {
	f, err := fsys.Open(Filename)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return options.Config{}, nil
		}
		return options.Config{}, fmt.Errorf("opening %s: %w", Filename, err)
	}
	defer f.Close()

	var cfg options.Config
	if _, err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return options.Config{}, fmt.Errorf("decoding %s: %w", Filename, err)
	}
	return cfg, nil
}
