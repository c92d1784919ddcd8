package config

import (
	"os"
	"path/filepath"
)

// CacheHome returns nozem's cache home directory: $NOZEM_CACHE_HOME if
// set, otherwise $HOME/.cache/nozem. Carried over in spirit from the
// teacher's ClawkerHome: an env-var override checked first, a fixed
// subdirectory of the user's home otherwise.
func CacheHome() (string, error) {
	if home := os.Getenv(CacheHomeEnv); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "nozem"), nil
}

// LocalCacheDir returns the local tarball cache tier's directory, per
// spec.md §6's layout ($HOME/.cache/nozem/local/<hh>/<hash>.{json,tar.gz}).
func LocalCacheDir() (string, error) {
	home, err := CacheHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "local"), nil
}

// LogsDir returns the directory nozem's own rotated log file lives in,
// alongside but outside the artifact cache tiers.
func LogsDir() (string, error) {
	home, err := CacheHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "logs"), nil
}
