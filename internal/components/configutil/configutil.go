// Package configutil loads JSON5 configuration files with local overrides.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Layers lists the files ReadConfig merges for name, lowest priority first.
// "config/app.json5" yields "config/app.json5" and "config/app.local.json5".
func Layers(name string) []string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return []string{name, stem + ".local" + ext}
}

// ReadConfig merges every existing layer of name into a T, later layers
// override the non-zero fields of earlier ones. References to environment
// variables like ${HOME} are expanded before parsing.
//
// os.ErrNotExist is returned if no layer exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	for _, layer := range Layers(name) {
		contents, err := os.ReadFile(layer)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return out, err
		}
		if len(contents) == 0 {
			continue
		}

		var parsed T
		err = json5.Unmarshal([]byte(os.ExpandEnv(string(contents))), &parsed)
		if err != nil {
			return out, fmt.Errorf("parse %s: %w", layer, err)
		}
		if !found {
			out = parsed
			found = true
			continue
		}
		err = mergo.Merge(&out, parsed, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", layer, err)
		}
		slog.Debug("merged config layer", "layer", layer)
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively looks for name in the working directory and then in each
// parent up to the filesystem root, reading the first one found.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	dir, err := os.Getwd()
	if err != nil {
		return zero, err
	}
	for {
		cfg, err := ReadConfig[T](filepath.Join(dir, name))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return zero, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, os.ErrNotExist
		}
		dir = parent
	}
}
