package mount

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
)

// ClassifiedPath is a copy argument labelled local or blob-backed.
type ClassifiedPath struct {
	// Arg is the argument exactly as given.
	Arg string

	// Path is Arg made absolute with symlinks resolved.
	Path string

	// Mount is the mount serving Path, nil for a plain local path.
	Mount *MountRecord
}

// IsBlobBacked reports whether the path lives on a blob-filesystem mount.
func (c ClassifiedPath) IsBlobBacked() bool {
	return c.Mount != nil
}

// Classify resolves arg and matches it against the registry.
func Classify(arg string, reg *Registry) (ClassifiedPath, error) {
	path, err := Resolve(arg)
	if err != nil {
		return ClassifiedPath{}, err
	}
	return ClassifiedPath{Arg: arg, Path: path, Mount: reg.Match(path)}, nil
}

// ClassifyAll classifies args in order.
func ClassifyAll(args []string, reg *Registry) ([]ClassifiedPath, error) {
	out := make([]ClassifiedPath, 0, len(args))
	for _, arg := range args {
		c, err := Classify(arg, reg)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Resolve makes path absolute and resolves symlinks. Paths that do not exist yet,
// typically a copy destination, are resolved through their deepest existing ancestor.
func Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	existing, rest := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			// Unreadable components are compared as written.
			return abs, nil
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}
