// Package mount discovers active blob-filesystem mounts and classifies local paths
// against them.
package mount

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/asad/usmo/internal/blob"
	"github.com/asad/usmo/internal/logging"
)

// MountRecord is one active mount and the container it serves.
type MountRecord struct {
	// MountPath is the absolute, cleaned mount point. It is the registry key.
	MountPath string

	AccountName   string
	ContainerName string

	// BaseURL is the container root URL, ending in a slash.
	BaseURL string
}

// NewMountRecord builds a record, cleaning mountPath and deriving BaseURL.
func NewMountRecord(mountPath, account, container string) MountRecord {
	r := MountRecord{
		MountPath:     filepath.Clean(mountPath),
		AccountName:   account,
		ContainerName: container,
	}
	r.BaseURL = r.Container().BaseURL()
	return r
}

// Container returns the blob container behind the mount.
func (r MountRecord) Container() blob.Container {
	return blob.Container{Account: r.AccountName, Name: r.ContainerName}
}

// Contains reports whether path is the mount point or lies beneath it. The check is
// separator-bounded: /mnt/data2 is not under /mnt/data.
func (r MountRecord) Contains(path string) bool {
	_, ok := r.Relative(path)
	return ok
}

// Relative returns path relative to the mount point, with forward slashes and no
// leading separator. ok is false when path is not under the mount.
func (r MountRecord) Relative(path string) (string, bool) {
	root := r.MountPath
	if path == root {
		return "", true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok {
		return "", false
	}
	return filepath.ToSlash(strings.TrimLeft(rest, string(filepath.Separator))), true
}

// LocalPath maps a URL in the mount's container back to the local path under the
// mount point.
func (r MountRecord) LocalPath(u blob.URL) (string, bool) {
	if u.Container != r.Container() {
		return "", false
	}
	return filepath.Join(r.MountPath, filepath.FromSlash(u.Path)), true
}

// Registry maps mount paths to records, keeping discovery order. It is built once per
// invocation and read-only afterwards.
type Registry struct {
	records []MountRecord
	index   map[string]int
}

// NewRegistry creates a registry from records. Later duplicates of a mount path are
// dropped.
func NewRegistry(records ...MountRecord) *Registry {
	reg := &Registry{index: make(map[string]int)}
	for _, r := range records {
		reg.add(r)
	}
	return reg
}

func (g *Registry) add(r MountRecord) bool {
	if _, exists := g.index[r.MountPath]; exists {
		return false
	}
	g.index[r.MountPath] = len(g.records)
	g.records = append(g.records, r)
	return true
}

// Records returns the mounts in discovery order.
func (g *Registry) Records() []MountRecord {
	out := make([]MountRecord, len(g.records))
	copy(out, g.records)
	return out
}

// Len returns the number of mounts.
func (g *Registry) Len() int {
	return len(g.records)
}

// Get returns the record for an exact mount path.
func (g *Registry) Get(mountPath string) (MountRecord, bool) {
	i, ok := g.index[filepath.Clean(mountPath)]
	if !ok {
		return MountRecord{}, false
	}
	return g.records[i], true
}

// Match returns the most specific mount containing the absolute path, or nil.
func (g *Registry) Match(path string) *MountRecord {
	var best *MountRecord
	for i := range g.records {
		r := &g.records[i]
		if !r.Contains(path) {
			continue
		}
		if best == nil || len(r.MountPath) > len(best.MountPath) {
			best = r
		}
	}
	return best
}

// Discover scans inspector's processes for mounts of the given tool. It never fails:
// processes with unusable arguments or unreadable configs are skipped and logged at
// debug level, and an unreadable process table yields an empty registry.
func Discover(ctx context.Context, inspector ProcessInspector, tool string, logger logging.Logger) *Registry {
	reg := NewRegistry()

	procs, err := inspector.ListCandidateProcesses(ctx)
	if err != nil {
		logger.Warn("mount discovery unavailable", logging.ErrorField(err))
		return reg
	}

	for _, p := range procs {
		if !IsMountCommand(p.Cmdline, tool) {
			continue
		}
		log := logger.With(logging.Int32("pid", p.PID))

		args, ok := parseMountArgs(p.Cmdline, p.Cwd)
		if !ok {
			log.Debug("skipping mount process without mount path or config file")
			continue
		}

		cfg, err := LoadConfig(args.ConfigFile, args.ContainerOverride)
		if err != nil {
			log.Debug("skipping mount with unusable config",
				logging.String("mount_path", args.MountPath),
				logging.ErrorField(err),
			)
			continue
		}

		record := NewMountRecord(resolveMountPath(args.MountPath), cfg.AccountName, cfg.ContainerName)
		if !reg.add(record) {
			log.Debug("skipping duplicate mount", logging.String("mount_path", record.MountPath))
			continue
		}
		log.Debug("discovered mount",
			logging.String("mount_path", record.MountPath),
			logging.String("account", record.AccountName),
			logging.String("container", record.ContainerName),
		)
	}

	return reg
}

// resolveMountPath normalises symlinks in the mount point the same way classified
// paths are normalised, so the two compare equal.
func resolveMountPath(path string) string {
	if resolved, err := Resolve(path); err == nil {
		return resolved
	}
	return path
}
