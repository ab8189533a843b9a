package mount

import (
	"path/filepath"
	"strings"
)

// mountArgs is what discovery extracts from a mount process's argument vector.
type mountArgs struct {
	MountPath  string
	ConfigFile string

	// ContainerOverride is set when the container is given on the command line
	// instead of, or on top of, the config file.
	ContainerOverride string
}

// valueFlags take a separate value when not written as --flag=value.
var valueFlags = map[string]bool{
	"--mount-path":          true,
	"--config-file":         true,
	"--container-name":      true,
	"--tmp-path":            true,
	"--log-level":           true,
	"--log-file-path":       true,
	"--attr-timeout":        true,
	"--entry-timeout":       true,
	"--negative-timeout":    true,
	"--file-cache-timeout":  true,
	"--cache-size-mb":       true,
	"--passphrase":          true,
	"--default-working-dir": true,
	"-o":                    true,
}

// notMounts are subcommands of the mount tool that do not serve a single mount path.
var notMounts = map[string]bool{
	"all":            true,
	"list":           true,
	"unmount":        true,
	"version":        true,
	"help":           true,
	"secure":         true,
	"health-monitor": true,
	"completion":     true,
	"gen-config":     true,
}

// parseMountArgs reads the mount path and config file out of cmdline, e.g.
//
//	blobfuse2 mount /mnt/data --config-file=/etc/blobfuse/data.yaml
//	blobfuse2 /mnt/data --config-file /etc/blobfuse/data.yaml
//	blobfuse2 mount --mount-path /mnt/data --config-file data.yaml
//
// Relative paths are joined onto cwd. ok is false when either value is missing or
// cannot be made absolute.
func parseMountArgs(cmdline []string, cwd string) (mountArgs, bool) {
	var (
		args        mountArgs
		positionals []string
	)

	for i := 1; i < len(cmdline); i++ {
		arg := cmdline[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positionals = append(positionals, arg)
			continue
		}

		name, value, inline := strings.Cut(arg, "=")
		if !inline && valueFlags[name] {
			if i+1 >= len(cmdline) {
				break
			}
			i++
			value = cmdline[i]
		}

		switch name {
		case "--mount-path":
			args.MountPath = value
		case "--config-file":
			args.ConfigFile = value
		case "--container-name":
			args.ContainerOverride = value
		}
	}

	if len(positionals) > 0 && positionals[0] == "mount" {
		positionals = positionals[1:]
	}
	if args.MountPath == "" && len(positionals) > 0 {
		if notMounts[positionals[0]] {
			return mountArgs{}, false
		}
		args.MountPath = positionals[0]
	}

	var ok bool
	if args.MountPath, ok = absolute(args.MountPath, cwd); !ok {
		return mountArgs{}, false
	}
	if args.ConfigFile, ok = absolute(args.ConfigFile, cwd); !ok {
		return mountArgs{}, false
	}
	return args, true
}

func absolute(path, cwd string) (string, bool) {
	switch {
	case path == "":
		return "", false
	case filepath.IsAbs(path):
		return filepath.Clean(path), true
	case cwd == "":
		return "", false
	default:
		return filepath.Join(cwd, path), true
	}
}
