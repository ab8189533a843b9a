package mount

import (
	"context"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is the slice of a live process that mount discovery needs.
type ProcessInfo struct {
	PID int32

	// Cmdline is the full argument vector, program first.
	Cmdline []string

	// Cwd is the process working directory, used to resolve relative arguments.
	// Empty when it could not be read.
	Cwd string
}

// ProcessInspector lists processes that may be blob-filesystem mounts.
type ProcessInspector interface {
	ListCandidateProcesses(ctx context.Context) ([]ProcessInfo, error)
}

// IsMountCommand reports whether cmdline belongs to the given mount tool:
// the command name must contain the tool identifier.
func IsMountCommand(cmdline []string, tool string) bool {
	return len(cmdline) > 0 && tool != "" && strings.Contains(cmdline[0], tool)
}

// SystemInspector reads the host process table through gopsutil.
type SystemInspector struct {
	// Tool is the mount tool identifier, e.g. "blobfuse2".
	Tool string
}

// NewSystemInspector creates an inspector matching processes of the given tool.
func NewSystemInspector(tool string) *SystemInspector {
	return &SystemInspector{Tool: tool}
}

// ListCandidateProcesses returns every process whose command name contains the tool
// identifier. Processes that exit mid-scan or deny access are left out.
func (s *SystemInspector) ListCandidateProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	var out []ProcessInfo
	for _, p := range procs {
		cmdline, err := p.CmdlineSliceWithContext(ctx)
		if err != nil || !IsMountCommand(cmdline, s.Tool) {
			continue
		}

		info := ProcessInfo{PID: p.Pid, Cmdline: cmdline}
		if cwd, err := p.CwdWithContext(ctx); err == nil {
			info.Cwd = cwd
		}
		out = append(out, info)
	}
	return out, nil
}
