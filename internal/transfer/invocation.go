package transfer

import (
	"github.com/asad/usmo/internal/command"
)

// LocalCopyInvocation is a recursive native copy of one or more sources into a
// destination.
type LocalCopyInvocation struct {
	Tool        string
	Sources     []string
	Destination string
}

// Command renders `cp -r SOURCE... DESTINATION`.
func (i LocalCopyInvocation) Command() command.Command {
	args := make([]string, 0, len(i.Sources)+2)
	args = append(args, "-r")
	args = append(args, i.Sources...)
	args = append(args, i.Destination)
	return command.Command{Program: i.Tool, Args: args}
}

// CloudCopyInvocation is a single-source, single-destination bulk copy where either
// side may be a blob URL.
type CloudCopyInvocation struct {
	Tool        string
	Source      string
	Destination string
	Recursive   bool
}

// Command renders `azcopy copy SOURCE DESTINATION [--recursive]`.
func (i CloudCopyInvocation) Command() command.Command {
	args := []string{"copy", i.Source, i.Destination}
	if i.Recursive {
		args = append(args, "--recursive")
	}
	return command.Command{Program: i.Tool, Args: args}
}
