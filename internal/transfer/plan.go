// Package transfer decides how a copy is carried out and runs the external copy
// tools that do it.
package transfer

import (
	"context"

	"github.com/asad/usmo/internal/mount"
)

// PlanKind selects which copy tools run.
type PlanKind int

const (
	// LocalPassthrough hands every argument to the local copy tool in one call.
	LocalPassthrough PlanKind = iota
	// BulkCloudCopy copies each source to a blob-backed destination with the cloud tool.
	BulkCloudCopy
	// MixedDispatch copies each source to a local destination with whichever tool fits it.
	MixedDispatch
)

func (k PlanKind) String() string {
	switch k {
	case LocalPassthrough:
		return "local-passthrough"
	case BulkCloudCopy:
		return "bulk-cloud-copy"
	case MixedDispatch:
		return "mixed-dispatch"
	default:
		return "unknown"
	}
}

// ActionKind is the tool one per-source action uses.
type ActionKind int

const (
	LocalCopy ActionKind = iota
	CloudCopy
)

func (k ActionKind) String() string {
	if k == CloudCopy {
		return "cloud-copy"
	}
	return "local-copy"
}

// Action copies one source to the destination. Source and Destination are already
// translated: a local path or a blob URL.
type Action struct {
	Kind        ActionKind
	Source      string
	Destination string
}

// Plan is the complete set of transfers for one invocation, in source order.
type Plan struct {
	Kind PlanKind

	// Args is the untouched argument list for LocalPassthrough.
	Args []string

	// Actions is populated for BulkCloudCopy and MixedDispatch.
	Actions []Action
}

// CloudActions counts actions that use the cloud copy tool.
func (p *Plan) CloudActions() int {
	n := 0
	for _, a := range p.Actions {
		if a.Kind == CloudCopy {
			n++
		}
	}
	return n
}

// Build chooses the plan for copying sources into destination. All translation,
// and so all token requests, happens here; an error means nothing has been copied.
func Build(ctx context.Context, t *Translator, sources []mount.ClassifiedPath, destination mount.ClassifiedPath) (*Plan, error) {
	anyBlob := destination.IsBlobBacked()
	for _, s := range sources {
		anyBlob = anyBlob || s.IsBlobBacked()
	}

	if !anyBlob {
		args := make([]string, 0, len(sources)+1)
		for _, s := range sources {
			args = append(args, s.Arg)
		}
		args = append(args, destination.Arg)
		return &Plan{Kind: LocalPassthrough, Args: args}, nil
	}

	if destination.IsBlobBacked() {
		dest, err := t.Target(ctx, destination)
		if err != nil {
			return nil, err
		}
		plan := &Plan{Kind: BulkCloudCopy, Actions: make([]Action, 0, len(sources))}
		for _, s := range sources {
			src, err := t.Target(ctx, s)
			if err != nil {
				return nil, err
			}
			plan.Actions = append(plan.Actions, Action{Kind: CloudCopy, Source: src, Destination: dest})
		}
		return plan, nil
	}

	plan := &Plan{Kind: MixedDispatch, Actions: make([]Action, 0, len(sources))}
	for _, s := range sources {
		if !s.IsBlobBacked() {
			plan.Actions = append(plan.Actions, Action{Kind: LocalCopy, Source: s.Arg, Destination: destination.Arg})
			continue
		}
		src, err := t.Target(ctx, s)
		if err != nil {
			return nil, err
		}
		plan.Actions = append(plan.Actions, Action{Kind: CloudCopy, Source: src, Destination: destination.Arg})
	}
	return plan, nil
}
