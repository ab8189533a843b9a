// Package credential mints short-lived SAS tokens for blob containers through the
// Azure CLI, using whatever identity the user is already logged in with.
package credential

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/asad/usmo/internal/blob"
	"github.com/asad/usmo/internal/command"
)

// DefaultExpiry is how long a minted token stays valid unless configured otherwise.
const DefaultExpiry = 7 * 24 * time.Hour

// AllPermissions grants add, create, delete, list, read and write on the container.
const AllPermissions = "acdlrw"

// expiryLayout is the UTC timestamp format the Azure CLI accepts for --expiry.
const expiryLayout = "2006-01-02T15:04Z"

// AccessToken is a SAS token scoped to one container.
type AccessToken struct {
	Value     string
	Container blob.Container
	Expiry    time.Time
}

// String never reveals the token value.
func (t AccessToken) String() string {
	return fmt.Sprintf("sas(%s/%s, expires %s)", t.Container.Account, t.Container.Name, t.Expiry.Format(time.RFC3339))
}

// Issuer mints tokens.
type Issuer interface {
	Issue(ctx context.Context, container blob.Container) (AccessToken, error)
}

// Error is returned when a token cannot be obtained. It aborts the whole copy.
type Error struct {
	Container blob.Container
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("failed to obtain SAS token for %s/%s", e.Container.Account, e.Container.Name)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Request describes one generate-sas call.
type Request struct {
	Container   blob.Container
	Permissions string
	Expiry      time.Time
}

// Args renders the Azure CLI arguments for the request. The token is a user
// delegation SAS signed with the logged-in identity.
func (r Request) Args() []string {
	return []string{
		"storage", "container", "generate-sas",
		"--account-name", r.Container.Account,
		"--name", r.Container.Name,
		"--permissions", r.Permissions,
		"--expiry", r.Expiry.UTC().Format(expiryLayout),
		"--auth-mode", "login",
		"--as-user",
		"--output", "tsv",
	}
}

// CLIIssuer mints tokens by running `az storage container generate-sas`.
type CLIIssuer struct {
	Tool   string
	Expiry time.Duration
	Runner command.Runner
	Now    func() time.Time
}

// NewCLIIssuer creates an issuer running tool through runner.
func NewCLIIssuer(tool string, expiry time.Duration, runner command.Runner) *CLIIssuer {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &CLIIssuer{
		Tool:   tool,
		Expiry: expiry,
		Runner: runner,
		Now:    time.Now,
	}
}

// Issue runs the CLI and returns the token it prints. A non-zero exit or empty
// output is an *Error.
func (i *CLIIssuer) Issue(ctx context.Context, container blob.Container) (AccessToken, error) {
	req := Request{
		Container:   container,
		Permissions: AllPermissions,
		Expiry:      i.Now().Add(i.Expiry),
	}

	res, err := i.Runner.Run(ctx, command.Command{
		Program: i.Tool,
		Args:    req.Args(),
		Capture: true,
	})
	if err != nil {
		reason := err.Error()
		var exitErr *command.ExitError
		if errors.As(err, &exitErr) && strings.TrimSpace(exitErr.Stderr) != "" {
			reason = strings.TrimSpace(exitErr.Stderr)
		}
		return AccessToken{}, &Error{Container: container, Reason: reason, Err: err}
	}

	value := strings.Trim(strings.TrimSpace(res.Stdout), `"`)
	if value == "" {
		return AccessToken{}, &Error{Container: container, Reason: "empty token"}
	}

	return AccessToken{
		Value:     strings.TrimPrefix(value, "?"),
		Container: container,
		Expiry:    req.Expiry,
	}, nil
}

// Placeholder stands in for a real issuer when nothing will be run, so a dry run
// shows where a token would go without asking the CLI for one.
type Placeholder struct{}

// PlaceholderValue is the token text Placeholder hands out.
const PlaceholderValue = "<SAS>"

// Issue returns a token whose value is PlaceholderValue.
func (Placeholder) Issue(ctx context.Context, container blob.Container) (AccessToken, error) {
	return AccessToken{Value: PlaceholderValue, Container: container}, nil
}
