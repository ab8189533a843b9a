package transfer

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/asad/usmo/internal/blob"
	"github.com/asad/usmo/internal/command"
	"github.com/asad/usmo/internal/credential"
	"github.com/asad/usmo/internal/logging"
	"github.com/asad/usmo/internal/mount"
)

// fakeRunner records every command and fails the ones whose first source argument
// is listed in fail.
type fakeRunner struct {
	commands []command.Command
	fail     map[string]int
}

func (f *fakeRunner) Run(ctx context.Context, cmd command.Command) (*command.Result, error) {
	f.commands = append(f.commands, cmd)
	for _, arg := range cmd.Args {
		if code, ok := f.fail[arg]; ok {
			return &command.Result{ExitCode: code}, &command.ExitError{Program: cmd.Program, ExitCode: code}
		}
	}
	return &command.Result{}, nil
}

// fakeEnv records Setenv calls.
type fakeEnv struct {
	set map[string]string
	n   int
	err error
}

func (f *fakeEnv) Setenv(key, value string) error {
	f.n++
	if f.err != nil {
		return f.err
	}
	if f.set == nil {
		f.set = make(map[string]string)
	}
	f.set[key] = value
	return nil
}

// fakeIssuer hands out "sig=<container>" or fails.
type fakeIssuer struct {
	calls int
	err   error
}

func (f *fakeIssuer) Issue(ctx context.Context, c blob.Container) (credential.AccessToken, error) {
	f.calls++
	if f.err != nil {
		return credential.AccessToken{}, f.err
	}
	return credential.AccessToken{Value: "sig=" + c.Name, Container: c}, nil
}

var dataMount = mount.NewMountRecord("/mnt/data", "acct", "cnt")

func local(arg string) mount.ClassifiedPath {
	return mount.ClassifiedPath{Arg: arg, Path: arg}
}

func onMount(arg string) mount.ClassifiedPath {
	m := dataMount
	return mount.ClassifiedPath{Arg: arg, Path: arg, Mount: &m}
}

func newRouter(runner command.Runner, env Environment) (*Router, *bytes.Buffer) {
	var out bytes.Buffer
	return &Router{
		Runner:    runner,
		Env:       env,
		LocalTool: "cp",
		CloudTool: "azcopy",
		Out:       &out,
		Logger:    logging.NewNop(),
		Propagate: true,
	}, &out
}

func TestTranslator_Target(t *testing.T) {
	tr := NewTranslator(nil, false)
	ctx := context.Background()

	got, err := tr.Target(ctx, local("relative/dir/"))
	require.NoError(t, err)
	assert.Equal(t, "relative/dir/", got)

	got, err = tr.Target(ctx, onMount("/mnt/data/dir/file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/dir/file.txt", got)

	got, err = tr.Target(ctx, onMount("/mnt/data"))
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/", got)
}

func TestTranslator_SignedURL(t *testing.T) {
	issuer := &fakeIssuer{}
	tr := NewTranslator(issuer, true)
	ctx := context.Background()

	got, err := tr.Target(ctx, onMount("/mnt/data/file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/file.txt?sig=cnt", got)
	assert.True(t, strings.HasSuffix(got, "?sig=cnt"))

	_, err = tr.Target(ctx, onMount("/mnt/data/other.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, issuer.calls, "one token per container per invocation")

	got, err = tr.Target(ctx, local("/home/u/out"))
	require.NoError(t, err)
	assert.Equal(t, "/home/u/out", got)
	assert.Equal(t, 1, issuer.calls)
}

func TestTranslator_IssuerFailure(t *testing.T) {
	credErr := &credential.Error{Container: dataMount.Container(), Reason: "not logged in"}
	tr := NewTranslator(&fakeIssuer{err: credErr}, true)

	_, err := tr.Target(context.Background(), onMount("/mnt/data/file.txt"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, credErr))
}

func TestBuild_LocalPassthrough(t *testing.T) {
	issuer := &fakeIssuer{}
	plan, err := Build(context.Background(), NewTranslator(issuer, true),
		[]mount.ClassifiedPath{local("/home/u/a.txt")}, local("/home/u/b"))
	require.NoError(t, err)

	assert.Equal(t, LocalPassthrough, plan.Kind)
	assert.Equal(t, []string{"/home/u/a.txt", "/home/u/b"}, plan.Args)
	assert.Empty(t, plan.Actions)
	assert.Zero(t, issuer.calls)
}

func TestBuild_BulkCloudCopy(t *testing.T) {
	plan, err := Build(context.Background(), NewTranslator(nil, false),
		[]mount.ClassifiedPath{local("/home/u/a.txt"), onMount("/mnt/data/in/b.txt")},
		onMount("/mnt/data/out"))
	require.NoError(t, err)

	assert.Equal(t, BulkCloudCopy, plan.Kind)
	assert.Equal(t, []Action{
		{Kind: CloudCopy, Source: "/home/u/a.txt", Destination: "https://acct.blob.core.windows.net/cnt/out"},
		{Kind: CloudCopy, Source: "https://acct.blob.core.windows.net/cnt/in/b.txt", Destination: "https://acct.blob.core.windows.net/cnt/out"},
	}, plan.Actions)
}

func TestBuild_MixedDispatch(t *testing.T) {
	plan, err := Build(context.Background(), NewTranslator(nil, false),
		[]mount.ClassifiedPath{local("/home/u/a"), onMount("/mnt/data/file.txt"), local("/home/u/c")},
		local("/home/u/out"))
	require.NoError(t, err)

	assert.Equal(t, MixedDispatch, plan.Kind)
	assert.Equal(t, 1, plan.CloudActions())
	assert.Equal(t, []Action{
		{Kind: LocalCopy, Source: "/home/u/a", Destination: "/home/u/out"},
		{Kind: CloudCopy, Source: "https://acct.blob.core.windows.net/cnt/file.txt", Destination: "/home/u/out"},
		{Kind: LocalCopy, Source: "/home/u/c", Destination: "/home/u/out"},
	}, plan.Actions)
}

func TestBuild_CredentialFailureBuildsNothing(t *testing.T) {
	tr := NewTranslator(&fakeIssuer{err: &credential.Error{Reason: "denied"}}, true)

	plan, err := Build(context.Background(), tr,
		[]mount.ClassifiedPath{local("/home/u/a")}, onMount("/mnt/data/out"))
	require.Error(t, err)
	assert.Nil(t, plan)
}

func TestRouter_Passthrough(t *testing.T) {
	runner := &fakeRunner{}
	env := &fakeEnv{}
	r, out := newRouter(runner, env)

	err := r.Execute(context.Background(), &Plan{Kind: LocalPassthrough, Args: []string{"a", "b", "dir"}})
	require.NoError(t, err)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"cp", "-r", "a", "b", "dir"}, runner.commands[0].Argv())
	assert.Zero(t, env.n, "no cloud copy, no auth setup")
	assert.Contains(t, out.String(), "Copying locally with cp")
}

func TestRouter_BulkStopsAtFirstFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]int{"/home/u/a": 7}}
	env := &fakeEnv{}
	r, _ := newRouter(runner, env)
	dest := "https://acct.blob.core.windows.net/cnt/out?sig=secret"

	err := r.Execute(context.Background(), &Plan{Kind: BulkCloudCopy, Actions: []Action{
		{Kind: CloudCopy, Source: "/home/u/a", Destination: dest},
		{Kind: CloudCopy, Source: "/home/u/b", Destination: dest},
	}})
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, 7, execErr.ExitCode())
	assert.NotContains(t, err.Error(), "secret")

	require.Len(t, runner.commands, 1)
	assert.Equal(t, []string{"azcopy", "copy", "/home/u/a", dest, "--recursive"}, runner.commands[0].Argv())
	assert.Equal(t, map[string]string{AutoLoginEnv: AutoLoginAzCLI}, env.set)
}

func TestRouter_MixedContinuesPastFailures(t *testing.T) {
	src := "https://acct.blob.core.windows.net/cnt/file.txt"
	runner := &fakeRunner{fail: map[string]int{"/home/u/a": 1, src: 2}}
	env := &fakeEnv{}
	r, out := newRouter(runner, env)

	err := r.Execute(context.Background(), &Plan{Kind: MixedDispatch, Actions: []Action{
		{Kind: LocalCopy, Source: "/home/u/a", Destination: "/home/u/out"},
		{Kind: CloudCopy, Source: src, Destination: "/home/u/out"},
		{Kind: CloudCopy, Source: src + "2", Destination: "/home/u/out"},
		{Kind: LocalCopy, Source: "/home/u/c", Destination: "/home/u/out"},
	}})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)

	require.Len(t, runner.commands, 4)
	assert.Equal(t, []string{"cp", "-r", "/home/u/a", "/home/u/out"}, runner.commands[0].Argv())
	assert.Equal(t, []string{"azcopy", "copy", src, "/home/u/out", "--recursive"}, runner.commands[1].Argv())
	assert.Equal(t, []string{"cp", "-r", "/home/u/c", "/home/u/out"}, runner.commands[3].Argv())
	assert.Equal(t, 1, env.n, "auth is configured once per invocation")
	assert.Equal(t, 4, strings.Count(out.String(), "\n"))
}

func TestRouter_NoPropagate(t *testing.T) {
	runner := &fakeRunner{fail: map[string]int{"a": 3}}
	r, _ := newRouter(runner, &fakeEnv{})
	r.Propagate = false

	err := r.Execute(context.Background(), &Plan{Kind: LocalPassthrough, Args: []string{"a", "b"}})
	assert.NoError(t, err)
}

func TestRouter_EnvFailureAbortsBeforeCopy(t *testing.T) {
	runner := &fakeRunner{}
	r, _ := newRouter(runner, &fakeEnv{err: errors.New("read-only env")})
	r.Propagate = false

	err := r.Execute(context.Background(), &Plan{Kind: BulkCloudCopy, Actions: []Action{
		{Kind: CloudCopy, Source: "/a", Destination: "https://acct.blob.core.windows.net/cnt/"},
	}})
	require.Error(t, err)
	assert.Empty(t, runner.commands)
}

func TestRouter_DryRun(t *testing.T) {
	runner := &fakeRunner{}
	env := &fakeEnv{}
	r, out := newRouter(runner, env)
	r.DryRun = true

	err := r.Execute(context.Background(), &Plan{Kind: BulkCloudCopy, Actions: []Action{
		{Kind: CloudCopy, Source: "/a", Destination: "https://acct.blob.core.windows.net/cnt/x?sig=secret"},
	}})
	require.NoError(t, err)
	assert.Empty(t, runner.commands)
	assert.Zero(t, env.n)
	assert.Contains(t, out.String(), "azcopy copy /a https://acct.blob.core.windows.net/cnt/x?<SAS> --recursive")
	assert.NotContains(t, out.String(), "secret")
}
