package blob

import (
	"fmt"
	"net/url"
	"strings"
)

// EndpointSuffix is the public-cloud blob service host suffix.
const EndpointSuffix = "blob.core.windows.net"

// redactedToken replaces the query string of a signed URL wherever it is printed.
const redactedToken = "<SAS>"

// Container identifies an Azure Blob Storage container by its account.
type Container struct {
	// Account is the storage account name.
	Account string

	// Name is the container name within the account.
	Name string
}

// BaseURL returns the container root URL, always ending in a slash:
// https://{account}.blob.core.windows.net/{container}/
func (c Container) BaseURL() string {
	return fmt.Sprintf("https://%s.%s/%s/", c.Account, EndpointSuffix, c.Name)
}

// URL addresses a blob, or a virtual directory of blobs, inside a container.
type URL struct {
	Container Container

	// Path is the blob name relative to the container root, using forward slashes.
	// Empty means the container root itself.
	Path string

	// Token is an optional SAS query string, without the leading '?'.
	Token string
}

// String renders the URL exactly as handed to the copy tool. The path is appended
// verbatim to the container base URL.
func (u URL) String() string {
	s := u.Container.BaseURL() + u.Path
	if u.Token != "" {
		s += "?" + u.Token
	}
	return s
}

// Redacted renders the URL with any token replaced by a placeholder.
func (u URL) Redacted() string {
	if u.Token == "" {
		return u.String()
	}
	return u.Container.BaseURL() + u.Path + "?" + redactedToken
}

// IsURL reports whether s looks like an http(s) URL rather than a local path.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

// Redact strips the query string from s when s is a URL, so tokens never reach logs
// or progress output. Local paths are returned unchanged.
func Redact(s string) string {
	if !IsURL(s) {
		return s
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		return s[:i] + "?" + redactedToken
	}
	return s
}

// RedactAll applies Redact to every element of args.
func RedactAll(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = Redact(a)
	}
	return out
}

// ParseURL splits a blob URL of the form produced by URL.String back into its parts.
func ParseURL(raw string) (URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URL{}, fmt.Errorf("invalid blob url: %w", err)
	}
	if u.Scheme != "https" {
		return URL{}, fmt.Errorf("invalid blob url %q: scheme must be https", Redact(raw))
	}

	account, ok := strings.CutSuffix(u.Host, "."+EndpointSuffix)
	if !ok || account == "" {
		return URL{}, fmt.Errorf("invalid blob url %q: host is not a blob endpoint", Redact(raw))
	}

	rest := strings.TrimPrefix(u.Path, "/")
	container, path, _ := strings.Cut(rest, "/")
	if container == "" {
		return URL{}, fmt.Errorf("invalid blob url %q: missing container", Redact(raw))
	}

	return URL{
		Container: Container{Account: account, Name: container},
		Path:      path,
		Token:     u.RawQuery,
	}, nil
}
