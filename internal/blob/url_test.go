package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainer_BaseURL(t *testing.T) {
	c := Container{Account: "acct", Name: "cnt"}
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/", c.BaseURL())
}

func TestURL_String(t *testing.T) {
	u := URL{Container: Container{Account: "acct", Name: "cnt"}, Path: "dir/file.txt"}
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/dir/file.txt", u.String())

	u.Token = "sv=2022-11-02&sig=abc"
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/dir/file.txt?sv=2022-11-02&sig=abc", u.String())
	assert.Equal(t, "https://acct.blob.core.windows.net/cnt/dir/file.txt?<SAS>", u.Redacted())
	assert.NotContains(t, u.Redacted(), "sig=abc")
}

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/home/u/file?.txt", "/home/u/file?.txt"},
		{"https://acct.blob.core.windows.net/cnt/a", "https://acct.blob.core.windows.net/cnt/a"},
		{"https://acct.blob.core.windows.net/cnt/a?sig=secret", "https://acct.blob.core.windows.net/cnt/a?<SAS>"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Redact(tt.in))
	}

	args := RedactAll([]string{"copy", "https://a.blob.core.windows.net/c/x?sig=1", "/tmp"})
	assert.Equal(t, []string{"copy", "https://a.blob.core.windows.net/c/x?<SAS>", "/tmp"}, args)
}

func TestParseURL_RoundTrip(t *testing.T) {
	urls := []URL{
		{Container: Container{Account: "acct", Name: "cnt"}},
		{Container: Container{Account: "acct", Name: "cnt"}, Path: "file.txt"},
		{Container: Container{Account: "a1", Name: "data"}, Path: "x/y/z.bin", Token: "sv=1&sig=2"},
	}
	for _, want := range urls {
		got, err := ParseURL(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseURL_Invalid(t *testing.T) {
	for _, raw := range []string{
		"http://acct.blob.core.windows.net/cnt/x",
		"https://example.com/cnt/x",
		"https://acct.blob.core.windows.net/",
		"/local/path",
	} {
		_, err := ParseURL(raw)
		assert.Error(t, err, raw)
	}
}
