package transfer

import (
	"context"

	"github.com/asad/usmo/internal/blob"
	"github.com/asad/usmo/internal/credential"
	"github.com/asad/usmo/internal/mount"
)

// Translator turns classified paths into what the copy tools take: local paths stay
// as given, blob-backed paths become container URLs, optionally signed.
type Translator struct {
	issuer credential.Issuer
	useSAS bool

	// tokens holds one token per container for the lifetime of this translator,
	// which is a single invocation.
	tokens map[blob.Container]credential.AccessToken
}

// NewTranslator creates a translator. issuer may be nil when useSAS is false.
func NewTranslator(issuer credential.Issuer, useSAS bool) *Translator {
	return &Translator{
		issuer: issuer,
		useSAS: useSAS,
		tokens: make(map[blob.Container]credential.AccessToken),
	}
}

// URL returns the blob URL for a blob-backed path. ok is false for a local path.
func (t *Translator) URL(ctx context.Context, c mount.ClassifiedPath) (blob.URL, bool, error) {
	if !c.IsBlobBacked() {
		return blob.URL{}, false, nil
	}

	rel, _ := c.Mount.Relative(c.Path)
	u := blob.URL{Container: c.Mount.Container(), Path: rel}

	if t.useSAS {
		token, err := t.token(ctx, u.Container)
		if err != nil {
			return blob.URL{}, true, err
		}
		u.Token = token.Value
	}
	return u, true, nil
}

// Target returns the string to hand a copy tool for c.
func (t *Translator) Target(ctx context.Context, c mount.ClassifiedPath) (string, error) {
	u, ok, err := t.URL(ctx, c)
	if err != nil {
		return "", err
	}
	if !ok {
		return c.Arg, nil
	}
	return u.String(), nil
}

func (t *Translator) token(ctx context.Context, c blob.Container) (credential.AccessToken, error) {
	if token, ok := t.tokens[c]; ok {
		return token, nil
	}
	if t.issuer == nil {
		return credential.AccessToken{}, &credential.Error{Container: c, Reason: "no credential issuer configured"}
	}
	token, err := t.issuer.Issue(ctx, c)
	if err != nil {
		return credential.AccessToken{}, err
	}
	t.tokens[c] = token
	return token, nil
}
