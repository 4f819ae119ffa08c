package credential

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// Token is a resolved access token and where it came from.
type Token struct {
	Value string
	// Source is "env:<VAR>" or the name of the store it was read from.
	Source string
}

// Resolver finds the GitHub token: the environment variable first, then
// the store.
type Resolver struct {
	EnvVar string
	Store  Store
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// Token returns the first non-empty token. When none is found the error
// matches errors.ErrAuthInvalid.
func (r *Resolver) Token(ctx context.Context) (Token, error) {
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if r.EnvVar != "" {
		if v := strings.TrimSpace(getenv(r.EnvVar)); v != "" {
			return Token{Value: v, Source: "env:" + r.EnvVar}, nil
		}
	}

	if r.Store != nil {
		v, err := r.Store.Get(TokenKey)
		switch {
		case err == nil && strings.TrimSpace(v) != "":
			return Token{Value: strings.TrimSpace(v), Source: r.Store.Name()}, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return Token{}, err
		}
	}

	hint := "run `subforge auth set`"
	if r.EnvVar != "" {
		hint = fmt.Sprintf("set $%s or %s", r.EnvVar, hint)
	}
	return Token{}, errors.NewRemoteError("no GitHub token found: "+hint, errors.ErrAuthInvalid)
}

// Save stores token after trimming surrounding whitespace.
func Save(store Store, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%w: empty token", errors.ErrInvalidInput)
	}
	return store.Set(TokenKey, token)
}

// Clear removes the stored token.
func Clear(store Store) error {
	return store.Delete(TokenKey)
}
