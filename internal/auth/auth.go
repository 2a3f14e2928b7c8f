package auth

import (
	"context"

	"github.com/yssalam/mini-quiz-app/internal/errors"
)

// Verifier resolves a bearer token to a principal. Token issuance and
// validation belong to the external identity provider; the service only
// consumes the resolution.
type Verifier interface {
	Verify(ctx context.Context, token string) (principal string, err error)
}

// StaticVerifier resolves tokens from a fixed token-to-principal table,
// typically loaded from configuration. It stands in for the real identity
// provider in local and mock deployments.
type StaticVerifier struct {
	tokens map[string]string
}

func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	if p, ok := v.tokens[token]; ok {
		return p, nil
	}

	return "", errors.New(errors.CodeUnauthenticated,
		errors.WithMessagef("invalid token"))
}
