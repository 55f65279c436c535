package token

import (
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cipulse/cipulse-api/internal/models"
	"github.com/cipulse/cipulse-api/internal/repository"
	"github.com/cipulse/cipulse-api/internal/utils"
)

// ErrTokenConfig is returned when a build carries both or neither of a saved
// token reference and an inline token. Callers validate this before any I/O;
// the resolver checks it again before touching the store.
var ErrTokenConfig = errors.New("exactly one of saved_token_id or inline_token must be set")

// Decryptor opens an encrypted token ciphertext. Decryption failures signal
// an integrity problem and propagate to the caller unchanged.
type Decryptor func(ciphertext []byte) (string, error)

type Resolver struct {
	tokens  repository.TokenRepository
	decrypt Decryptor
	logger  zerolog.Logger
}

func NewResolver(tokens repository.TokenRepository, logger zerolog.Logger) *Resolver {
	return &Resolver{
		tokens:  tokens,
		decrypt: utils.DecryptToken,
		logger:  logger.With().Str("component", "token_resolver").Logger(),
	}
}

// NewResolverWithDecryptor injects a custom decryptor, used by tests.
func NewResolverWithDecryptor(tokens repository.TokenRepository, decrypt Decryptor, logger zerolog.Logger) *Resolver {
	r := NewResolver(tokens, logger)
	r.decrypt = decrypt
	return r
}

// Resolve returns the plaintext GitHub token for a build. The saved-token
// path records last-used time asynchronously; a failure there never fails
// resolution.
func (r *Resolver) Resolve(build models.Build) (string, error) {
	saved := build.SavedTokenID != nil && strings.TrimSpace(*build.SavedTokenID) != ""
	inline := build.InlineToken != nil && strings.TrimSpace(*build.InlineToken) != ""
	if saved == inline {
		return "", ErrTokenConfig
	}

	if inline {
		return *build.InlineToken, nil
	}

	stored, err := r.tokens.GetToken(build.TenantID, *build.SavedTokenID)
	if err != nil {
		return "", err
	}
	plain, err := r.decrypt(stored.Ciphertext)
	if err != nil {
		return "", err
	}

	go func(tenantID, tokenID string) {
		if err := r.tokens.TouchLastUsed(tenantID, tokenID); err != nil {
			r.logger.Warn().Err(err).Str("token_id", tokenID).Msg("failed to record token last-used time")
		}
	}(build.TenantID, *build.SavedTokenID)

	return plain, nil
}
