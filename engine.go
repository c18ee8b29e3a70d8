package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pressops/authgate/keys"
	"github.com/pressops/authgate/password"
	"github.com/pressops/authgate/provision"
	"github.com/pressops/authgate/session"
	"github.com/pressops/authgate/token"
)

// Engine orchestrates the token lifecycle: signup, login with supersession,
// request-time validation, and logout. It is immutable after Build and safe
// for concurrent use; the session store is the only synchronization point
// between concurrent logins for the same account.
type Engine struct {
	config      Config
	codec       *token.Codec
	deriver     keys.Deriver
	store       *session.Store
	accounts    AccountProvider
	hasher      *password.Hasher
	provisioner *provision.Client
	metrics     *Metrics
	log         zerolog.Logger
}

// Headers reports the configured token header names.
func (e *Engine) Headers() HeaderConfig {
	return e.config.Headers
}

// Signup registers a new member. The duplicate pre-check is a fast path
// only; the provider's storage-level uniqueness constraint is what actually
// guards concurrent signups for the same email.
func (e *Engine) Signup(ctx context.Context, email, plaintext string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	exists, err := e.accounts.ExistsByEmail(ctx, email)
	if err != nil {
		e.metrics.signup("error")
		return err
	}
	if exists {
		e.metrics.signup("duplicate")
		return ErrDuplicateAccount
	}

	hash, err := e.hasher.Hash(plaintext)
	if err != nil {
		e.metrics.signup("error")
		return err
	}

	if e.provisioner != nil {
		if err := e.provisioner.ConfirmMemberCount(ctx); err != nil {
			e.metrics.signup("provisioning_failed")
			e.log.Warn().Err(err).Str("email", email).Msg("signup provisioning rejected")
			if errors.Is(err, provision.ErrFailed) {
				return ErrProvisioningFailed
			}
			return fmt.Errorf("%w: %v", ErrProvisioningFailed, err)
		}
	}

	if _, err := e.accounts.Create(ctx, CreateAccountInput{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleOneman,
	}); err != nil {
		if errors.Is(err, ErrDuplicateAccount) {
			e.metrics.signup("duplicate")
		} else {
			e.metrics.signup("error")
		}
		return err
	}

	e.metrics.signup("success")
	e.log.Info().Str("email", email).Msg("member signed up")
	return nil
}

// Login verifies the credential and issues a fresh token pair, atomically
// superseding any session the account already held. The prior pair's
// validity markers are gone by the time Login returns, regardless of their
// remaining natural lifetime.
func (e *Engine) Login(ctx context.Context, email, plaintext string) (TokenPair, error) {
	if e == nil || e.accounts == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	account, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metrics.login("not_found")
		} else {
			e.metrics.login("error")
		}
		return TokenPair{}, err
	}

	ok, err := e.hasher.Verify(plaintext, account.PasswordHash)
	if err != nil || !ok {
		e.metrics.login("mismatch")
		return TokenPair{}, ErrCredentialMismatch
	}

	access, err := e.codec.Issue(token.Access, account.Email, string(account.Role))
	if err != nil {
		e.metrics.login("error")
		return TokenPair{}, err
	}
	refresh, err := e.codec.Issue(token.Refresh, account.Email, string(account.Role))
	if err != nil {
		e.metrics.login("error")
		return TokenPair{}, err
	}

	accountKey := e.deriver.Derive(keys.KindEmail, account.Email)
	rec := session.Record{
		AccessKey:  e.deriver.Derive(keys.KindAccess, access),
		RefreshKey: e.deriver.Derive(keys.KindRefresh, refresh),
	}

	err = e.store.Supersede(ctx, accountKey, rec,
		e.codec.Lifetime(token.Access), e.codec.Lifetime(token.Refresh))
	if err != nil {
		// No fallback to "trust the token alone": an unreachable store
		// would make revocation unenforceable.
		e.metrics.login("store_unavailable")
		e.log.Error().Err(err).Str("email", email).Msg("login session write failed")
		return TokenPair{}, err
	}

	e.metrics.login("success")
	e.log.Info().Str("email", email).Msg("member logged in")
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout evicts the session record and both validity markers for the
// presented token pair. It is idempotent: logging out an already-ended
// session succeeds.
func (e *Engine) Logout(ctx context.Context, email, accessToken, refreshToken string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	err := e.store.Evict(ctx,
		e.deriver.Derive(keys.KindEmail, email),
		e.deriver.Derive(keys.KindAccess, accessToken),
		e.deriver.Derive(keys.KindRefresh, refreshToken),
	)
	if err != nil {
		e.log.Error().Err(err).Str("email", email).Msg("logout eviction failed")
		return err
	}

	e.metrics.logout()
	e.log.Info().Str("email", email).Msg("member logged out")
	return nil
}

// Validate checks a presented token of the given kind: signature and
// embedded expiry via the codec, then store-side liveness via the validity
// marker. Both signals must agree for the token to be accepted. A store
// failure surfaces as ErrStoreUnavailable, never as acceptance.
func (e *Engine) Validate(ctx context.Context, raw string, kind token.Kind) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	claims, err := e.codec.Verify(raw, kind)
	if err != nil {
		e.metrics.tokenRejected()
		return Identity{}, ErrTokenInvalid
	}

	markerKind := keys.KindAccess
	if kind == token.Refresh {
		markerKind = keys.KindRefresh
	}

	alive, err := e.store.MarkerAlive(ctx, e.deriver.Derive(markerKind, raw))
	if err != nil {
		return Identity{}, err
	}
	if !alive {
		e.metrics.tokenRejected()
		return Identity{}, ErrTokenInvalid
	}

	role := Role(claims.Role)
	if !role.Valid() {
		e.metrics.tokenRejected()
		return Identity{}, ErrTokenInvalid
	}

	return Identity{Email: claims.Subject, Role: role}, nil
}
