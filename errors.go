package authgate

import (
	"errors"

	"github.com/pressops/authgate/session"
	"github.com/pressops/authgate/token"
)

var (
	// ErrDuplicateAccount is returned by Signup when the email is taken.
	ErrDuplicateAccount = errors.New("account already exists")
	// ErrAccountNotFound is returned by Login for an unknown email.
	ErrAccountNotFound = errors.New("account not found")
	// ErrCredentialMismatch is returned by Login for a wrong password.
	ErrCredentialMismatch = errors.New("credential mismatch")
	// ErrProvisioningFailed is returned by Signup when the provisioning
	// collaborator rejects or cannot confirm the new account.
	ErrProvisioningFailed = errors.New("account provisioning failed")
	// ErrRoleInvalid is returned for a role outside the fixed set.
	ErrRoleInvalid = errors.New("invalid account role")
	// ErrEngineNotReady is returned when the engine was not fully built.
	ErrEngineNotReady = errors.New("engine not initialized")

	// ErrTokenInvalid covers every rejected token: bad signature, expiry,
	// malformed structure, kind mismatch, or an evicted validity marker.
	// Callers must not distinguish these cases to clients.
	ErrTokenInvalid = token.ErrInvalid

	// ErrStoreUnavailable signals the session store could not be reached.
	// It is fatal to the current request and never downgraded to
	// ErrTokenInvalid on the issuing paths; validity checks fail closed.
	ErrStoreUnavailable = session.ErrStoreUnavailable
)
