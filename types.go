package authgate

import "context"

// Role is one of the two static roles recognized by the service.
type Role string

const (
	// RoleOneman is the default member role.
	RoleOneman Role = "ONEMAN"
	// RoleAdmin is the operator role.
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	return r == RoleOneman || r == RoleAdmin
}

// Identity is the authenticated caller attached to a request after the
// filter accepts its access token.
type Identity struct {
	Email string
	Role  Role
}

// TokenPair is the result of a successful login. The surrounding transport
// delivers both values to the caller via the configured response headers.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AccountRecord is a member record as stored by the persistence
// collaborator. The engine reads it on login and never mutates it.
type AccountRecord struct {
	Email        string
	PasswordHash string
	Role         Role
}

// CreateAccountInput is the input for AccountProvider.Create.
type CreateAccountInput struct {
	Email        string
	PasswordHash string
	Role         Role
}

// AccountProvider is the port to member persistence. Implementations must
// enforce email uniqueness at the storage level: Create for a taken email
// returns ErrDuplicateAccount even when two writers race, and GetByEmail
// for an unknown email returns ErrAccountNotFound.
type AccountProvider interface {
	GetByEmail(ctx context.Context, email string) (AccountRecord, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
}
