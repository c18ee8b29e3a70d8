// Package memory is an in-process AccountProvider for tests and local
// development. Check-and-insert runs under one mutex, so concurrent signups
// for the same email serialize exactly as a storage-level uniqueness
// constraint would.
package memory

import (
	"context"
	"sync"

	authgate "github.com/pressops/authgate"
)

// Provider stores accounts in a map guarded by a RWMutex.
type Provider struct {
	mu       sync.RWMutex
	accounts map[string]authgate.AccountRecord
}

// NewProvider returns an empty Provider.
func NewProvider() *Provider {
	return &Provider{accounts: make(map[string]authgate.AccountRecord)}
}

// GetByEmail returns the account for email or ErrAccountNotFound.
func (p *Provider) GetByEmail(_ context.Context, email string) (authgate.AccountRecord, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	record, ok := p.accounts[email]
	if !ok {
		return authgate.AccountRecord{}, authgate.ErrAccountNotFound
	}
	return record, nil
}

// ExistsByEmail reports whether an account with email exists.
func (p *Provider) ExistsByEmail(_ context.Context, email string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.accounts[email]
	return ok, nil
}

// Create inserts a new account. The existence check and the insert share one
// critical section; a losing concurrent writer gets ErrDuplicateAccount.
func (p *Provider) Create(_ context.Context, input authgate.CreateAccountInput) (authgate.AccountRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.accounts[input.Email]; ok {
		return authgate.AccountRecord{}, authgate.ErrDuplicateAccount
	}

	record := authgate.AccountRecord{
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
	}
	p.accounts[input.Email] = record
	return record, nil
}
