// Package session wraps the shared key-value store that tracks which token
// pair is currently honored for each account.
//
// Two entry shapes live in the store. The session record is a field map at
// the derived account key holding the derived keys of the current access and
// refresh tokens; it expires with the refresh token. A validity marker is a
// plain entry at a derived token key whose existence, and nothing else,
// means the token is still honored; it expires with that token's own
// lifetime. Login installs all three entries in one atomic script that also
// revokes the account's prior session, and logout deletes all three.
package session
