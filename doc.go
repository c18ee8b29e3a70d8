// Package authgate authenticates users of a content-publishing service with
// a stateless dual-token scheme: a short-lived access token and a
// longer-lived refresh token, both JWTs, backed by a shared key-value store
// that tracks which tokens are currently honored.
//
// Each login issues a fresh token pair and atomically supersedes the
// account's previous session, so at most one pair is ever valid per account.
// Tokens are looked up in the store under derived, fixed-width keys rather
// than raw values, and a token is usable only while both its embedded expiry
// and its store-side validity marker agree.
//
// Construct an Engine with the builder:
//
//	engine, err := authgate.New().
//		WithConfig(cfg).
//		WithRedis(rdb).
//		WithAccounts(provider).
//		Build()
//
// and put middleware.Authenticate in front of protected routes.
package authgate
