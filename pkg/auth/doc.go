// Package auth guards the gateway with a single shared secret.
//
// Authentication uses a chain with three-outcome voting: each
// authenticator returns Yes (credentials valid), No (credentials invalid)
// or Abstain (cannot decide). The chain's default decides when every
// authenticator abstains. The chain runs as HTTP middleware in front of
// the front door mux and stores the admitted identity in the request
// context.
package auth
