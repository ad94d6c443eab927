// Package xlogin implements the external-login federation flow:
// launching the OAuth2 authorization-code webflow against a configured
// provider, validating the callback, resolving the external identity
// to a local account (with guest fallback under a strict acceptability
// policy), and importing the resolved identity into the local session.
//
// The flow spans multiple HTTP requests; all cross-request state lives
// in the injected webflow.Store. The anti-CSRF state token is single
// use: it is cleared on first comparison, so a replayed callback fails
// regardless of the comparison's outcome.
package xlogin
