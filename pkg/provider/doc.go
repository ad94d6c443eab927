// Package provider manages external login provider configuration and
// the OAuth2 client capability of each provider (authorization URL,
// code exchange, resource-owner profile fetch).
//
// Provider configs are persisted as one options document with client
// secrets encrypted at rest; the registry decrypts on read and
// sanitizes admin input on write against an explicit field allow-list.
// Login types map to provider implementations through a factory
// registry, so additional providers plug in without changes to the
// login flow.
//
// Identity claims come from the provider's userinfo endpoint; OIDC
// ID-token validation is not performed.
package provider
