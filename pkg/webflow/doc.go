// Package webflow externalizes the state of a multi-request login
// flow: the anti-CSRF state token, the pending redirect target, the
// post-authentication identity payload, and any deferred error for the
// login surface. State lives outside the process (by default in a
// signed browser session cookie) because consecutive flow steps may be
// served by different processes.
package webflow
