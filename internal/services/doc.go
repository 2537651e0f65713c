// Package services implements the remote side of the sync pipeline.
//
// [Authenticator] obtains an authenticated Bandcamp session from persisted
// browser cookies, and [Collection] enumerates and downloads the purchases
// that session can see. Both are narrow interfaces so the task engine and the
// CLI never depend on HTTP or cookie-handling details, and tests can
// substitute in-memory fakes.
//
// All HTTP traffic flows through [Client], which layers transient-failure
// retries and request-rate limiting over net/http.
package services
