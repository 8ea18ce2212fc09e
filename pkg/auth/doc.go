// Package auth implements API token generation and validation.
//
// Tokens are opaque bearer credentials of the form gh_<base64url random>.
// The plaintext token is returned to the caller exactly once; only its
// SHA256 hash is ever persisted, and lookups happen by hash.
package auth
