// Package auth provides request authenticators for hammx sessions.
//
// Supported schemes:
//   - Basic and Bearer credentials
//   - API keys sent as a header or a query parameter
//   - AWS Signature Version 4
//   - Digest challenge/response helpers (see middleware.DigestAuth)
//   - OAuth2 tokens (see the oauth2 subpackage)
package auth
