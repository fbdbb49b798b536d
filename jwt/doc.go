// Package jwt verifies signed bearer tokens so the Guard can reject forged or
// expired tokens before any cache or store lookup.
//
// HS256 tokens share a secret with the issuer. Ed25519 tokens are verified
// with the issuer's public key only; a private key is accepted so tests and
// seeding tools can mint tokens.
package jwt
