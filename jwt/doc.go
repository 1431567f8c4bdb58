// Package jwt manages signed-token issuance and verification using an externally
// supplied HS256 secret and strict validation semantics suitable for low-latency
// authentication paths.
package jwt
