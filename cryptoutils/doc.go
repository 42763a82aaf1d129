/*
Package cryptoutils provides the cryptographic primitives used by device
attestation and per-request assertion verification: SHA-256 hashing, CSPRNG
byte generation, constant-time comparison, ECDSA P-256 signature verification,
and DER/PEM handling for device public keys and vendor certificate chains.

Everything here is deliberately restricted to the single algorithm suite the
vendor hardware produces (ECDSA over P-256 with SHA-256). Keys on any other
curve or of any other type are rejected at parse time.
*/
package cryptoutils
