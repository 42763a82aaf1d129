/*
Package attest decodes and verifies vendor hardware attestations and
per-request assertions.

An attestation is a one-time, CBOR-encoded container produced by the platform
vendor at device registration. It carries a certificate chain rooted in the
vendor's attestation root CA, a receipt, and an authenticator-data blob that
embeds the device's hardware-backed P-256 public key and its initial signature
counter. Verify runs the full validation pipeline: container decode,
authenticator-data parse, chain verification against the build-time pinned
root, challenge (nonce) binding, app identity binding, key extraction and
initial counter check.

An assertion is the lightweight per-request counterpart: a CBOR pair of
authenticator data (37-byte fixed prefix) and an ECDSA signature over the
authenticator data bound to a hash of the client request.

All parse failures collapse into ErrMalformedAttestation so partial or garbage
state never leaks past the decoder; verification failures carry the failing
stage for internal logging only.
*/
package attest
