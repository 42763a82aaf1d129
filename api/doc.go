/*
Package api defines the wire contract of the device attestation service: the
request/response DTOs, the per-request authentication headers, the fixed set
of external error codes with their HTTP statuses, and the JSON error envelope.

The error code set is deliberately small and stable. Trust- and state-class
failures never reveal which internal check failed; only validation errors may
name the offending field.
*/
package api
