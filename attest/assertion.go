package attest

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/LucaDeLeo/realitycam-sub001/cryptoutils"
)

// ErrInvalidSignature means the assertion signature did not verify under the
// device's stored public key.
var ErrInvalidSignature = errors.New("invalid assertion signature")

// Assertion is the decoded per-request assertion: a simplified authenticator
// data blob and an ECDSA signature over it bound to the request hash.
type Assertion struct {
	Signature []byte `cbor:"signature"`
	AuthData  []byte `cbor:"authenticatorData"`
}

// DecodeAssertion parses the CBOR assertion envelope.
func DecodeAssertion(raw []byte) (*Assertion, error) {
	var a Assertion
	if err := cbor.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: assertion decode: %v", ErrMalformedAttestation, err)
	}
	if len(a.Signature) == 0 || len(a.AuthData) == 0 {
		return nil, fmt.Errorf("%w: assertion missing signature or authenticator data", ErrMalformedAttestation)
	}
	return &a, nil
}

// VerifyAssertion checks the assertion against the device's stored public key
// and the expected app identity, and returns the embedded counter. The caller
// enforces counter monotonicity against persisted state.
//
// The signed digest is SHA256(SHA256(authData || clientDataHash)): the
// hardware signs the nonce, and the DER signature verifies over the nonce's
// SHA-256.
func VerifyAssertion(pub *ecdsa.PublicKey, assertion *Assertion, clientDataHash [32]byte, appIDHash [32]byte) (uint32, error) {
	authData, err := ParseAssertionData(assertion.AuthData)
	if err != nil {
		return 0, err
	}

	if !cryptoutils.ConstantTimeEqual(authData.RPIDHash[:], appIDHash[:]) {
		return 0, ErrAppIdentityMismatch
	}

	nonce := cryptoutils.SHA256(assertion.AuthData, clientDataHash[:])
	digest := cryptoutils.SHA256(nonce[:])
	if !cryptoutils.VerifyP256(pub, digest[:], assertion.Signature) {
		return 0, ErrInvalidSignature
	}

	return authData.Counter, nil
}
