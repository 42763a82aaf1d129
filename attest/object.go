package attest

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Format is the container format tag the vendor emits for hardware key
// attestations.
const Format = "apple-appattest"

// ErrMalformedAttestation is the single variant all container, authenticator
// data and key parse failures collapse into.
var ErrMalformedAttestation = errors.New("malformed attestation")

// Object is the decoded attestation container.
type Object struct {
	Format    string    `cbor:"fmt"`
	Statement Statement `cbor:"attStmt"`

	// AuthData is kept raw: the nonce binding hashes these exact bytes.
	AuthData []byte `cbor:"authData"`
}

// Statement carries the vendor certificate chain (leaf first) and the
// attestation receipt.
type Statement struct {
	X5C     [][]byte `cbor:"x5c"`
	Receipt []byte   `cbor:"receipt"`
}

// DecodeObject parses the CBOR attestation container. Malformed input,
// an unexpected format tag, or a missing chain fail immediately.
func DecodeObject(raw []byte) (*Object, error) {
	var obj Object
	if err := cbor.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: container decode: %v", ErrMalformedAttestation, err)
	}
	if obj.Format != Format {
		return nil, fmt.Errorf("%w: unexpected format %q", ErrMalformedAttestation, obj.Format)
	}
	if len(obj.Statement.X5C) < 2 {
		return nil, fmt.Errorf("%w: certificate chain must contain leaf and intermediate", ErrMalformedAttestation)
	}
	if len(obj.AuthData) == 0 {
		return nil, fmt.Errorf("%w: missing authenticator data", ErrMalformedAttestation)
	}
	return &obj, nil
}
