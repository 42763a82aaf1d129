package attest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
)

// COSE_Key parameter values accepted here. The vendor hardware only ever
// produces EC2 keys on P-256 with ES256; anything else is rejected.
const (
	coseKeyTypeEC2 = 2
	coseCurveP256  = 1
	coseAlgES256   = -7
)

type coseKey struct {
	KeyType   int    `cbor:"1,keyasint"`
	Algorithm int    `cbor:"3,keyasint,omitempty"`
	Curve     int    `cbor:"-1,keyasint"`
	X         []byte `cbor:"-2,keyasint"`
	Y         []byte `cbor:"-3,keyasint"`
}

// decodeCOSEKey parses the embedded COSE public key and returns it as an
// ECDSA P-256 key.
func decodeCOSEKey(raw []byte) (*ecdsa.PublicKey, error) {
	var key coseKey
	if err := cbor.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w: cose key decode: %v", ErrMalformedAttestation, err)
	}

	if key.KeyType != coseKeyTypeEC2 {
		return nil, fmt.Errorf("%w: unsupported key type %d", ErrMalformedAttestation, key.KeyType)
	}
	if key.Curve != coseCurveP256 {
		return nil, fmt.Errorf("%w: unsupported curve %d", ErrMalformedAttestation, key.Curve)
	}
	if key.Algorithm != 0 && key.Algorithm != coseAlgES256 {
		return nil, fmt.Errorf("%w: unsupported algorithm %d", ErrMalformedAttestation, key.Algorithm)
	}
	if len(key.X) != 32 || len(key.Y) != 32 {
		return nil, fmt.Errorf("%w: coordinate length %d/%d", ErrMalformedAttestation, len(key.X), len(key.Y))
	}

	pub := &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(key.X),
		Y:     new(big.Int).SetBytes(key.Y),
	}
	if !pub.Curve.IsOnCurve(pub.X, pub.Y) {
		return nil, fmt.Errorf("%w: point not on curve", ErrMalformedAttestation)
	}
	return pub, nil
}
