package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

var (
	// ErrNotP256 is returned when a parsed key is not ECDSA over P-256.
	ErrNotP256 = errors.New("public key is not ECDSA P-256")
)

// VerifyP256 reports whether sig is a valid ASN.1 DER encoded ECDSA signature
// of digest under pub.
func VerifyP256(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	return ecdsa.VerifyASN1(pub, digest, sig)
}

// MarshalPublicKey encodes an ECDSA P-256 public key as PKIX DER for storage.
func MarshalPublicKey(pub *ecdsa.PublicKey) ([]byte, error) {
	if pub.Curve != elliptic.P256() {
		return nil, ErrNotP256
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return der, nil
}

// ParseP256PublicKey decodes a PKIX DER public key and requires it to be
// ECDSA over P-256.
func ParseP256PublicKey(der []byte) (*ecdsa.PublicKey, error) {
	keyIfc, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := keyIfc.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return nil, ErrNotP256
	}
	return pub, nil
}

// UncompressedPoint returns the 65-byte uncompressed SEC1 encoding
// (0x04 | X | Y) of a P-256 public key. The vendor defines the key
// identifier as the SHA-256 of this encoding.
func UncompressedPoint(pub *ecdsa.PublicKey) []byte {
	pt := make([]byte, 65)
	pt[0] = 0x04
	pub.X.FillBytes(pt[1:33])
	pub.Y.FillBytes(pt[33:])
	return pt
}

// EncodeCertChainPEM serializes a certificate chain, leaf first, as
// concatenated PEM blocks.
func EncodeCertChainPEM(certs []*x509.Certificate) []byte {
	var out []byte
	for _, cert := range certs {
		out = append(out, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})...)
	}
	return out
}
