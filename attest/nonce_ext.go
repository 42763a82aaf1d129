package attest

import (
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// OIDNonce identifies the vendor's leaf-certificate extension carrying the
// attestation nonce: SEQUENCE { [1] OCTET STRING }.
var OIDNonce = asn1.ObjectIdentifier{1, 2, 840, 113635, 100, 8, 2}

// nonceFromCertificate extracts the 32-byte nonce from the leaf certificate's
// vendor extension.
func nonceFromCertificate(leaf *x509.Certificate) ([]byte, error) {
	for _, ext := range leaf.Extensions {
		if !ext.Id.Equal(OIDNonce) {
			continue
		}

		var (
			der     = cryptobyte.String(ext.Value)
			seq     cryptobyte.String
			wrapper cryptobyte.String
			nonce   cryptobyte.String
		)
		if !der.ReadASN1(&seq, cryptobyte_asn1.SEQUENCE) {
			return nil, fmt.Errorf("%w: nonce extension is not a sequence", ErrMalformedAttestation)
		}
		tag := cryptobyte_asn1.Tag(1).Constructed().ContextSpecific()
		if !seq.ReadASN1(&wrapper, tag) {
			return nil, fmt.Errorf("%w: nonce extension missing [1] wrapper", ErrMalformedAttestation)
		}
		if !wrapper.ReadASN1(&nonce, cryptobyte_asn1.OCTET_STRING) {
			return nil, fmt.Errorf("%w: nonce extension missing octet string", ErrMalformedAttestation)
		}
		if len(nonce) != 32 {
			return nil, fmt.Errorf("%w: nonce length %d", ErrMalformedAttestation, len(nonce))
		}
		return []byte(nonce), nil
	}
	return nil, fmt.Errorf("%w: nonce extension not present", ErrMalformedAttestation)
}
