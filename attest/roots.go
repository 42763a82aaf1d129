package attest

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
)

// vendorRootPEM is the Apple App Attestation Root CA, pinned at build time.
// Retrieved from https://www.apple.com/certificateauthority/private/.
const vendorRootPEM = `-----BEGIN CERTIFICATE-----
MIICITCCAaegAwIBAgIQC/O+DvHN0uD7jG5yH2IXmDAKBggqhkjOPQQDAzBSMSYw
JAYDVQQDDB1BcHBsZSBBcHAgQXR0ZXN0YXRpb24gUm9vdCBDQTETMBEGA1UECgwK
QXBwbGUgSW5jLjETMBEGA1UECAwKQ2FsaWZvcm5pYTAeFw0yMDAzMTgxODMyNTNa
Fw00NTAzMTUwMDAwMDBaMFIxJjAkBgNVBAMMHUFwcGxlIEFwcCBBdHRlc3RhdGlv
biBSb290IENBMRMwEQYDVQQKDApBcHBsZSBJbmMuMRMwEQYDVQQIDApDYWxpZm9y
bmlhMHYwEAYHKoZIzj0CAQYFK4EEACIDYgAERTHhmLW07ATaFQIEVwTtT4dyctdh
NbJhFs/Ii2FdCgAHGbpphY3+d8qjuDngIN3WVhQUBHAoMeQ/cLiP1sOUtgjqK9au
Yen1mMEvRq9Sk3Jm5X8U62H+xTD3FE9TgS41o0IwQDAPBgNVHRMBAf8EBTADAQH/
MB0GA1UdDgQWBBSskRBTM72+aEH/pwyp5frq5eWKoTAOBgNVHQ8BAf8EBAMCAQYw
CgYIKoZIzj0EAwMDaAAwZQIwQgFGnByvsiVbpTKwSga0kP0e8EeDS4+sQmTvb7vn
53O5+FRXgeLhpJ06ysC5PrOyAjEAp5U4xDgEgllF7En3VcE3iexZZtKeYnpqtijV
oyFraWVIyd/dganmrduC1bmTBGwD
-----END CERTIFICATE-----`

// vendorRootFingerprint is the SHA-256 of the root certificate DER. Checked
// whenever the pool is built so a tampered embedded certificate fails loudly
// instead of silently trusting a different root.
const vendorRootFingerprint = "1cb9823ba28ba6ad2d33a006941de2ae4f513ef1d4e831b9f7e0fa7b6242c932"

// VendorRoots returns the certificate pool containing the pinned vendor root,
// verifying the embedded certificate's fingerprint first.
func VendorRoots() (*x509.CertPool, error) {
	block, _ := pem.Decode([]byte(vendorRootPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("embedded vendor root is not a PEM certificate")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse embedded vendor root: %w", err)
	}

	sum := sha256.Sum256(cert.Raw)
	if hex.EncodeToString(sum[:]) != vendorRootFingerprint {
		return nil, fmt.Errorf("vendor root fingerprint mismatch: %x", sum)
	}

	pool := x509.NewCertPool()
	pool.AddCert(cert)
	return pool, nil
}
