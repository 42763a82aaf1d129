package attest

import (
	"bytes"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LucaDeLeo/realitycam-sub001/cryptoutils"
)

var (
	// ErrCertificateChain covers chain parse and path validation failures.
	ErrCertificateChain = errors.New("certificate chain verification failed")

	// ErrNonceMismatch means the attestation was not generated for the
	// challenge we issued.
	ErrNonceMismatch = errors.New("challenge nonce mismatch")

	// ErrAppIdentityMismatch means the attestation was generated for a
	// different app identity.
	ErrAppIdentityMismatch = errors.New("app identity mismatch")

	// ErrKeyIDMismatch means the submitted key id does not belong to the
	// attested public key.
	ErrKeyIDMismatch = errors.New("key id mismatch")

	// ErrInitialCounter means a first-time attestation carried a non-zero
	// counter.
	ErrInitialCounter = errors.New("initial counter is not zero")
)

// AppIDHash returns SHA256(teamID + "." + bundleID), the app identity digest
// embedded in authenticator data as rpIdHash.
func AppIDHash(teamID, bundleID string) [32]byte {
	return cryptoutils.SHA256([]byte(teamID + "." + bundleID))
}

// Config configures a Verifier.
type Config struct {
	// TeamID and BundleID form the expected app identity.
	TeamID   string
	BundleID string

	// Roots overrides the pinned vendor root pool. Leave nil in production;
	// tests inject their own chain here.
	Roots *x509.CertPool

	Log *slog.Logger
}

// Verifier runs the one-time attestation pipeline.
type Verifier struct {
	appIDHash [32]byte
	roots     *x509.CertPool
	log       *slog.Logger
}

// Result carries the fields persisted after a successful attestation.
type Result struct {
	// PublicKey is the attested device key in PKIX DER form.
	PublicKey []byte

	// InitialCounter is the counter embedded in the attestation (always 0
	// for an accepted first-time attestation).
	InitialCounter uint32

	// CertificateChain is the verified vendor chain, leaf first, PEM encoded.
	CertificateChain []byte
}

// NewVerifier creates a Verifier for the given app identity. When cfg.Roots
// is nil, the build-time pinned vendor root is used.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.TeamID == "" || cfg.BundleID == "" {
		return nil, errors.New("team id and bundle id are required")
	}

	roots := cfg.Roots
	if roots == nil {
		var err error
		roots, err = VendorRoots()
		if err != nil {
			return nil, err
		}
	}

	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Verifier{
		appIDHash: AppIDHash(cfg.TeamID, cfg.BundleID),
		roots:     roots,
		log:       log,
	}, nil
}

// AppIDHash returns the expected app identity digest.
func (v *Verifier) AppIDHash() [32]byte {
	return v.appIDHash
}

// Verify runs the full attestation pipeline against the raw CBOR container,
// the challenge the client was issued, and the submitted key id.
//
// The returned error names the failing stage for internal logging; callers
// must collapse it to a single generic failure before it leaves the service.
func (v *Verifier) Verify(rawObject, challenge, keyID []byte) (*Result, error) {
	// Stage 1: container decode.
	obj, err := DecodeObject(rawObject)
	if err != nil {
		return nil, v.fail("decode_container", err)
	}

	// Stage 2: authenticator data.
	authData, err := ParseAuthenticatorData(obj.AuthData)
	if err != nil {
		return nil, v.fail("parse_auth_data", err)
	}

	// Stage 3: certificate chain against the pinned root.
	chain, err := v.verifyChain(obj.Statement.X5C)
	if err != nil {
		return nil, v.fail("verify_chain", err)
	}
	leaf := chain[0]

	// Stage 4: challenge binding. The leaf carries
	// SHA256(authData || SHA256(challenge)) in the vendor extension.
	nonce, err := nonceFromCertificate(leaf)
	if err != nil {
		return nil, v.fail("extract_nonce", err)
	}
	challengeHash := cryptoutils.SHA256(challenge)
	expectedNonce := cryptoutils.SHA256(obj.AuthData, challengeHash[:])
	if !cryptoutils.ConstantTimeEqual(nonce, expectedNonce[:]) {
		return nil, v.fail("challenge_binding", ErrNonceMismatch)
	}

	// Stage 5: app identity binding.
	if !cryptoutils.ConstantTimeEqual(authData.RPIDHash[:], v.appIDHash[:]) {
		return nil, v.fail("app_identity", ErrAppIdentityMismatch)
	}

	// Stage 6: public key extraction. Curve and key type were enforced during
	// parsing; here the key id must be the SHA-256 of the uncompressed point
	// and must match the embedded credential id.
	keyHash := cryptoutils.SHA256(cryptoutils.UncompressedPoint(authData.PublicKey))
	if !cryptoutils.ConstantTimeEqual(keyHash[:], keyID) {
		return nil, v.fail("key_id", ErrKeyIDMismatch)
	}
	if !bytes.Equal(authData.CredentialID, keyID) {
		return nil, v.fail("credential_id", ErrKeyIDMismatch)
	}

	// Stage 7: first-time attestations start at counter 0.
	if authData.Counter != 0 {
		return nil, v.fail("initial_counter", fmt.Errorf("%w: got %d", ErrInitialCounter, authData.Counter))
	}

	publicKeyDER, err := cryptoutils.MarshalPublicKey(authData.PublicKey)
	if err != nil {
		return nil, v.fail("marshal_key", err)
	}

	return &Result{
		PublicKey:        publicKeyDER,
		InitialCounter:   authData.Counter,
		CertificateChain: cryptoutils.EncodeCertChainPEM(chain),
	}, nil
}

// verifyChain parses the submitted chain (leaf first), verifies the leaf
// against the pinned root through the supplied intermediates, and checks all
// validity windows (x509.Verify enforces them for every chain certificate).
func (v *Verifier) verifyChain(x5c [][]byte) ([]*x509.Certificate, error) {
	certs := make([]*x509.Certificate, 0, len(x5c))
	for i, der := range x5c {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: parse certificate %d: %v", ErrCertificateChain, i, err)
		}
		certs = append(certs, cert)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}

	if _, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         v.roots,
		Intermediates: intermediates,
		CurrentTime:   time.Now(),
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCertificateChain, err)
	}

	return certs, nil
}

func (v *Verifier) fail(stage string, err error) error {
	v.log.Warn("Attestation stage failed", "stage", stage, "err", err)
	return fmt.Errorf("%s: %w", stage, err)
}
