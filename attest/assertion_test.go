package attest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucaDeLeo/realitycam-sub001/cryptoutils"
)

// signTestAssertion produces a CBOR assertion the way client hardware does:
// the key signs SHA256(SHA256(authData || clientDataHash)).
func signTestAssertion(t *testing.T, key *ecdsa.PrivateKey, appIDHash [32]byte, counter uint32, clientDataHash [32]byte) []byte {
	t.Helper()

	authData := make([]byte, assertionDataLen)
	copy(authData, appIDHash[:])
	authData[32] = FlagUserPresent
	binary.BigEndian.PutUint32(authData[33:], counter)

	nonce := cryptoutils.SHA256(authData, clientDataHash[:])
	digest := cryptoutils.SHA256(nonce[:])
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	require.NoError(t, err)

	raw, err := cbor.Marshal(Assertion{Signature: sig, AuthData: authData})
	require.NoError(t, err)
	return raw
}

func TestVerifyAssertion(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	appIDHash := AppIDHash(testTeamID, testBundleID)
	clientDataHash := cryptoutils.SHA256([]byte("request payload"))

	raw := signTestAssertion(t, key, appIDHash, 9, clientDataHash)
	assertion, err := DecodeAssertion(raw)
	require.NoError(t, err)

	counter, err := VerifyAssertion(&key.PublicKey, assertion, clientDataHash, appIDHash)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), counter)
}

func TestVerifyAssertionRejectsTamperedClientData(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	appIDHash := AppIDHash(testTeamID, testBundleID)
	clientDataHash := cryptoutils.SHA256([]byte("request payload"))

	raw := signTestAssertion(t, key, appIDHash, 1, clientDataHash)
	assertion, err := DecodeAssertion(raw)
	require.NoError(t, err)

	tampered := cryptoutils.SHA256([]byte("a different payload"))
	_, err = VerifyAssertion(&key.PublicKey, assertion, tampered, appIDHash)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyAssertionRejectsWrongKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	otherKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	appIDHash := AppIDHash(testTeamID, testBundleID)
	clientDataHash := cryptoutils.SHA256([]byte("request payload"))

	raw := signTestAssertion(t, key, appIDHash, 1, clientDataHash)
	assertion, err := DecodeAssertion(raw)
	require.NoError(t, err)

	_, err = VerifyAssertion(&otherKey.PublicKey, assertion, clientDataHash, appIDHash)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifyAssertionRejectsForeignAppIdentity(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	appIDHash := AppIDHash("ZZZZZ99999", "com.other.app")
	clientDataHash := cryptoutils.SHA256([]byte("request payload"))

	raw := signTestAssertion(t, key, appIDHash, 1, clientDataHash)
	assertion, err := DecodeAssertion(raw)
	require.NoError(t, err)

	expected := AppIDHash(testTeamID, testBundleID)
	_, err = VerifyAssertion(&key.PublicKey, assertion, clientDataHash, expected)
	assert.ErrorIs(t, err, ErrAppIdentityMismatch)
}

func TestDecodeAssertionRejectsMalformed(t *testing.T) {
	_, err := DecodeAssertion([]byte("garbage"))
	assert.ErrorIs(t, err, ErrMalformedAttestation)

	raw, err := cbor.Marshal(Assertion{Signature: nil, AuthData: []byte{1, 2, 3}})
	require.NoError(t, err)
	_, err = DecodeAssertion(raw)
	assert.ErrorIs(t, err, ErrMalformedAttestation)
}
