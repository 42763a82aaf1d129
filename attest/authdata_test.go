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

func TestParseAuthenticatorData(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	appIDHash := AppIDHash(testTeamID, testBundleID)
	keyHash := cryptoutils.SHA256(cryptoutils.UncompressedPoint(&key.PublicKey))
	raw := buildAuthData(t, appIDHash, 7, keyHash[:], &key.PublicKey)

	ad, err := ParseAuthenticatorData(raw)
	require.NoError(t, err)

	assert.Equal(t, appIDHash, ad.RPIDHash)
	assert.Equal(t, uint32(7), ad.Counter)
	assert.NotZero(t, ad.Flags&FlagAttestedCredentialData)
	assert.Equal(t, keyHash[:], ad.CredentialID)
	assert.True(t, ad.PublicKey.Equal(&key.PublicKey))
}

func TestParseAuthenticatorDataTruncated(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	appIDHash := AppIDHash(testTeamID, testBundleID)
	keyHash := cryptoutils.SHA256(cryptoutils.UncompressedPoint(&key.PublicKey))
	raw := buildAuthData(t, appIDHash, 0, keyHash[:], &key.PublicKey)

	for _, n := range []int{0, 10, 36, 37, 40, assertionDataLen + aaguidLen + credIDLenLen + 4} {
		_, err := ParseAuthenticatorData(raw[:n])
		assert.ErrorIs(t, err, ErrMalformedAttestation, "prefix of %d bytes", n)
	}
}

func TestParseAssertionDataIgnoresTrailingBytes(t *testing.T) {
	raw := make([]byte, assertionDataLen+12)
	raw[32] = FlagUserPresent
	binary.BigEndian.PutUint32(raw[33:], 42)

	ad, err := ParseAssertionData(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), ad.Counter)

	_, err = ParseAssertionData(raw[:assertionDataLen-1])
	assert.ErrorIs(t, err, ErrMalformedAttestation)
}

func TestDecodeCOSEKeyRejections(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	x := make([]byte, 32)
	y := make([]byte, 32)
	key.X.FillBytes(x)
	key.Y.FillBytes(y)

	cases := map[string]coseKey{
		"wrong key type": {KeyType: 1, Algorithm: coseAlgES256, Curve: coseCurveP256, X: x, Y: y},
		"wrong curve":    {KeyType: coseKeyTypeEC2, Algorithm: coseAlgES256, Curve: 2, X: x, Y: y},
		"wrong alg":      {KeyType: coseKeyTypeEC2, Algorithm: -257, Curve: coseCurveP256, X: x, Y: y},
		"short x":        {KeyType: coseKeyTypeEC2, Algorithm: coseAlgES256, Curve: coseCurveP256, X: x[:31], Y: y},
		"off curve":      {KeyType: coseKeyTypeEC2, Algorithm: coseAlgES256, Curve: coseCurveP256, X: y, Y: x},
	}

	for name, k := range cases {
		raw, err := cbor.Marshal(k)
		require.NoError(t, err)
		_, err = decodeCOSEKey(raw)
		assert.ErrorIs(t, err, ErrMalformedAttestation, name)
	}
}
