package attest

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"
)

// Authenticator data flag bits.
const (
	FlagUserPresent            = byte(1)
	FlagUserVerified           = byte(1 << 2)
	FlagAttestedCredentialData = byte(1 << 6)
	FlagExtensionData          = byte(1 << 7)
)

const (
	// assertionDataLen is the fixed prefix present in every authenticator
	// data blob: rpIdHash[32] | flags[1] | counter[4 BE].
	assertionDataLen = 37

	aaguidLen    = 16
	credIDLenLen = 2
)

// AuthenticatorData is the parsed authenticator-data blob. Attestations carry
// the full layout including the attested credential; assertions carry only
// the 37-byte prefix (RPIDHash, Flags, Counter).
type AuthenticatorData struct {
	RPIDHash [32]byte
	Flags    byte
	Counter  uint32

	AAGUID       [16]byte
	CredentialID []byte
	PublicKey    *ecdsa.PublicKey
}

// ParseAuthenticatorData parses the full fixed layout from an attestation:
// rpIdHash[32] | flags[1] | counter[4 BE] | aaguid[16] | credIdLen[2 BE] |
// credId[var] | COSE public key[var].
func ParseAuthenticatorData(raw []byte) (*AuthenticatorData, error) {
	ad, err := parsePrefix(raw)
	if err != nil {
		return nil, err
	}

	rest := raw[assertionDataLen:]
	if len(rest) < aaguidLen+credIDLenLen {
		return nil, fmt.Errorf("%w: attested credential data truncated", ErrMalformedAttestation)
	}
	copy(ad.AAGUID[:], rest[:aaguidLen])
	rest = rest[aaguidLen:]

	credIDLen := int(binary.BigEndian.Uint16(rest[:credIDLenLen]))
	rest = rest[credIDLenLen:]
	if len(rest) < credIDLen {
		return nil, fmt.Errorf("%w: credential id overflows authenticator data", ErrMalformedAttestation)
	}
	ad.CredentialID = rest[:credIDLen]

	pub, err := decodeCOSEKey(rest[credIDLen:])
	if err != nil {
		return nil, err
	}
	ad.PublicKey = pub

	return ad, nil
}

// ParseAssertionData parses the 37-byte prefix carried by assertions. Extra
// trailing bytes are ignored: the vendor keeps the attested-credential flag
// set even though assertions omit the credential data.
func ParseAssertionData(raw []byte) (*AuthenticatorData, error) {
	return parsePrefix(raw)
}

func parsePrefix(raw []byte) (*AuthenticatorData, error) {
	if len(raw) < assertionDataLen {
		return nil, fmt.Errorf("%w: authenticator data too short (%d bytes)", ErrMalformedAttestation, len(raw))
	}
	ad := &AuthenticatorData{}
	copy(ad.RPIDHash[:], raw[:32])
	ad.Flags = raw[32]
	ad.Counter = binary.BigEndian.Uint32(raw[33:assertionDataLen])
	return ad, nil
}
