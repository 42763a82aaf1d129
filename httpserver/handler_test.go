package httpserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucaDeLeo/realitycam-sub001/api"
	"github.com/LucaDeLeo/realitycam-sub001/attest"
	"github.com/LucaDeLeo/realitycam-sub001/challenge"
	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
	"github.com/LucaDeLeo/realitycam-sub001/registry"
	"github.com/LucaDeLeo/realitycam-sub001/storage"
)

// stubVerifier satisfies AttestationVerifier without a real PKI.
type stubVerifier struct {
	result *attest.Result
	err    error
}

func (s *stubVerifier) Verify(rawObject, challengeBytes, keyID []byte) (*attest.Result, error) {
	return s.result, s.err
}

type handlerFixture struct {
	handler    *Handler
	devices    *registry.MemoryRegistry
	challenges *challenge.Store
	artifacts  *storage.MemoryStore
	verifier   *stubVerifier
}

func newHandlerFixture(t *testing.T, challengeCfg challenge.Config) *handlerFixture {
	t.Helper()

	devices := registry.NewMemoryRegistry()
	challenges := challenge.NewStore(challengeCfg)
	t.Cleanup(challenges.Close)
	artifacts := storage.NewMemoryStore()
	verifier := &stubVerifier{}

	return &handlerFixture{
		handler:    NewHandler(devices, challenges, verifier, artifacts, slog.Default()),
		devices:    devices,
		challenges: challenges,
		artifacts:  artifacts,
		verifier:   verifier,
	}
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorBody {
	t.Helper()
	var body api.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleChallenge(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/device/challenge", nil)
	rec := httptest.NewRecorder()
	fix.handler.HandleChallenge(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.ChallengeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	raw, err := base64.StdEncoding.DecodeString(resp.Challenge)
	require.NoError(t, err)
	assert.Len(t, raw, challenge.Size)
	assert.False(t, resp.ExpiresAt.IsZero())

	// An issued challenge is immediately consumable.
	assert.NoError(t, fix.challenges.Consume(raw))
}

func TestHandleChallengeRateLimited(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{MaxPerWindow: 2})

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/device/challenge", nil)
		req.RemoteAddr = "203.0.113.7:4711"
		rec := httptest.NewRecorder()
		fix.handler.HandleChallenge(rec, req)

		if i < 2 {
			assert.Equal(t, http.StatusOK, rec.Code)
			continue
		}
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, api.CodeTooManyRequests, decodeErrorBody(t, rec).Error.Code)
	}
}

func postRegister(t *testing.T, h *Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/device/register", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	h.HandleRegister(rec, req)
	return rec
}

func TestHandleRegisterWithoutAttestation(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})

	rec := postRegister(t, fix.handler, api.RegisterRequest{
		Platform: "ios", Model: "iPhone 16 Pro", HasLidar: true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(interfaces.TrustUnverified), resp.TrustLevel)

	id, err := uuid.Parse(resp.DeviceID)
	require.NoError(t, err)
	device, err := fix.devices.FindDevice(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.TrustUnverified, device.TrustLevel)
	assert.True(t, device.HasLidar)
	assert.Nil(t, device.PublicKey)
}

func TestHandleRegisterValidation(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})

	rec := postRegister(t, fix.handler, api.RegisterRequest{Model: "iPhone 16 Pro"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeValidation, decodeErrorBody(t, rec).Error.Code)

	rec = postRegister(t, fix.handler, api.RegisterRequest{Platform: "ios"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/device/register", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	fix.handler.HandleRegister(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rec = postRegister(t, fix.handler, api.RegisterRequest{
		Platform: "ios", Model: "iPhone 16 Pro",
		Attestation: &api.AttestationPayload{KeyID: "!!not-base64!!"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, api.CodeValidation, decodeErrorBody(t, rec).Error.Code)
}

func issueChallenge(t *testing.T, s *challenge.Store) []byte {
	t.Helper()
	ch, err := s.Issue("test-client")
	require.NoError(t, err)
	return ch.Bytes
}

func attestationPayload(challengeBytes []byte) *api.AttestationPayload {
	return &api.AttestationPayload{
		KeyID:             base64.StdEncoding.EncodeToString([]byte("key-id")),
		AttestationObject: base64.StdEncoding.EncodeToString([]byte("cbor-container")),
		Challenge:         base64.StdEncoding.EncodeToString(challengeBytes),
	}
}

func TestHandleRegisterWithAttestation(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})
	fix.verifier.result = &attest.Result{
		PublicKey:        []byte("pkix-der"),
		InitialCounter:   0,
		CertificateChain: []byte("pem-chain"),
	}

	rec := postRegister(t, fix.handler, api.RegisterRequest{
		Platform: "ios", Model: "iPhone 16 Pro", HasLidar: true,
		Attestation: attestationPayload(issueChallenge(t, fix.challenges)),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.RegisterResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, string(interfaces.TrustHardwareVerified), resp.TrustLevel)

	id, err := uuid.Parse(resp.DeviceID)
	require.NoError(t, err)
	device, err := fix.devices.FindDevice(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.TrustHardwareVerified, device.TrustLevel)
	assert.Equal(t, []byte("pkix-der"), device.PublicKey)

	// The verified chain is archived for audit.
	artifact, err := fix.artifacts.Fetch(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte("pem-chain"), artifact)
}

func TestHandleRegisterAttestationFailureKeepsDevice(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})
	fix.verifier.err = errors.New("chain did not verify")

	rec := postRegister(t, fix.handler, api.RegisterRequest{
		Platform: "ios", Model: "iPhone 16 Pro",
		Attestation: attestationPayload(issueChallenge(t, fix.challenges)),
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeErrorBody(t, rec)
	assert.Equal(t, api.CodeAttestationFailed, body.Error.Code)
	// Internal failure causes never leak into the response.
	assert.NotContains(t, body.Error.Message, "chain")
}

func TestHandleRegisterRejectsReusedChallenge(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})
	fix.verifier.result = &attest.Result{PublicKey: []byte("pkix-der")}

	challengeBytes := issueChallenge(t, fix.challenges)

	rec := postRegister(t, fix.handler, api.RegisterRequest{
		Platform: "ios", Model: "iPhone 16 Pro",
		Attestation: attestationPayload(challengeBytes),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// The same challenge cannot vouch for a second registration.
	rec = postRegister(t, fix.handler, api.RegisterRequest{
		Platform: "ios", Model: "iPhone 16 Pro",
		Attestation: attestationPayload(challengeBytes),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, api.CodeAttestationFailed, decodeErrorBody(t, rec).Error.Code)
}

func TestHandleDeviceInfo(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})

	dc := interfaces.DeviceContext{
		DeviceID:   uuid.New(),
		TrustLevel: interfaces.TrustHardwareVerified,
		IsVerified: true,
		HasLidar:   true,
	}
	req := httptest.NewRequest(http.MethodGet, "/api/device/me", nil)
	req = req.WithContext(WithDeviceContext(req.Context(), dc))
	rec := httptest.NewRecorder()
	fix.handler.HandleDeviceInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, dc.DeviceID.String(), resp["device_id"])
	assert.Equal(t, string(interfaces.TrustHardwareVerified), resp["trust_level"])
	assert.Equal(t, true, resp["is_verified"])
	assert.Equal(t, true, resp["has_lidar"])
}

func TestHandleDeviceInfoWithoutIdentity(t *testing.T) {
	fix := newHandlerFixture(t, challenge.Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/device/me", nil)
	rec := httptest.NewRecorder()
	fix.handler.HandleDeviceInfo(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, api.CodeAuthRequired, decodeErrorBody(t, rec).Error.Code)
}
