package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/LucaDeLeo/realitycam-sub001/api"
	"github.com/LucaDeLeo/realitycam-sub001/attest"
	"github.com/LucaDeLeo/realitycam-sub001/challenge"
	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
	"github.com/LucaDeLeo/realitycam-sub001/metrics"
)

// maxRegisterBodySize caps registration bodies. Attestation objects are a few
// KB; 1MB leaves generous headroom.
const maxRegisterBodySize = 1024 * 1024

// AttestationVerifier runs the one-time attestation pipeline. Satisfied by
// *attest.Verifier; mocked in tests.
type AttestationVerifier interface {
	Verify(rawObject, challengeBytes, keyID []byte) (*attest.Result, error)
}

// Handler processes challenge issuance and device registration requests.
type Handler struct {
	devices    interfaces.DeviceRegistry
	challenges *challenge.Store
	verifier   AttestationVerifier
	artifacts  interfaces.ArtifactStore
	log        *slog.Logger
}

// NewHandler creates a request handler with the given collaborators.
func NewHandler(devices interfaces.DeviceRegistry, challenges *challenge.Store, verifier AttestationVerifier, artifacts interfaces.ArtifactStore, log *slog.Logger) *Handler {
	return &Handler{
		devices:    devices,
		challenges: challenges,
		verifier:   verifier,
		artifacts:  artifacts,
		log:        log,
	}
}

// HandleChallenge issues a single-use attestation challenge.
//
// URL format: POST /api/device/challenge
//
// Response: {"challenge": base64(32 bytes), "expires_at": RFC3339}
func (h *Handler) HandleChallenge(w http.ResponseWriter, r *http.Request) {
	ch, err := h.challenges.Issue(clientKey(r))
	if err != nil {
		if errors.Is(err, challenge.ErrRateLimited) {
			metrics.ChallengesRateLimited.Inc()
			api.WriteError(w, r, api.CodeTooManyRequests, "challenge issuance rate limit exceeded")
			return
		}
		h.log.Error("Failed to issue challenge", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	metrics.ChallengesIssued.Inc()
	writeJSON(w, h.log, api.ChallengeResponse{
		Challenge: base64.StdEncoding.EncodeToString(ch.Bytes),
		ExpiresAt: ch.ExpiresAt,
	})
}

// HandleRegister registers a device, optionally upgrading it to
// hardware_verified when a valid attestation is supplied.
//
// URL format: POST /api/device/register
//
// Request body:
//
//	{"platform": ..., "model": ..., "has_lidar": ...,
//	 "attestation": {"key_id": ..., "attestation_object": ..., "challenge": ...}}
//
// A device record is created before the attestation is checked. A failed
// attestation returns ATTESTATION_FAILED but keeps the unverified record:
// unverified devices remain usable on permissive routes.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRegisterBodySize))
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, "failed to read request body")
		return
	}

	var req api.RegisterRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.WriteError(w, r, api.CodeValidation, "invalid JSON in request body")
		return
	}
	if req.Platform == "" {
		api.WriteError(w, r, api.CodeValidation, "platform is required")
		return
	}
	if req.Model == "" {
		api.WriteError(w, r, api.CodeValidation, "model is required")
		return
	}

	now := time.Now().UTC()
	device := &interfaces.Device{
		ID:         uuid.New(),
		Platform:   req.Platform,
		Model:      req.Model,
		HasLidar:   req.HasLidar,
		TrustLevel: interfaces.TrustUnverified,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := h.devices.InsertDevice(r.Context(), device); err != nil {
		h.log.Error("Failed to insert device", "err", err, "deviceID", device.ID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if req.Attestation == nil {
		h.log.Info("Registered device without attestation",
			"deviceID", device.ID, "platform", req.Platform, "model", req.Model)
		writeJSON(w, h.log, api.RegisterResponse{
			DeviceID:   device.ID.String(),
			TrustLevel: string(interfaces.TrustUnverified),
		})
		return
	}

	keyID, err := base64.StdEncoding.DecodeString(req.Attestation.KeyID)
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, "attestation.key_id is not valid base64")
		return
	}
	attObj, err := base64.StdEncoding.DecodeString(req.Attestation.AttestationObject)
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, "attestation.attestation_object is not valid base64")
		return
	}
	challengeBytes, err := base64.StdEncoding.DecodeString(req.Attestation.Challenge)
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, "attestation.challenge is not valid base64")
		return
	}

	result, err := h.verifyAttestation(r, device.ID, attObj, challengeBytes, keyID)
	if err != nil {
		// The device record stays unverified; this is a graceful degradation,
		// not a hard rejection.
		metrics.AttestationsRejected.Inc()
		api.WriteError(w, r, api.CodeAttestationFailed, "attestation verification failed")
		return
	}

	if err := h.devices.UpdateTrustAndKey(r.Context(), device.ID, interfaces.TrustHardwareVerified,
		result.PublicKey, result.InitialCounter, result.CertificateChain); err != nil {
		h.log.Error("Failed to persist verified device", "err", err, "deviceID", device.ID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := h.artifacts.Store(r.Context(), device.ID, result.CertificateChain); err != nil {
		// Audit archival failure is logged but does not undo verification.
		h.log.Error("Failed to archive attestation artifact", "err", err,
			"deviceID", device.ID, "store", h.artifacts.LocationURI())
	}

	metrics.AttestationsAccepted.Inc()
	h.log.Info("Device attestation verified",
		"deviceID", device.ID, "platform", req.Platform, "model", req.Model)

	writeJSON(w, h.log, api.RegisterResponse{
		DeviceID:   device.ID.String(),
		TrustLevel: string(interfaces.TrustHardwareVerified),
	})
}

// verifyAttestation consumes the challenge and runs the attestation pipeline.
// All failures collapse into one generic error externally; internal logs keep
// the cause.
func (h *Handler) verifyAttestation(r *http.Request, deviceID uuid.UUID, attObj, challengeBytes, keyID []byte) (*attest.Result, error) {
	if err := h.challenges.Consume(challengeBytes); err != nil {
		h.log.Warn("Challenge consumption failed", "err", err, "deviceID", deviceID)
		return nil, err
	}
	metrics.ChallengesConsumed.Inc()

	result, err := h.verifier.Verify(attObj, challengeBytes, keyID)
	if err != nil {
		h.log.Warn("Attestation verification failed", "err", err, "deviceID", deviceID)
		return nil, err
	}
	return result, nil
}

// HandleDeviceInfo reports the authenticated device's identity and trust
// level. Mounted behind the RequestAuthenticator.
//
// URL format: GET /api/device/me
func (h *Handler) HandleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	dc, ok := DeviceFromContext(r.Context())
	if !ok {
		api.WriteError(w, r, api.CodeAuthRequired, "device authentication required")
		return
	}

	writeJSON(w, h.log, map[string]any{
		"device_id":   dc.DeviceID.String(),
		"trust_level": string(dc.TrustLevel),
		"is_verified": dc.IsVerified,
		"has_lidar":   dc.HasLidar,
	})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}

// clientKey identifies the caller for rate limiting: the first hop of
// X-Forwarded-For when present, else the remote address host.
func clientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
