package httpserver

import (
	"bytes"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/LucaDeLeo/realitycam-sub001/api"
	"github.com/LucaDeLeo/realitycam-sub001/attest"
	"github.com/LucaDeLeo/realitycam-sub001/cryptoutils"
	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
	"github.com/LucaDeLeo/realitycam-sub001/metrics"
)

const (
	// DefaultMaxBodyBytes caps buffered request bodies (20 MiB).
	DefaultMaxBodyBytes = 20 * 1024 * 1024

	// DefaultMaxAge rejects requests older than this.
	DefaultMaxAge = 5 * time.Minute

	// DefaultMaxSkew rejects requests from this far in the future.
	DefaultMaxSkew = time.Minute
)

// RoutePolicy is the per-route authentication policy supplied by the route
// layer.
type RoutePolicy struct {
	// RequireVerified rejects unverified devices with DEVICE_UNVERIFIED.
	// Permissive routes (false) serve unverified devices.
	RequireVerified bool
}

// AuthenticatorConfig configures the RequestAuthenticator.
type AuthenticatorConfig struct {
	Devices interfaces.DeviceRegistry

	// AppIDHash is the expected app identity digest (attest.AppIDHash).
	AppIDHash [32]byte

	Log *slog.Logger

	// MaxBodyBytes, MaxAge and MaxSkew fall back to the defaults above when
	// zero.
	MaxBodyBytes int64
	MaxAge       time.Duration
	MaxSkew      time.Duration

	// AllowUnverifiedBypass lets unverified devices through permissive routes
	// without a signature check (with a logged warning). When false,
	// unverified devices are rejected everywhere.
	AllowUnverifiedBypass bool
}

// RequestAuthenticator authenticates every protected request:
// ExtractHeaders -> ValidateTimestamp -> LookupDevice ->
// CheckTrustRequirement -> VerifySignature|Skip -> InjectContext -> Forward.
type RequestAuthenticator struct {
	devices               interfaces.DeviceRegistry
	appIDHash             [32]byte
	log                   *slog.Logger
	maxBodyBytes          int64
	maxAge                time.Duration
	maxSkew               time.Duration
	allowUnverifiedBypass bool
}

// NewRequestAuthenticator creates the middleware factory.
func NewRequestAuthenticator(cfg AuthenticatorConfig) *RequestAuthenticator {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = DefaultMaxSkew
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &RequestAuthenticator{
		devices:               cfg.Devices,
		appIDHash:             cfg.AppIDHash,
		log:                   cfg.Log,
		maxBodyBytes:          cfg.MaxBodyBytes,
		maxAge:                cfg.MaxAge,
		maxSkew:               cfg.MaxSkew,
		allowUnverifiedBypass: cfg.AllowUnverifiedBypass,
	}
}

// Middleware returns the authentication middleware for a route with the
// given policy.
func (a *RequestAuthenticator) Middleware(policy RoutePolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a.authenticate(w, r, policy, next)
		})
	}
}

func (a *RequestAuthenticator) authenticate(w http.ResponseWriter, r *http.Request, policy RoutePolicy, next http.Handler) {
	// ExtractHeaders.
	idHeader := r.Header.Get(api.DeviceIDHeader)
	tsHeader := r.Header.Get(api.TimestampHeader)
	sigHeader := r.Header.Get(api.SignatureHeader)
	if idHeader == "" || tsHeader == "" || sigHeader == "" {
		api.WriteError(w, r, api.CodeAuthRequired, "missing device authentication headers")
		return
	}

	deviceID, err := uuid.Parse(idHeader)
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, api.DeviceIDHeader+" is not a valid UUID")
		return
	}
	tsMillis, err := strconv.ParseInt(tsHeader, 10, 64)
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, api.TimestampHeader+" is not a valid integer")
		return
	}
	rawAssertion, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil {
		api.WriteError(w, r, api.CodeValidation, api.SignatureHeader+" is not valid base64")
		return
	}

	// ValidateTimestamp: bounds the replay window and clock skew.
	now := time.Now()
	ts := time.UnixMilli(tsMillis)
	if now.Sub(ts) > a.maxAge {
		metrics.TimestampRejections.Inc()
		api.WriteError(w, r, api.CodeTimestampExpired, "request timestamp expired")
		return
	}
	if ts.Sub(now) > a.maxSkew {
		metrics.TimestampRejections.Inc()
		api.WriteError(w, r, api.CodeTimestampInvalid, "request timestamp too far in the future")
		return
	}

	// LookupDevice.
	device, err := a.devices.FindDevice(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, interfaces.ErrDeviceNotFound) {
			api.WriteError(w, r, api.CodeDeviceNotFound, "unknown device")
			return
		}
		a.log.Error("Device lookup failed", "err", err, "deviceID", deviceID)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// CheckTrustRequirement.
	if policy.RequireVerified && !device.IsVerified() {
		api.WriteError(w, r, api.CodeDeviceUnverified, "device is not hardware verified")
		return
	}

	// VerifySignature, or Skip for unverified devices on permissive routes.
	if !device.IsVerified() {
		if !a.allowUnverifiedBypass {
			api.WriteError(w, r, api.CodeDeviceUnverified, "device is not hardware verified")
			return
		}
		metrics.UnverifiedBypasses.Inc()
		a.log.Warn("Skipping signature verification for unverified device",
			"deviceID", device.ID, "path", r.URL.Path)
		a.forward(w, r, device, next)
		return
	}

	if code, msg := a.verifySignature(w, r, device, rawAssertion, tsHeader); code != "" {
		api.WriteError(w, r, code, msg)
		return
	}

	a.forward(w, r, device, next)
}

// verifySignature buffers the body, verifies the assertion and persists the
// advanced counter. It returns a non-empty error code on failure; on success
// the request body has been reconstructed for the downstream handler.
func (a *RequestAuthenticator) verifySignature(w http.ResponseWriter, r *http.Request, device *interfaces.Device, rawAssertion []byte, tsHeader string) (api.ErrorCode, string) {
	// Buffer the body (bounded) to hash it, then hand the handler a fresh
	// reader with the identical bytes.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			a.log.Warn("Request body exceeds signing limit",
				"deviceID", device.ID, "limit", maxErr.Limit)
			return api.CodeValidation, "request body exceeds size limit"
		}
		a.log.Error("Failed to read request body", "err", err, "deviceID", device.ID)
		return api.CodeValidation, "failed to read request body"
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))

	assertion, err := attest.DecodeAssertion(rawAssertion)
	if err != nil {
		a.log.Warn("Assertion decode failed", "err", err, "deviceID", device.ID)
		metrics.SignatureFailures.Inc()
		return api.CodeSignatureInvalid, "assertion verification failed"
	}

	// Replay protection: the embedded counter must strictly exceed the last
	// accepted one.
	authData, err := attest.ParseAssertionData(assertion.AuthData)
	if err != nil {
		a.log.Warn("Assertion authenticator data parse failed", "err", err, "deviceID", device.ID)
		metrics.SignatureFailures.Inc()
		return api.CodeSignatureInvalid, "assertion verification failed"
	}
	if authData.Counter <= device.Counter {
		a.log.Warn("Replay detected: assertion counter did not advance",
			"deviceID", device.ID, "stored", device.Counter, "assertion", authData.Counter)
		metrics.ReplaysDetected.Inc()
		return api.CodeReplayDetected, "replay detected"
	}

	publicKey, err := cryptoutils.ParseP256PublicKey(device.PublicKey)
	if err != nil {
		a.log.Error("Stored device public key is unusable", "err", err, "deviceID", device.ID)
		metrics.SignatureFailures.Inc()
		return api.CodeSignatureInvalid, "assertion verification failed"
	}

	// The client signs clientData = ASCII timestamp || SHA256(body).
	bodyHash := cryptoutils.SHA256(body)
	clientDataHash := cryptoutils.SHA256([]byte(tsHeader), bodyHash[:])

	counter, err := attest.VerifyAssertion(publicKey, assertion, clientDataHash, a.appIDHash)
	if err != nil {
		a.log.Warn("Assertion signature verification failed", "err", err, "deviceID", device.ID)
		metrics.SignatureFailures.Inc()
		return api.CodeSignatureInvalid, "assertion verification failed"
	}

	// Persist the counter with a conditional update so two concurrent
	// requests can never both pass the replay check against the same stale
	// value. A lost race is a replay.
	if err := a.devices.UpdateCounterAndSeen(r.Context(), device.ID, device.Counter, counter, time.Now().UTC()); err != nil {
		if errors.Is(err, interfaces.ErrCounterConflict) {
			a.log.Warn("Replay detected: concurrent counter update won",
				"deviceID", device.ID, "counter", counter)
			metrics.ReplaysDetected.Inc()
			return api.CodeReplayDetected, "replay detected"
		}
		a.log.Error("Failed to persist assertion counter", "err", err, "deviceID", device.ID)
		return api.CodeSignatureInvalid, "assertion verification failed"
	}

	metrics.AssertionsAccepted.Inc()
	return "", ""
}

func (a *RequestAuthenticator) forward(w http.ResponseWriter, r *http.Request, device *interfaces.Device, next http.Handler) {
	ctx := WithDeviceContext(r.Context(), interfaces.DeviceContext{
		DeviceID:   device.ID,
		TrustLevel: device.TrustLevel,
		IsVerified: device.IsVerified(),
		HasLidar:   device.HasLidar,
	})
	next.ServeHTTP(w, r.WithContext(ctx))
}
