package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LucaDeLeo/realitycam-sub001/api"
	"github.com/LucaDeLeo/realitycam-sub001/attest"
	"github.com/LucaDeLeo/realitycam-sub001/challenge"
	"github.com/LucaDeLeo/realitycam-sub001/registry"
	"github.com/LucaDeLeo/realitycam-sub001/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	devices := registry.NewMemoryRegistry()
	challenges := challenge.NewStore(challenge.Config{})
	t.Cleanup(challenges.Close)

	handler := NewHandler(devices, challenges, &stubVerifier{}, storage.NewMemoryStore(), slog.Default())
	auth := NewRequestAuthenticator(AuthenticatorConfig{
		Devices:               devices,
		AppIDHash:             attest.AppIDHash("ABCDE12345", "com.example.camera"),
		Log:                   slog.Default(),
		AllowUnverifiedBypass: true,
	})

	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.Default(),
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, handler, auth)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, router http.Handler, path string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestServerHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	router := srv.getRouter()

	code, body := get(t, router, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"alive"}`, body)

	code, body = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ready"}`, body)
}

func TestServerDrainCycle(t *testing.T) {
	srv := newTestServer(t)
	router := srv.getRouter()

	code, _ := get(t, router, "/drain")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, router, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = get(t, router, "/undrain")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, router, "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)
	router := srv.getRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/device/challenge", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Authenticated route without headers fails with the auth envelope, which
	// proves the middleware is mounted.
	req = httptest.NewRequest(http.MethodGet, "/api/device/me", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
