// Package metrics exposes Prometheus-format metrics on a dedicated listen
// address and defines the counters maintained by the device auth subsystem.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

var (
	ChallengesIssued      = vmetrics.NewCounter("device_auth_challenges_issued_total")
	ChallengesConsumed    = vmetrics.NewCounter("device_auth_challenges_consumed_total")
	ChallengesRateLimited = vmetrics.NewCounter("device_auth_challenges_rate_limited_total")

	AttestationsAccepted = vmetrics.NewCounter("device_auth_attestations_accepted_total")
	AttestationsRejected = vmetrics.NewCounter("device_auth_attestations_rejected_total")

	AssertionsAccepted  = vmetrics.NewCounter("device_auth_assertions_accepted_total")
	ReplaysDetected     = vmetrics.NewCounter("device_auth_replays_detected_total")
	SignatureFailures   = vmetrics.NewCounter("device_auth_signature_failures_total")
	UnverifiedBypasses  = vmetrics.NewCounter("device_auth_unverified_bypasses_total")
	TimestampRejections = vmetrics.NewCounter("device_auth_timestamp_rejections_total")
)

// MetricsServer serves the /metrics endpoint on its own address so that
// scraping never competes with API traffic.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given namespace and listen address.
func New(namespace, listenAddr string) (*MetricsServer, error) {
	if namespace == "" {
		return nil, fmt.Errorf("metrics namespace must not be empty")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
