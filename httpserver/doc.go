/*
Package httpserver implements the HTTP surface of the device attestation
subsystem.

It provides three things:

 1. Challenge and registration endpoints. Clients fetch a single-use
    challenge, perform hardware attestation locally, and submit the resulting
    attestation object during registration. A valid attestation upgrades the
    device to hardware_verified; a failed one leaves the device registered but
    unverified, which is an expected state served on permissive routes.

 2. The RequestAuthenticator middleware. Every protected request carries the
    device id, a unix-millisecond timestamp and a base64 CBOR assertion in
    headers. The middleware validates the timestamp window, verifies the
    assertion signature against the device's stored hardware key, enforces
    strict counter increase (replay protection) with an atomic conditional
    counter update, and injects a DeviceContext for downstream handlers.

 3. Health and diagnostic endpoints (livez, readyz, drain, undrain, optional
    pprof) plus graceful shutdown with a drain window.

All trust- and state-class failures are collapsed to the fixed external error
codes in the api package; internal logs keep the specific stage and cause.
*/
package httpserver
