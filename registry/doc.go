/*
Package registry provides DeviceRegistry implementations.

MemoryRegistry is the single-instance deployment option: a mutex-guarded map
with copy-in/copy-out semantics and compare-and-swap counter updates. It
enforces the trust-level and public-key invariants from the interfaces
package. Multi-instance deployments implement interfaces.DeviceRegistry
against an external store with atomic conditional writes instead.

MockRegistry is a testify mock for handler and middleware tests.
*/
package registry
