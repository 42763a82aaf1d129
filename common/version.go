// Package common holds process-level utilities shared by all binaries:
// logger setup and build identification.
package common

// PackageName identifies this service in metrics and logs.
const PackageName = "realitycam_device_auth"

// Version is set at build time via -ldflags.
var Version = "dev"
