/*
Package interfaces defines the core types and collaborator contracts of the
device attestation subsystem without implementation details.

The central type is Device: a registered piece of client hardware with an
optional hardware-backed public key, a monotonically increasing signature
counter and a trust level. Devices are persisted behind the DeviceRegistry
interface; verified attestation artifacts are archived behind ArtifactStore.

Trust levels only ever move forward. A device starts Unverified and may be
upgraded to HardwareVerified exactly once, when its vendor attestation has
been validated. There is no downgrade path and the public key is immutable
once set; registry implementations enforce both.
*/
package interfaces
