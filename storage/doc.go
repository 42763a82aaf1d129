/*
Package storage provides ArtifactStore backends for archiving verified
attestation artifacts (vendor certificate chains), keyed by device id.

Artifacts are write-once audit material; none of the backends need atomic
conditional semantics. Backends are created from location URIs:

  - file:///var/lib/realitycam/artifacts - local filesystem
  - s3://ACCESS_KEY:SECRET@bucket/prefix?region=us-east-1 - S3 or compatible
  - memory:// - in-process, for tests and ephemeral deployments
*/
package storage
