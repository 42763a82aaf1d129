package storage

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

// Factory creates artifact stores from location URIs.
type Factory struct {
	log *slog.Logger
}

// NewFactory creates a factory instance.
func NewFactory(log *slog.Logger) *Factory {
	return &Factory{log: log}
}

// StoreFor creates an artifact store from a location URI.
// The URI format is [scheme]://[auth@]host[/path][?params].
//
// Supported schemes:
//   - file:// - Local filesystem storage
//   - s3:// - Amazon S3 or compatible object storage
//   - memory:// - In-process storage
//
// Returns an error if the URI is invalid or the scheme is unsupported.
func (f *Factory) StoreFor(locationURI string) (interfaces.ArtifactStore, error) {
	u, err := url.Parse(locationURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrInvalidLocationURI, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return NewFileStore(u.Path, f.log)
	case "s3":
		return f.createS3Store(u)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", interfaces.ErrInvalidLocationURI, u.Scheme)
	}
}

// createS3Store builds an S3 store from a URI of the form
// s3://ACCESS_KEY:SECRET@bucket/prefix?region=us-east-1&endpoint=...
// Credentials may be omitted for buckets reachable via ambient credentials.
func (f *Factory) createS3Store(u *url.URL) (interfaces.ArtifactStore, error) {
	bucket := u.Host
	if bucket == "" {
		return nil, fmt.Errorf("%w: s3 URI missing bucket", interfaces.ErrInvalidLocationURI)
	}

	var accessKey, secretKey string
	if u.User != nil {
		accessKey = u.User.Username()
		secretKey, _ = u.User.Password()
	}

	region := u.Query().Get("region")
	if region == "" {
		region = "us-east-1"
	}
	endpoint := u.Query().Get("endpoint")
	prefix := strings.Trim(u.Path, "/")

	return NewS3Store(bucket, prefix, region, endpoint, accessKey, secretKey, f.log)
}
