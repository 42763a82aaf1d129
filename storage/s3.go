package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

// S3Store archives artifacts in Amazon S3 or compatible object storage.
type S3Store struct {
	client      *s3.S3
	bucketName  string
	prefix      string
	log         *slog.Logger
	locationURI string
}

// NewS3Store creates an S3 artifact store. If accessKey and secretKey are
// empty, the SDK's ambient credential chain is used.
func NewS3Store(bucketName, prefix, region, endpoint, accessKey, secretKey string, log *slog.Logger) (*S3Store, error) {
	uri := fmt.Sprintf("s3://%s/%s?region=%s", bucketName, prefix, region)
	if endpoint != "" {
		uri += fmt.Sprintf("&endpoint=%s", endpoint)
	}

	cfg := aws.Config{
		Region: aws.String(region),
	}
	if endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
	}
	if accessKey != "" && secretKey != "" {
		cfg.Credentials = credentials.NewStaticCredentials(accessKey, secretKey, "")
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Store{
		client:      s3.New(sess),
		bucketName:  bucketName,
		prefix:      strings.TrimSuffix(prefix, "/"),
		log:         log,
		locationURI: uri,
	}, nil
}

// Store writes the artifact for the device.
func (s *S3Store) Store(ctx context.Context, id uuid.UUID, data []byte) error {
	start := time.Now()
	key := s.objectKey(id)

	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-pem-file"),
	})
	if err != nil {
		s.log.Error("Failed to put artifact to S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return fmt.Errorf("failed to put artifact to S3: %w", err)
	}

	s.log.Debug("Archived attestation artifact in S3",
		slog.String("bucket", s.bucketName),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Fetch reads a previously archived artifact.
func (s *S3Store) Fetch(ctx context.Context, id uuid.UUID) ([]byte, error) {
	start := time.Now()
	key := s.objectKey(id)

	result, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") || strings.Contains(err.Error(), "404") {
			return nil, interfaces.ErrArtifactNotFound
		}
		s.log.Error("Failed to get artifact from S3",
			slog.String("bucket", s.bucketName),
			slog.String("key", key),
			"err", err,
			slog.Duration("duration", time.Since(start)))
		return nil, fmt.Errorf("failed to get artifact from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact body: %w", err)
	}
	return data, nil
}

// LocationURI returns the URI that identifies this store.
func (s *S3Store) LocationURI() string {
	return s.locationURI
}

func (s *S3Store) objectKey(id uuid.UUID) string {
	return path.Join(s.prefix, id.String()+".pem")
}
