package aws

import (
	"bytes"
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3ObjectStore uploads objects and hands out presigned download links.
type S3ObjectStore struct {
	client    *s3.Client
	presigner *s3.PresignClient
}

func NewS3ObjectStore(cfg sdkaws.Config) *S3ObjectStore {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		// LocalStack serves buckets on the path, not as subdomains
		o.UsePathStyle = true
	})
	return &S3ObjectStore{client: client, presigner: s3.NewPresignClient(client)}
}

func (s *S3ObjectStore) PutObject(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      sdkaws.String(bucket),
		Key:         sdkaws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: sdkaws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *S3ObjectStore) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	presigned, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: sdkaws.String(bucket),
		Key:    sdkaws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = ttl
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return presigned.URL, nil
}
