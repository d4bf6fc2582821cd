// Package archive mirrors rendered assets to an S3-compatible bucket so
// they outlive the local scratch directory's TTL.
package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Client uploads assets to a single bucket.
type Client struct {
	s3Client  *s3.Client
	bucket    string
	publicURL string // optional base URL for a public bucket
}

// Options configures the archive client.
type Options struct {
	Endpoint  string // custom endpoint for MinIO/R2; empty for AWS
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	PublicURL string
}

// New builds an archive client for the configured bucket.
func New(opts Options) (*Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(opts.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	}
	if opts.Endpoint != "" {
		configOpts = append(configOpts, awsconfig.WithBaseEndpoint(opts.Endpoint))
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	// Path-style addressing plus relaxed checksums keep S3-compatible
	// backends (MinIO, R2) working; they reject some CRC32 headers.
	s3Client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	log.Info().
		Str("endpoint", opts.Endpoint).
		Str("bucket", opts.Bucket).
		Msg("archive client initialized")

	return &Client{
		s3Client:  s3Client,
		bucket:    opts.Bucket,
		publicURL: opts.PublicURL,
	}, nil
}

// PublicURL returns the public URL for a key, or "" when the bucket has no
// public base configured.
func (c *Client) PublicURL(key string) string {
	if c.publicURL == "" {
		return ""
	}
	if c.publicURL[len(c.publicURL)-1] == '/' {
		return c.publicURL + key
	}
	return c.publicURL + "/" + key
}

// Upload stores data under key. contentLength must be > 0; S3-compatible
// backends require the Content-Length header.
func (c *Client) Upload(ctx context.Context, key string, data io.Reader, contentType string, contentLength int64) error {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(contentLength),
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("asset archived")

	return nil
}

// PresignedURL generates a time-limited download URL for key.
func (c *Client) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(c.s3Client)

	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("presign get object: %w", err)
	}
	return req.URL, nil
}

// Delete removes an archived object.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete from s3: %w", err)
	}

	log.Info().
		Str("bucket", c.bucket).
		Str("key", key).
		Msg("archived asset deleted")

	return nil
}
