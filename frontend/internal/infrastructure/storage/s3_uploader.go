package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var ErrNoBucket = errors.New("storage: no media bucket configured")

// MediaUploader stores an attachment and returns the URL a message can carry
// in its media_url field.
type MediaUploader interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// PutObjectAPI is the one S3 call the uploader needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Uploader struct {
	client     PutObjectAPI
	bucket     string
	region     string
	publicBase string
}

var _ MediaUploader = (*S3Uploader)(nil)

// NewS3Uploader writes into bucket. publicBase, when set, replaces the
// virtual-hosted S3 URL in returned links (a CDN in front of the bucket).
func NewS3Uploader(client PutObjectAPI, bucket, region, publicBase string) (*S3Uploader, error) {
	if bucket == "" {
		return nil, ErrNoBucket
	}
	return &S3Uploader{
		client:     client,
		bucket:     bucket,
		region:     region,
		publicBase: strings.TrimRight(publicBase, "/"),
	}, nil
}

// NewS3Client loads credentials from the default AWS chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

func (u *S3Uploader) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload"
	}
	key := fmt.Sprintf("media/%s/%s", uuid.NewString(), base)

	in := &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("storage: put %s: %w", key, err)
	}
	return u.URL(key), nil
}

// URL is the public link for an object key.
func (u *S3Uploader) URL(key string) string {
	if u.publicBase != "" {
		return u.publicBase + "/" + key
	}
	if u.region == "" {
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
