package export

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hyperjump/transmatch/internal/config"
)

// S3Uploader puts export files into S3 or an S3-compatible store.
type S3Uploader struct {
	client *s3.Client
}

// NewS3Uploader builds a client from the default AWS credential chain with optional
// region, profile and path-style overrides.
func NewS3Uploader(ctx context.Context, cfg config.ExportConfig) (*S3Uploader, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.S3Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.S3UsePathStyle
	})
	return &S3Uploader{client: client}, nil
}

// Put uploads body to bucket/key.
func (u *S3Uploader) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	_, err := u.client.PutObject(ctx, in)
	return err
}

// NewExporter returns an Exporter that uploads s3:// destinations with cfg.
func NewExporter(cfg config.ExportConfig) *Exporter {
	return &Exporter{
		NewUploader: func(ctx context.Context) (Uploader, error) {
			return NewS3Uploader(ctx, cfg)
		},
	}
}
