package archive

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// S3Config holds configuration for the S3 archive backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string `yaml:"bucket"`
	// Prefix is the key prefix within the bucket.
	Prefix string `yaml:"prefix"`
	// Region is the AWS region. Empty uses the default chain.
	Region string `yaml:"region"`
	// Endpoint overrides the S3 endpoint for compatible providers
	// (Cloudflare R2, MinIO).
	Endpoint string `yaml:"endpoint"`
	// UsePathStyle forces path-style addressing, which most compatible
	// providers require.
	UsePathStyle bool `yaml:"use_path_style"`
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("archive: s3 bucket is required")
	}
	return nil
}

// ParseS3Path splits "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(path, "s3://"), "/")
	return bucket, strings.TrimSuffix(prefix, "/")
}

// NewS3 creates an Archive backed by S3.
// Credentials come from the AWS default chain (env vars, shared config, IAM role).
func NewS3(ctx context.Context, dataset string, cfg S3Config) (*Archive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, wrap(err, "init", "s3://"+cfg.Bucket)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	factory := func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: cfg.Bucket,
			Prefix: cfg.Prefix,
		})
	}
	return New(dataset, factory)
}
