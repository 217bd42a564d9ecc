package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver keeps raw upstream payloads for later inspection.
type Archiver interface {
	Archive(ctx context.Context, kind string, at time.Time, data []byte) (string, error)
}

// S3Config holds configuration for S3-compatible storage
type S3Config struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // optional: MinIO, R2, OSS...
	AccessKeyID     string
	SecretAccessKey string
}

type S3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Archiver(ctx context.Context, cfg S3Config) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Archiver{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, kind string, at time.Time, data []byte) (string, error) {
	key := ArchiveKey(a.prefix, kind, at)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return key, nil
}

// ArchiveKey lays objects out as {prefix}/{kind}/YYYY/MM/DD/HHMMSS.json.
func ArchiveKey(prefix, kind string, at time.Time) string {
	return path.Join(prefix, kind, at.Format("2006/01/02"), at.Format("150405")+".json")
}

// NopArchiver is used when no bucket is configured.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, time.Time, []byte) (string, error) {
	return "", nil
}
