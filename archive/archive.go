// Package archive keeps a copy of every submitted proof image outside the
// user store.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Archive interface {
	Put(ctx context.Context, userID string, questID int, data []byte, mimeType string, at time.Time) (string, error)
}

// Nop discards proofs.
type Nop struct{}

func (Nop) Put(_ context.Context, userID string, questID int, _ []byte, mimeType string, at time.Time) (string, error) {
	return ObjectKey("", userID, questID, mimeType, at), nil
}

// ObjectKey is prefix/user/quest-<id>/<unix millis>.<ext>.
func ObjectKey(prefix, userID string, questID int, mimeType string, at time.Time) string {
	return path.Join(strings.Trim(prefix, "/"), userID,
		fmt.Sprintf("quest-%d", questID),
		fmt.Sprintf("%d.%s", at.UnixMilli(), extension(mimeType)))
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/heic":
		return "heic"
	default:
		return "jpg"
	}
}

type Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	AccessKey string
	SecretKey string
}

type S3 struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 builds an archive on an S3 compatible bucket. Static credentials are
// used when given, otherwise the default AWS chain applies.
func NewS3(ctx context.Context, cfg Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("archive: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (a *S3) Put(ctx context.Context, userID string, questID int, data []byte, mimeType string, at time.Time) (string, error) {
	key := ObjectKey(a.prefix, userID, questID, mimeType, at)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}
	return key, nil
}
