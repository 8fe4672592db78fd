package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds connection settings for an S3 compatible bucket.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type s3Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4Request, error)
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4Request, error)
}

// S3Storage presigns PUT and GET requests against a bucket.
type S3Storage struct {
	presigner s3Presigner
	bucket    string
}

// NewS3Storage loads AWS configuration and builds a presign client. Static
// credentials and a custom endpoint (MinIO, LocalStack) are optional.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 storage requires a bucket")
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Storage{presigner: presignAdapter{s3.NewPresignClient(client)}, bucket: cfg.Bucket}, nil
}

// PresignUpload implements ObjectStore.
func (s *S3Storage) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedURL, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	req, err := s.presigner.PresignPutObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put object: %w", err)
	}
	return &PresignedURL{URL: req.URL, Method: req.Method, ObjectKey: key, ExpiresAt: time.Now().Add(ttl)}, nil
}

// PresignDownload implements ObjectStore.
func (s *S3Storage) PresignDownload(ctx context.Context, key string, ttl time.Duration) (*PresignedURL, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign get object: %w", err)
	}
	return &PresignedURL{URL: req.URL, Method: req.Method, ObjectKey: key, ExpiresAt: time.Now().Add(ttl)}, nil
}

// v4Request is the subset of the signed request callers need.
type v4Request struct {
	URL    string
	Method string
}

type presignAdapter struct {
	client *s3.PresignClient
}

func (a presignAdapter) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4Request, error) {
	req, err := a.client.PresignPutObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &v4Request{URL: req.URL, Method: req.Method}, nil
}

func (a presignAdapter) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4Request, error) {
	req, err := a.client.PresignGetObject(ctx, params, optFns...)
	if err != nil {
		return nil, err
	}
	return &v4Request{URL: req.URL, Method: req.Method}, nil
}

var _ ObjectStore = (*S3Storage)(nil)
