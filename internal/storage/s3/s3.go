// Package s3 implements blob storage on an S3-compatible object store.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marigoldlabs/keepsake/backend/internal/storage"
)

const keyPrefix = "keepsake/"

// Config options for the S3 backend. Endpoint and UsePathStyle support
// S3-compatible services such as MinIO.
type Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PublicBaseURL   string
	MaxBytes        int64
}

// Store is the S3 implementation of storage.Store.
type Store struct {
	client        *awss3.Client
	uploader      *manager.Uploader
	bucket        string
	publicBaseURL string
	maxBytes      int64
}

// NewStore builds the S3 client from static credentials or the ambient AWS
// credential chain.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 storage: bucket is required")
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("s3 storage: load aws config: %w", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &Store{
		client:        client,
		uploader:      manager.NewUploader(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		maxBytes:      cfg.MaxBytes,
	}, nil
}

// Save uploads the blob and returns its durable URL.
func (s *Store) Save(ctx context.Context, upload storage.Upload) (storage.Object, error) {
	if err := storage.ValidateUpload(upload, s.maxBytes); err != nil {
		return storage.Object{}, err
	}

	filename, err := storage.NewFilename(upload.OriginalName)
	if err != nil {
		return storage.Object{}, fmt.Errorf("s3 storage: generate filename: %w", err)
	}

	_, err = s.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(keyPrefix + filename),
		Body:        upload.Reader,
		ContentType: aws.String(upload.ContentType),
	})
	if err != nil {
		return storage.Object{}, fmt.Errorf("s3 storage: upload object: %w", err)
	}

	return storage.Object{
		Filename:    filename,
		URL:         s.objectURL(filename),
		Size:        upload.Size,
		ContentType: upload.ContentType,
	}, nil
}

// Open streams the object body and reports its content type.
func (s *Store) Open(ctx context.Context, filename string) (io.ReadCloser, string, error) {
	output, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(keyPrefix + filename),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", storage.ErrObjectNotFound
		}
		return nil, "", fmt.Errorf("s3 storage: get object: %w", err)
	}

	contentType := aws.ToString(output.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return output.Body, contentType, nil
}

// Delete removes the object. S3 treats deleting an absent key as success, so
// the call is naturally idempotent.
func (s *Store) Delete(ctx context.Context, filename string) error {
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(keyPrefix + filename),
	})
	if err != nil {
		return fmt.Errorf("s3 storage: delete object: %w", err)
	}
	return nil
}

func (s *Store) objectURL(filename string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + keyPrefix + filename
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s%s", s.bucket, keyPrefix, filename)
}
