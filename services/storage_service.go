package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-xray-sdk-go/instrumentation/awsv2"
	"github.com/klauspost/compress/zstd"
)

// StorageService interface for raw transcript storage
type StorageService interface {
	SaveTranscript(ctx context.Context, key string, data []byte) error
	GetTranscript(ctx context.Context, key string) ([]byte, error)
	DeleteTranscript(ctx context.Context, key string) error
}

// LocalStorageService implements StorageService using local filesystem
type LocalStorageService struct {
	basePath string
}

func NewLocalStorageService(basePath string) (*LocalStorageService, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	return &LocalStorageService{basePath: basePath}, nil
}

func (s *LocalStorageService) SaveTranscript(ctx context.Context, key string, data []byte) error {
	fullPath := filepath.Join(s.basePath, key)

	// Create directory if needed
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	compressed, err := compressTranscript(data)
	if err != nil {
		return err
	}
	return os.WriteFile(fullPath, compressed, 0644)
}

func (s *LocalStorageService) GetTranscript(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, err
	}
	return decompressTranscript(data)
}

// DeleteTranscript removes a stored transcript. A missing file is not an error.
func (s *LocalStorageService) DeleteTranscript(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.basePath, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// S3StorageService implements StorageService using AWS S3
type S3StorageService struct {
	client *s3.Client
	bucket string
}

func NewS3StorageService(bucket string, tracing bool) (*S3StorageService, error) {
	cfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, err
	}

	// Instrument AWS SDK v2 with X-Ray for automatic S3 operation tracing
	if tracing {
		awsv2.AWSV2Instrumentor(&cfg.APIOptions)
	}

	client := s3.NewFromConfig(cfg)
	return &S3StorageService{client: client, bucket: bucket}, nil
}

func (s *S3StorageService) SaveTranscript(ctx context.Context, key string, data []byte) error {
	compressed, err := compressTranscript(data)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(compressed),
		ContentType:     aws.String("application/x-ndjson"),
		ContentEncoding: aws.String("zstd"),
	})
	return err
}

func (s *S3StorageService) GetTranscript(ctx context.Context, key string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, err
	}
	return decompressTranscript(data)
}

func (s *S3StorageService) DeleteTranscript(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// NewStorageService creates appropriate storage service based on environment.
// "none" disables transcript storage and returns a nil service.
func NewStorageService(storageType, pathOrBucket string, tracing bool) (StorageService, error) {
	switch storageType {
	case "", "none":
		return nil, nil
	case "s3":
		return NewS3StorageService(pathOrBucket, tracing)
	case "local":
		return NewLocalStorageService(pathOrBucket)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}

// TranscriptKey generates the storage key for a session's raw output
func TranscriptKey(sessionID string) string {
	return fmt.Sprintf("transcripts/%s.jsonl.zst", sessionID)
}

func compressTranscript(data []byte) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	defer encoder.Close()
	return encoder.EncodeAll(data, make([]byte, 0, len(data)/4)), nil
}

func decompressTranscript(data []byte) ([]byte, error) {
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer decoder.Close()
	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing transcript: %w", err)
	}
	return out, nil
}
