// Package storage wraps the S3-compatible object store holding raw document
// content.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/iou-concept/kompas/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client builds an S3 client from AWS_* environment variables. Path
// style addressing keeps MinIO-compatible endpoints working.
func NewS3Client(ctx context.Context) *s3.Client {
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnv("AWS_REGION")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// GetDocument fetches a stored document and reports its content type. The
// content type comes from object metadata, falling back to the key
// extension.
func GetDocument(ctx context.Context, client *s3.Client, key string) ([]byte, string, error) {
	bucket := util.GetEnv("AWS_BUCKET")
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("get document %s: %w", key, err)
	}
	defer result.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, result.Body); err != nil {
		return nil, "", fmt.Errorf("read document %s: %w", key, err)
	}

	contentType := aws.ToString(result.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		if idx := strings.LastIndex(key, "."); idx >= 0 {
			if byExt := mime.TypeByExtension(key[idx:]); byExt != "" {
				contentType = byExt
			}
		}
	}
	return buf.Bytes(), contentType, nil
}

// PutDocument uploads document content under the given key.
func PutDocument(ctx context.Context, client *s3.Client, key string, contentType string, body io.ReadSeeker) error {
	bucket := util.GetEnv("AWS_BUCKET")
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put document %s: %w", key, err)
	}
	return nil
}

// DeleteDocument removes a stored document.
func DeleteDocument(ctx context.Context, client *s3.Client, key string) error {
	bucket := util.GetEnv("AWS_BUCKET")
	_, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", key, err)
	}
	return nil
}
