package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Im-Vestor/im-vestor-full-sub002/config"
)

// ObjectStorage hands out direct-upload URLs so files never pass through the API.
type ObjectStorage interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PublicURL(key string) string
}

// Storage is the process-wide object store.
var Storage ObjectStorage

// R2Storage talks to Cloudflare R2 through its S3-compatible API.
type R2Storage struct {
	bucket    string
	publicURL string
	presigner *s3.PresignClient
}

func NewR2Storage(settings config.R2Settings) *R2Storage {
	client := s3.New(s3.Options{
		Region:       "auto",
		Credentials:  aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(settings.AccessKeyID, settings.SecretAccessKey, "")),
		BaseEndpoint: aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", settings.AccountID)),
		UsePathStyle: true,
	})
	return &R2Storage{
		bucket:    settings.Bucket,
		publicURL: strings.TrimRight(settings.PublicURL, "/"),
		presigner: s3.NewPresignClient(client),
	}
}

func (r *R2Storage) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := r.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}
	return req.URL, nil
}

func (r *R2Storage) PublicURL(key string) string {
	if key == "" {
		return ""
	}
	return r.publicURL + "/" + key
}
