// storage/blob.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// BlobStore mirrors the leaderboard JSON to an S3-compatible bucket (R2).
// It is the durable copy: if the fast store comes up empty, the last published
// board is recovered from here.
type BlobStore struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string
	objectKey  string
}

type BlobConfig struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string // optional; defaults to the R2 endpoint
	BoardSlug       string // namespaces the object key, e.g. "lawn-points"
}

func NewBlobStore(ctx context.Context, cfg BlobConfig) (*BlobStore, error) {
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
		config.WithEndpointResolver(aws.EndpointResolverFunc(
			func(service, region string) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint}, nil
			}),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	cdnBaseURL := cfg.CDNBaseURL
	if cdnBaseURL == "" {
		cdnBaseURL = endpoint
	}

	return &BlobStore{
		client:     s3.NewFromConfig(awsCfg),
		bucket:     cfg.Bucket,
		cdnBaseURL: cdnBaseURL,
		objectKey:  cfg.BoardSlug + "/leaderboard.json",
	}, nil
}

// PutLeaderboard overwrites the mirror with the given JSON payload and returns
// the public URL of the object.
func (b *BlobStore) PutLeaderboard(ctx context.Context, payload []byte) (string, error) {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload leaderboard to R2: %w", err)
	}
	return fmt.Sprintf("%s/%s", b.cdnBaseURL, b.objectKey), nil
}

// GetLeaderboard reads the mirrored JSON back. A missing object returns
// (nil, nil): a board that has never been published has no mirror yet.
func (b *BlobStore) GetLeaderboard(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read leaderboard mirror: %w", err)
	}
	defer out.Body.Close()

	payload, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard mirror body: %w", err)
	}
	return payload, nil
}
