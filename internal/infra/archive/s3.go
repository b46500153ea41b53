package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3Config struct {
	Region   string
	Bucket   string
	Endpoint string
}

// S3Archive stores verified webhook payloads, one object per provider event.
type S3Archive struct {
	bucket string
	s3     *s3.Client
}

func NewS3Archive(ctx context.Context, cfg S3Config) (*S3Archive, error) {
	if cfg.Region == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 region and bucket are required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Archive{bucket: cfg.Bucket, s3: client}, nil
}

// ObjectKey is webhooks/YYYY/MM/DD/<event id>.json.
func ObjectKey(eventID string, receivedAt time.Time) string {
	return fmt.Sprintf("webhooks/%s/%s.json", receivedAt.UTC().Format("2006/01/02"), eventID)
}

func (a *S3Archive) Store(ctx context.Context, eventID, eventType string, payload []byte, receivedAt time.Time) error {
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(eventID, receivedAt)),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"event-type": eventType,
		},
	})
	if err != nil {
		return fmt.Errorf("archive webhook %s: %w", eventID, err)
	}
	return nil
}
