package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3PutObjectAPI is the part of *s3.Client the uploader needs.
type S3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader publishes a feed file to S3 and announces it over a webhook.
type Uploader struct {
	cfg  RokuConfig
	s3   S3PutObjectAPI
	http httpDoer
	now  func() time.Time
}

// NewS3Client loads the default AWS credential chain for region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg), nil
}

// NewUploader builds an uploader; a nil s3 client disables uploads and a nil
// doer uses a 30 second http.Client for webhooks.
func NewUploader(cfg RokuConfig, client S3PutObjectAPI, doer httpDoer) *Uploader {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &Uploader{cfg: cfg, s3: client, http: doer, now: time.Now}
}

func (u *Uploader) key() string {
	if u.cfg.S3Key != "" {
		return u.cfg.S3Key
	}
	return DefaultS3Key
}

// UploadToS3 stores the feed at path as a public-read JSON object and returns its URL.
func (u *Uploader) UploadToS3(ctx context.Context, path string) (string, error) {
	if u.cfg.S3Bucket == "" {
		return "", ErrNoBucket
	}
	if u.s3 == nil {
		return "", fmt.Errorf("s3 client is not configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	key := u.key()
	_, err = u.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.S3Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("application/json"),
		ACL:         types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("upload feed to s3://%s/%s: %w", u.cfg.S3Bucket, key, err)
	}

	url := fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.cfg.S3Bucket, key)
	log.Printf("Feed uploaded to S3: %s", url)
	return url, nil
}

type webhookPayload struct {
	Event     string `json:"event"`
	FeedURL   string `json:"feed_url"`
	Timestamp string `json:"timestamp"`
}

// NotifyWebhook posts a feed_updated event to the configured webhook.
func (u *Uploader) NotifyWebhook(ctx context.Context, feedURL string) error {
	if u.cfg.WebhookURL == "" {
		return ErrNoWebhook
	}

	body, err := json.Marshal(webhookPayload{
		Event:     "feed_updated",
		FeedURL:   feedURL,
		Timestamp: u.now().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	log.Printf("Webhook notification sent to %s", u.cfg.WebhookURL)
	return nil
}
