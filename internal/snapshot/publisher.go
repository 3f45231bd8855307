// Package snapshot periodically publishes the leaderboard as JSON to an
// S3-compatible bucket, so a static page or CDN can serve it without
// touching the API.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/xid"

	"github.com/sakif/matchday-predictor/internal/model"
)

const latestObject = "latest.json"

// ObjectPutter is the slice of the S3 API the publisher needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ ObjectPutter = (*s3.Client)(nil)

// S3Config configures the S3 client. Endpoint is only needed for
// S3-compatible stores such as Cloudflare R2 or MinIO; static credentials
// are optional and fall back to the default AWS chain.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: loading AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Snapshot is the published document.
type Snapshot struct {
	GeneratedAt time.Time                `json:"generatedAt"`
	Entries     []model.LeaderboardEntry `json:"entries"`
}

// Publisher writes snapshots under prefix: a timestamped history object
// and latest.json, which is overwritten each time.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
	newID  func() string
}

// NewPublisher creates a Publisher for bucket.
func NewPublisher(client ObjectPutter, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
		newID:  func() string { return xid.New().String() },
	}
}

// Publish uploads entries and returns the history object's key. The
// history object is written first so latest.json never points ahead of
// the history.
func (p *Publisher) Publish(ctx context.Context, entries []model.LeaderboardEntry) (string, error) {
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	now := p.now().UTC()
	body, err := json.Marshal(Snapshot{GeneratedAt: now, Entries: entries})
	if err != nil {
		return "", fmt.Errorf("snapshot: encoding: %w", err)
	}

	key := path.Join(p.prefix, fmt.Sprintf("%s-%s.json", now.Format("20060102T150405Z"), p.newID()))
	for _, k := range []string{key, path.Join(p.prefix, latestObject)} {
		if err := p.put(ctx, k, body); err != nil {
			return "", err
		}
	}
	return key, nil
}

func (p *Publisher) put(ctx context.Context, key string, body []byte) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(p.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(body),
		ContentType:  aws.String("application/json"),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: uploading %s: %w", key, err)
	}
	return nil
}
