// Package archive uploads generated research documents to S3. The archive
// is optional: the rest of the system treats a nil uploader as "archiving
// disabled" and upload failures never abort a pipeline.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/domain"
)

const contentType = "text/markdown; charset=utf-8"

// Config selects the bucket and credentials. AccessKey/SecretKey may be
// empty, in which case the default AWS credential chain applies.
type Config struct {
	Bucket    string
	Region    string
	Prefix    string
	AccessKey string
	SecretKey string
}

// Uploader writes memo and screen Markdown to S3 under a fixed key layout:
// memos/{ticker}/{id}.md and screens/{id}.md, below the configured prefix.
type Uploader struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
	region   string
	log      zerolog.Logger
}

// New creates an S3 uploader.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return &Uploader{
		uploader: manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:   cfg.Bucket,
		prefix:   strings.Trim(cfg.Prefix, "/"),
		region:   cfg.Region,
		log:      log.With().Str("component", "archive").Logger(),
	}, nil
}

// UploadMemo implements memo.Archiver.
func (u *Uploader) UploadMemo(ctx context.Context, m *domain.Memo) (string, error) {
	return u.upload(ctx, u.key(fmt.Sprintf("memos/%s/%s.md", m.Ticker, m.ID)), m.Body)
}

// UploadScreen implements screen.Archiver.
func (u *Uploader) UploadScreen(ctx context.Context, result *domain.ScreenResult) (string, error) {
	return u.upload(ctx, u.key(fmt.Sprintf("screens/%s.md", result.ID)), result.Body)
}

func (u *Uploader) upload(ctx context.Context, key, body string) (string, error) {
	out, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(body)),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	u.log.Info().Str("key", key).Int("bytes", len(body)).Msg("Document archived")

	if out.Location != "" {
		return out.Location, nil
	}
	return u.objectURL(key), nil
}

func (u *Uploader) key(suffix string) string {
	if u.prefix == "" {
		return suffix
	}
	return u.prefix + "/" + suffix
}

// objectURL builds the virtual-hosted URL for a key. Only used when the
// uploader response carries no location.
func (u *Uploader) objectURL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key)
}
