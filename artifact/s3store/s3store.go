// Package s3store publishes claim certificates to an S3-compatible bucket.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/xraph/accredit/artifact"
	"github.com/xraph/accredit/claim"
)

// ObjectPutter is the subset of *s3.Client used by the publisher.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config locates the bucket. Endpoint and static keys are optional; when
// keys are empty the default AWS credential chain is used.
type Config struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Publisher writes JSON receipts to S3.
type Publisher struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

var _ artifact.Publisher = (*Publisher)(nil)

// New returns a Publisher writing to bucket through client.
func New(client ObjectPutter, bucket, prefix string) *Publisher {
	return &Publisher{
		client: client,
		bucket: bucket,
		prefix: prefix,
		now:    time.Now,
	}
}

// NewFromConfig builds an S3 client from cfg and returns a Publisher.
func NewFromConfig(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3store: bucket is required")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3store: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return New(client, cfg.Bucket, cfg.Prefix), nil
}

// Publish uploads the receipt for c and returns its object key.
func (p *Publisher) Publish(ctx context.Context, c *claim.Claim) (string, error) {
	body, err := artifact.NewReceipt(c, p.now()).Encode()
	if err != nil {
		return "", fmt.Errorf("s3store: encode receipt: %w", err)
	}

	key := artifact.Key(p.prefix, c)
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("s3store: put %s: %w", key, err)
	}

	return key, nil
}
