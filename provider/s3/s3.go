// Package s3 is a network provider storing one object per key under a prefix.
// S3 has no per-object TTL; entry frames carry their own expiry and bucket
// lifecycle rules can reap what readers never touch again.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	pr "github.com/unkn0wn-root/cachechain/provider"
)

// deleteBatch is the DeleteObjects limit per request.
const deleteBatch = 1000

var ErrNoBucket = errors.New("s3 provider: bucket is required")

// API is the subset of *s3.Client the provider uses.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	s3.ListObjectsV2APIClient
}

type Provider struct {
	api    API
	bucket string
	prefix string
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Client API
	Bucket string
	Prefix string // e.g. "cache/"; Clear deletes everything under it
}

func New(cfg Config) (*Provider, error) {
	if cfg.Client == nil {
		return nil, errors.New("s3 provider: nil client")
	}
	if cfg.Bucket == "" {
		return nil, ErrNoBucket
	}
	return &Provider{api: cfg.Client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ClientConfig describes how to reach the bucket when no client is supplied.
type ClientConfig struct {
	Region          string
	Endpoint        string // custom endpoint (MinIO, LocalStack); implies path-style addressing
	AccessKeyID     string // static credentials; empty => default credential chain
	SecretAccessKey string
	SessionToken    string
}

// NewClient builds an *s3.Client from the default AWS config chain plus overrides.
func NewClient(ctx context.Context, cc ClientConfig) (*s3.Client, error) {
	var loaders []func(*awsconfig.LoadOptions) error
	if cc.Region != "" {
		loaders = append(loaders, awsconfig.WithRegion(cc.Region))
	}
	if cc.AccessKeyID != "" {
		loaders = append(loaders, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cc.AccessKeyID, cc.SecretAccessKey, cc.SessionToken),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("s3 provider: load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if cc.Endpoint != "" {
			o.BaseEndpoint = aws.String(cc.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (p *Provider) key(k string) string { return p.prefix + k }

func (p *Provider) Get(ctx context.Context, key string) ([]byte, bool, error) {
	out, err := p.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(ctx context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	_, err := p.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.bucket),
		Key:           aws.String(p.key(key)),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(ctx context.Context, key string) error {
	_, err := p.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key(key)),
	})
	return err
}

// Clear lists the prefix and deletes it in batches.
func (p *Provider) Clear(ctx context.Context) error {
	pages := s3.NewListObjectsV2Paginator(p.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	})
	batch := make([]types.ObjectIdentifier, 0, deleteBatch)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, obj := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: obj.Key})
			if len(batch) == deleteBatch {
				if err := p.deleteObjects(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
	}
	if len(batch) > 0 {
		return p.deleteObjects(ctx, batch)
	}
	return nil
}

func (p *Provider) deleteObjects(ctx context.Context, ids []types.ObjectIdentifier) error {
	out, err := p.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
	})
	if err != nil {
		return err
	}
	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return fmt.Errorf("s3 provider: %d objects not deleted, first %s: %s",
			len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}

func (p *Provider) Close(context.Context) error { return nil }

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}
