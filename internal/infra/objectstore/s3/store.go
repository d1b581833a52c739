// Package s3 stores objects in one bucket of an S3-compatible service such
// as AWS S3 or MinIO.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"linkcore/internal/infra/objectstore"
)

var _ objectstore.Store = (*Store)(nil)

// Config selects the bucket and how to reach it. Without AccessKeyID the
// default AWS credential chain is used.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
	HTTPClient      aws.HTTPClient
}

// Store is a bucket-backed object store.
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a client for cfg. It does not contact the service.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 object store: bucket required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	load := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)
		load = append(load, awsconfig.WithCredentialsProvider(creds))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, load...)
	if err != nil {
		return nil, fmt.Errorf("s3 object store: aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.HTTPClient != nil {
			o.HTTPClient = cfg.HTTPClient
		}
	})
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

func (s *Store) Backend() objectstore.Backend { return objectstore.BackendS3 }

// Create uses a conditional put, so the service rejects existing keys.
func (s *Store) Create(ctx context.Context, obj objectstore.Object) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(obj.Key),
		Body:        bytes.NewReader(obj.Body),
		IfNoneMatch: aws.String("*"),
		Metadata:    obj.Labels,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		if statusOf(err) == http.StatusPreconditionFailed {
			return fmt.Errorf("%w: %s", objectstore.ErrKeyTaken, obj.Key)
		}
		return fmt.Errorf("put %s: %w", obj.Key, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, key string) (objectstore.Object, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return objectstore.Object{}, fmt.Errorf("%w: %s", objectstore.ErrNoSuchKey, key)
		}
		return objectstore.Object{}, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = out.Body.Close() }()
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return objectstore.Object{}, fmt.Errorf("read %s: %w", key, err)
	}
	obj := objectstore.Object{Key: key, Body: body, ContentType: aws.ToString(out.ContentType)}
	if len(out.Metadata) > 0 {
		obj.Labels = out.Metadata
	}
	return obj, nil
}

func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		for _, item := range page.Contents {
			keys = append(keys, aws.ToString(item.Key))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// statusOf digs the HTTP status out of an SDK error, or returns 0.
func statusOf(err error) int {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}
