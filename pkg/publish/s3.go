// Package publish uploads a finalized bridge artifact to S3-compatible
// object storage.
package publish

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ContentType is the media type stored with uploaded artifacts.
const ContentType = "application/x-ndjson"

// Config locates the bucket.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Enabled reports whether enough is configured to attempt an upload.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// Metadata identifies what an artifact was built from.
type Metadata struct {
	Repo     string
	Head     string
	Language string
	BuiltAt  time.Time
}

// Object describes an uploaded artifact.
type Object struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size"`
	ETag   string `json:"etag"`
}

// S3Publisher uploads artifacts with minio-go.
type S3Publisher struct {
	client   *minio.Client
	bucket   string
	region   string
	prefix   string
	initOnce sync.Once
	initErr  error
}

// NewS3Publisher validates cfg and creates a client. No request is made
// until the first Publish.
func NewS3Publisher(cfg Config) (*S3Publisher, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Publisher{
		client: client,
		bucket: bucket,
		region: region,
		prefix: strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
	}, nil
}

func (p *S3Publisher) ensureBucket(ctx context.Context) error {
	p.initOnce.Do(func() {
		exists, err := p.client.BucketExists(ctx, p.bucket)
		if err != nil {
			p.initErr = err
			return
		}
		if exists {
			return
		}
		p.initErr = p.client.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{Region: p.region})
	})
	return p.initErr
}

// Publish uploads the artifact at file.
func (p *S3Publisher) Publish(ctx context.Context, file string, meta Metadata) (Object, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return Object{}, fmt.Errorf("ensure bucket: %w", err)
	}

	key := ObjectKey(p.prefix, meta)
	info, err := p.client.FPutObject(ctx, p.bucket, key, file, minio.PutObjectOptions{
		ContentType: ContentType,
		UserMetadata: map[string]string{
			"repo":     meta.Repo,
			"head":     meta.Head,
			"language": meta.Language,
		},
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}
	return Object{Bucket: info.Bucket, Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ObjectKey builds "<prefix>/<repo>/<revision>/sential_payload.jsonl",
// where revision is the short HEAD hash, or the build time for a repository
// without commits.
func ObjectKey(prefix string, meta Metadata) string {
	repo := unsafeKeyChars.ReplaceAllString(meta.Repo, "-")
	repo = strings.Trim(repo, "-")
	if repo == "" {
		repo = "repository"
	}

	rev := meta.Head
	if len(rev) > 12 {
		rev = rev[:12]
	}
	if rev == "" {
		built := meta.BuiltAt
		if built.IsZero() {
			built = time.Now()
		}
		rev = built.UTC().Format("20060102T150405Z")
	}

	parts := []string{repo, rev, "sential_payload.jsonl"}
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		parts = append([]string{prefix}, parts...)
	}
	return path.Join(parts...)
}
