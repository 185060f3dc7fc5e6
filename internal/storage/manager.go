package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Dezexus/SubVision/internal/config"
)

const presignExpiry = time.Hour

// Manager moves processing artifacts between the local cache and an
// S3-compatible bucket. Without a configured endpoint it degrades to
// local-only mode: uploads succeed as no-ops, downloads just check
// the cache, and presigning is unavailable so callers stream the file
// themselves.
type Manager struct {
	bucket  string
	client  *s3.Client
	presign *s3.PresignClient

	bucketOnce    sync.Once
	bucketChecked bool
}

// NewManager builds the storage layer from settings. A nil client
// (local-only mode) is a supported state, not an error.
func NewManager(ctx context.Context, cfg *config.Settings) (*Manager, error) {
	m := &Manager{bucket: cfg.S3Bucket}
	if cfg.LocalOnly() {
		log.Printf("[Storage] no S3 endpoint configured, running local-only")
		return m, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}

	endpoint := cfg.S3Endpoint
	m.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		// MinIO and friends resolve buckets by path, not subdomain.
		o.UsePathStyle = true
	})
	m.presign = s3.NewPresignClient(m.client)
	return m, nil
}

// LocalOnly reports whether object storage is disabled.
func (m *Manager) LocalOnly() bool { return m.client == nil }

// ensureBucket creates the bucket on first use. Checked once per
// process; a creation race with another process is not an error.
func (m *Manager) ensureBucket(ctx context.Context) {
	m.bucketOnce.Do(func() {
		_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &m.bucket})
		if err == nil {
			m.bucketChecked = true
			return
		}
		if _, err := m.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: &m.bucket}); err != nil {
			log.Printf("[Storage] create bucket %s failed: %v", m.bucket, err)
			return
		}
		m.bucketChecked = true
	})
}

// Upload pushes a local file to the bucket. In local-only mode the
// file is already where it needs to be, so Upload reports success.
func (m *Manager) Upload(ctx context.Context, localPath, key string) error {
	if m.LocalOnly() {
		return nil
	}
	m.ensureBucket(ctx)

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s for upload: %w", localPath, err)
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Download fetches key into localPath. In local-only mode it only
// verifies that the cached file exists.
func (m *Manager) Download(ctx context.Context, key, localPath string) error {
	if m.LocalOnly() {
		if _, err := os.Stat(localPath); err != nil {
			return fmt.Errorf("local file %s: %w", localPath, err)
		}
		return nil
	}
	m.ensureBucket(ctx)

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
	})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", localPath, err)
	}
	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("write %s: %w", localPath, err)
	}
	return f.Close()
}

// PresignURL returns a temporary GET URL for key, or "" in local-only
// mode, telling the caller to stream the file itself.
func (m *Manager) PresignURL(ctx context.Context, key string) (string, error) {
	if m.LocalOnly() {
		return "", nil
	}
	m.ensureBucket(ctx)

	req, err := m.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &m.bucket,
		Key:    &key,
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
