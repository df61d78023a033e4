package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/ternarybob/arbor"

	"github.com/IzacPS/conecta-sei-backend/internal/common"
	"github.com/IzacPS/conecta-sei-backend/internal/interfaces"
)

const documentContentType = "application/pdf"

// Store is the S3-backed document bucket. A process-wide singleton with
// double-checked initialization: the fast path reads an atomic-published
// client without locking; the first caller initializes under the mutex.
// When initialization fails the store stays disabled and every Upload
// reports false so the downloader records partial status instead.
type Store struct {
	logger    arbor.ILogger
	cfg       common.ObjectStoreConfig
	mu        sync.Mutex
	client    *s3.Client
	bucket    string
	publicURL string
	enabled   bool
	attempted bool
	ready     atomic.Bool // published after a successful init
}

// Compile-time assertion
var _ interfaces.ObjectStore = (*Store)(nil)

var (
	instance *Store
	once     sync.Once
)

// Instance returns the process-wide store, creating it on first call.
// Initialization of the underlying client is deferred to first use.
func Instance(cfg common.ObjectStoreConfig, logger arbor.ILogger) *Store {
	once.Do(func() {
		instance = &Store{logger: logger, cfg: cfg}
	})
	return instance
}

// NewStore creates an independent store. Used by tests; production code goes
// through Instance.
func NewStore(cfg common.ObjectStoreConfig, logger arbor.ILogger) *Store {
	return &Store{logger: logger, cfg: cfg}
}

// ensureInit initializes the S3 client once. Safe for concurrent callers;
// a failed attempt is remembered and not retried within the process.
func (s *Store) ensureInit() bool {
	if s.enabledFast() {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempted {
		return s.enabled
	}
	s.attempted = true

	accessKey, secretKey := s.cfg.AccessKey, s.cfg.SecretKey
	if s.cfg.Credentials != "" {
		parts := strings.SplitN(s.cfg.Credentials, ":", 2)
		if len(parts) == 2 {
			accessKey, secretKey = parts[0], parts[1]
		}
	}

	if accessKey == "" || secretKey == "" || s.cfg.Bucket == "" {
		s.logger.Warn().Msg("Object store not configured; uploads will be deferred")
		return false
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(s.cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load object store configuration")
		return false
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.cfg.Endpoint != "" {
			scheme := "http"
			if s.cfg.UseSSL {
				scheme = "https"
			}
			o.BaseEndpoint = aws.String(fmt.Sprintf("%s://%s", scheme, normalizeEndpoint(s.cfg.Endpoint)))
			o.UsePathStyle = true
		}
	})

	s.client = client
	s.bucket = s.cfg.Bucket
	s.publicURL = strings.TrimSuffix(s.cfg.PublicURL, "/")
	s.enabled = true
	s.ready.Store(true)

	s.logger.Info().Str("bucket", s.bucket).Msg("Object store initialized")
	return true
}

func (s *Store) enabledFast() bool {
	return s.ready.Load()
}

// normalizeEndpoint strips protocol prefix, path and trailing slashes
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	if idx := strings.Index(endpoint, "/"); idx != -1 {
		endpoint = endpoint[:idx]
	}
	return strings.TrimSuffix(endpoint, "/")
}

// DocumentPath builds the canonical blob path for one document
func DocumentPath(tenantID, processNumber, documentNumber string) string {
	return fmt.Sprintf("%s/%s/%s.pdf", tenantID, processNumber, documentNumber)
}

// Enabled reports whether the store finished initialization successfully
func (s *Store) Enabled() bool {
	return s.ensureInit()
}

// Upload stores data at path with the PDF content type. Returns false on any
// failure, including an unconfigured store.
func (s *Store) Upload(ctx context.Context, path string, data []byte) bool {
	if !s.ensureInit() {
		return false
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(documentContentType),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Object upload failed")
		return false
	}

	s.logger.Debug().Str("path", path).Int("size", len(data)).Msg("Object uploaded")
	return true
}

// Delete removes an object. Returns false on failure.
func (s *Store) Delete(ctx context.Context, path string) bool {
	if !s.ensureInit() {
		return false
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Object delete failed")
		return false
	}
	return true
}

// URLFor returns the public URL for an object
func (s *Store) URLFor(path string) string {
	if s.publicURL != "" {
		return fmt.Sprintf("%s/%s", s.publicURL, path)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, path)
}
