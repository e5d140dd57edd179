package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"podscript/internal/config"
	"podscript/internal/logging"
	"podscript/internal/services"
)

const uploadTimeout = 2 * time.Minute

// Uploader stores one object.
type Uploader interface {
	Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}

// GCSPublisher uploads episode directories to Cloud Storage.
type GCSPublisher struct {
	bucket   string
	uploader Uploader
	closer   io.Closer
	logger   *slog.Logger
}

// PublisherOption customizes a GCSPublisher.
type PublisherOption func(*GCSPublisher)

// WithUploader replaces the Cloud Storage client.
func WithUploader(u Uploader) PublisherOption {
	return func(p *GCSPublisher) { p.uploader = u }
}

// WithPublisherLogger sets the publisher logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *GCSPublisher) { p.logger = logger }
}

// NewGCSPublisher builds a publisher for cfg. A storage client is created
// only when no Uploader option is supplied.
func NewGCSPublisher(ctx context.Context, cfg config.Publish, opts ...PublisherOption) (*GCSPublisher, error) {
	bucket := strings.TrimSpace(cfg.GCSBucket)
	if bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "publish", "init", "publish.gcs_bucket is required", nil)
	}
	p := &GCSPublisher{bucket: bucket}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = logging.NewComponentLogger(p.logger, "publish")
	if p.uploader == nil {
		clientOpts := []option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}
		if creds := strings.TrimSpace(cfg.CredentialsFile); creds != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(creds))
		}
		client, err := storage.NewClient(ctx, clientOpts...)
		if err != nil {
			return nil, services.Wrap(services.ErrExternalTool, "publish", "init", "create storage client", err)
		}
		p.uploader = gcsUploader{client: client}
		p.closer = client
	}
	return p, nil
}

// Close releases the storage client.
func (p *GCSPublisher) Close() error {
	if p == nil || p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// Publish uploads the artifacts found in dir to prefix/<dir name>/. Missing
// artifacts are skipped. It returns the gs:// URIs written.
func (p *GCSPublisher) Publish(ctx context.Context, dir, prefix string) ([]string, error) {
	episode := filepath.Base(filepath.Clean(dir))
	base := path.Join(strings.Trim(prefix, "/"), episode)
	logger := logging.WithContext(ctx, p.logger)

	var uris []string
	for _, name := range Files {
		local := filepath.Join(dir, name)
		f, err := os.Open(local)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return uris, fmt.Errorf("open %s: %w", local, err)
		}
		key := path.Join(base, name)
		uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
		err = p.uploader.Upload(uploadCtx, p.bucket, key, contentType(name), f)
		cancel()
		_ = f.Close()
		if err != nil {
			return uris, services.Wrap(services.ErrExternalTool, "publish", "upload", key, err)
		}
		uris = append(uris, "gs://"+p.bucket+"/"+key)
	}
	if len(uris) == 0 {
		return nil, services.Wrap(services.ErrValidation, "publish", "upload", fmt.Sprintf("no artifacts in %s", dir), nil)
	}
	logger.Info("episode published",
		logging.String(logging.FieldEventType, "episode_published"),
		logging.String("bucket", p.bucket),
		logging.String("prefix", base),
		logging.Int("objects", len(uris)),
	)
	return uris, nil
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

type gcsUploader struct {
	client *storage.Client
}

func (u gcsUploader) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	w := u.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}
