package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/config"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/metrics"
)

var (
	// ErrNotFound is returned when the location does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrUnsupportedScheme is returned for locations no backend can serve
	ErrUnsupportedScheme = errors.New("unsupported resource scheme")
)

// Kind identifies the backend of a resource
type Kind string

const (
	KindFile   Kind = "file"
	KindObject Kind = "object"
)

// Accessor describes a resolved media resource
type Accessor interface {
	Kind() Kind
	Location() string
	Size() int64
	ContentType() string
}

// FileAccessor is a resource on the local file system
type FileAccessor struct {
	path    string
	size    int64
	modTime time.Time
}

func (f *FileAccessor) Kind() Kind          { return KindFile }
func (f *FileAccessor) Location() string    { return f.path }
func (f *FileAccessor) Size() int64         { return f.size }
func (f *FileAccessor) ContentType() string { return getContentType(f.path) }

// LocalPath returns the absolute path of the file
func (f *FileAccessor) LocalPath() string { return f.path }

// ModTime returns the file's modification time
func (f *FileAccessor) ModTime() time.Time { return f.modTime }

// ObjectStore is the subset of the MinIO client used for object resources
type ObjectStore interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

// ObjectAccessor is a resource in an S3-compatible bucket
type ObjectAccessor struct {
	store       ObjectStore
	bucket      string
	key         string
	size        int64
	contentType string
}

func (o *ObjectAccessor) Kind() Kind       { return KindObject }
func (o *ObjectAccessor) Location() string { return "s3://" + o.bucket + "/" + o.key }
func (o *ObjectAccessor) Size() int64      { return o.size }

func (o *ObjectAccessor) ContentType() string {
	if o.contentType != "" {
		return o.contentType
	}
	return getContentType(o.key)
}

// Bucket returns the bucket name
func (o *ObjectAccessor) Bucket() string { return o.bucket }

// Key returns the object key
func (o *ObjectAccessor) Key() string { return o.key }

// Open streams the object
func (o *ObjectAccessor) Open(ctx context.Context) (io.ReadCloser, error) {
	object, err := o.store.GetObject(ctx, o.bucket, o.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return object, nil
}

// PresignedURL returns a time-limited URL readable by external processes
func (o *ObjectAccessor) PresignedURL(ctx context.Context, ttl time.Duration) (string, error) {
	u, err := o.store.PresignedGetObject(ctx, o.bucket, o.key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}
	return u.String(), nil
}

// Provider resolves media locations to accessors. Plain paths and file://
// URLs resolve to files; s3://bucket/key resolves to objects when a store
// is configured.
type Provider struct {
	store      ObjectStore
	presignTTL time.Duration
	logger     *logging.Logger
}

// NewProvider creates a provider. store may be nil for file-only deployments.
func NewProvider(store ObjectStore, presignTTL time.Duration, logger *logging.Logger) *Provider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if presignTTL <= 0 {
		presignTTL = time.Hour
	}
	return &Provider{
		store:      store,
		presignTTL: presignTTL,
		logger:     logger.WithComponent("resource"),
	}
}

// New creates a provider from configuration, connecting to MinIO when enabled
func New(cfg config.StorageConfig, logger *logging.Logger) (*Provider, error) {
	if !cfg.Enabled {
		return NewProvider(nil, cfg.PresignTTL, logger), nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return NewProvider(client, cfg.PresignTTL, logger), nil
}

// Lookup resolves a location
func (p *Provider) Lookup(ctx context.Context, location string) (Accessor, error) {
	start := time.Now()

	var acc Accessor
	var err error
	switch {
	case strings.HasPrefix(location, "s3://"):
		acc, err = p.lookupObject(ctx, strings.TrimPrefix(location, "s3://"))
	case strings.HasPrefix(location, "file://"):
		acc, err = lookupFile(strings.TrimPrefix(location, "file://"))
	case strings.Contains(location, "://"):
		err = fmt.Errorf("%w: %s", ErrUnsupportedScheme, location)
	default:
		acc, err = lookupFile(location)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOperation("lookup", status, time.Since(start).Seconds())

	return acc, err
}

// InputURL returns a location the transcoder process can read directly
func (p *Provider) InputURL(ctx context.Context, location string) (string, error) {
	acc, err := p.Lookup(ctx, location)
	if err != nil {
		return "", err
	}

	switch a := acc.(type) {
	case *FileAccessor:
		return a.LocalPath(), nil
	case *ObjectAccessor:
		return a.PresignedURL(ctx, p.presignTTL)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, location)
	}
}

func (p *Provider) lookupObject(ctx context.Context, rest string) (Accessor, error) {
	if p.store == nil {
		return nil, fmt.Errorf("%w: object storage is not configured", ErrUnsupportedScheme)
	}

	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return nil, fmt.Errorf("invalid object location %q", "s3://"+rest)
	}

	start := time.Now()
	info, err := p.store.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	p.logger.LogStorageOperation("stat", bucket, key, info.Size, time.Since(start), err)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: s3://%s/%s", ErrNotFound, bucket, key)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	return &ObjectAccessor{
		store:       p.store,
		bucket:      bucket,
		key:         key,
		size:        info.Size,
		contentType: info.ContentType,
	}, nil
}

func lookupFile(path string) (Accessor, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	return &FileAccessor{path: abs, size: info.Size(), modTime: info.ModTime()}, nil
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	case ".ts":
		return "video/mp2t"
	case ".m2ts", ".mts":
		return "video/vnd.dlna.mpeg-tts"
	case ".wmv", ".asf":
		return "video/x-ms-asf"
	case ".mpg", ".mpeg":
		return "video/mpeg"
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}
