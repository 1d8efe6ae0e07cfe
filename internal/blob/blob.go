// Package blob persists user-attached media. Images referenced by provider
// media ids are fetched from the Graph API and stored in S3.
package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fizzycl/partsflow/internal/util"
)

// DefaultFetchTimeout bounds a single media download.
const DefaultFetchTimeout = 60 * time.Second

// DefaultGraphBase is the provider media endpoint.
const DefaultGraphBase = "https://graph.facebook.com/v18.0"

// Uploader stores an attached media object and returns its stored key.
type Uploader interface {
	Upload(ctx context.Context, mediaID string) (string, error)
}

// Disabled is an Uploader for deployments without a media bucket. Every
// upload fails, which callers treat as a request without an attachment.
type Disabled struct{}

func (Disabled) Upload(context.Context, string) (string, error) {
	return "", fmt.Errorf("media storage not configured")
}

// mediaData is the provider's media metadata payload.
type mediaData struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	ID       string `json:"id"`
}

// objectPutter is the slice of the S3 API the uploader uses.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Opts holds configuration for the media uploader.
type Opts struct {
	GraphBase string
	Token     string
	Bucket    string
	Client    *http.Client
	S3        objectPutter
}

// Option configures a MediaUploader.
type Option func(*Opts)

// WithGraphBase overrides the provider media endpoint.
func WithGraphBase(base string) Option {
	return func(o *Opts) { o.GraphBase = base }
}

// WithToken sets the provider access token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithBucket sets the destination bucket.
func WithBucket(bucket string) Option {
	return func(o *Opts) { o.Bucket = bucket }
}

// WithHTTPClient overrides the HTTP client used for media downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.Client = client }
}

// WithS3Client overrides the S3 client.
func WithS3Client(client objectPutter) Option {
	return func(o *Opts) { o.S3 = client }
}

// MediaUploader downloads provider media and stores it in S3.
type MediaUploader struct {
	graphBase string
	token     string
	bucket    string
	client    *http.Client
	s3        objectPutter
}

// NewMediaUploader creates an uploader. When no S3 client is injected the
// default AWS configuration chain is used.
func NewMediaUploader(ctx context.Context, opts ...Option) (*MediaUploader, error) {
	cfg := Opts{GraphBase: DefaultGraphBase}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewMediaUploader: creating media uploader", "bucket_set", cfg.Bucket != "", "token_set", cfg.Token != "")

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("media bucket not set")
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if cfg.S3 == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		cfg.S3 = s3.NewFromConfig(awsCfg)
	}

	return &MediaUploader{
		graphBase: cfg.GraphBase,
		token:     cfg.Token,
		bucket:    cfg.Bucket,
		client:    cfg.Client,
		s3:        cfg.S3,
	}, nil
}

// Upload resolves a provider media id, downloads the object and stores it in
// the bucket. It returns the stored object key.
func (u *MediaUploader) Upload(ctx context.Context, mediaID string) (string, error) {
	meta, err := u.fetchMetadata(ctx, mediaID)
	if err != nil {
		return "", err
	}

	data, err := u.download(ctx, meta.URL)
	if err != nil {
		return "", err
	}

	key := util.NewID() + ".jpeg"
	_, err = u.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(meta.MimeType),
	})
	if err != nil {
		slog.Error("MediaUploader.Upload: S3 put failed", "error", err, "bucket", u.bucket, "key", key)
		return "", fmt.Errorf("failed to store media %s: %w", mediaID, err)
	}

	slog.Debug("MediaUploader.Upload: media stored", "media_id", mediaID, "key", key, "bytes", len(data))
	return key, nil
}

func (u *MediaUploader) fetchMetadata(ctx context.Context, mediaID string) (mediaData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.graphBase+"/"+mediaID, nil)
	if err != nil {
		return mediaData{}, fmt.Errorf("failed to build media metadata request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.client.Do(req)
	if err != nil {
		return mediaData{}, fmt.Errorf("failed to fetch media metadata for %s: %w", mediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mediaData{}, fmt.Errorf("media metadata request for %s returned status %d", mediaID, resp.StatusCode)
	}

	var meta mediaData
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return mediaData{}, fmt.Errorf("failed to decode media metadata for %s: %w", mediaID, err)
	}
	if meta.URL == "" {
		return mediaData{}, fmt.Errorf("media metadata for %s has no download URL", mediaID)
	}
	return meta, nil
}

func (u *MediaUploader) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+u.token)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media download returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
