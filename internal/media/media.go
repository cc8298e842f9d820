// Package media issues presigned upload URLs for avatars, banners and
// session photos, and builds the public URLs stored on profiles and
// photo rows.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/roach88/fitsync/internal/config"
)

// Kind is the category of an uploaded object. It is also the first
// segment of the object key.
type Kind string

const (
	KindAvatar Kind = "avatar"
	KindBanner Kind = "banner"
	KindPhoto  Kind = "photo"
)

const megabyte = 1 << 20

// MaxSize returns the upload limit in bytes for k, or 0 for an unknown kind.
func MaxSize(k Kind) int64 {
	switch k {
	case KindAvatar:
		return 2 * megabyte
	case KindBanner, KindPhoto:
		return 5 * megabyte
	default:
		return 0
	}
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if MaxSize(k) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

var (
	ErrUnknownKind     = errors.New("unknown media kind")
	ErrTooLarge        = errors.New("file too large")
	ErrEmptyFile       = errors.New("empty file")
	ErrUnsupportedType = errors.New("unsupported content type")
	ErrPhotoLimit      = errors.New("photo limit reached")
)

// Presigner is the part of the S3 presign client used here.
type Presigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// UploadRequest describes a file the client is about to upload.
type UploadRequest struct {
	Kind        Kind
	OwnerID     string
	FileName    string
	ContentType string
	Size        int64
}

// Upload is a presigned PUT the client performs itself.
type Upload struct {
	Method    string      `json:"method"`
	URL       string      `json:"url"`
	Headers   http.Header `json:"headers,omitempty"`
	Key       string      `json:"key"`
	PublicURL string      `json:"public_url"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Service presigns uploads against one bucket.
type Service struct {
	presigner  Presigner
	bucket     string
	region     string
	publicBase string
	expiry     time.Duration
	maxPhotos  int
	newID      func() string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithIDFunc replaces the random key component, for deterministic keys.
func WithIDFunc(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// WithNow sets the clock used for ExpiresAt.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a Service over an existing presigner.
func NewService(p Presigner, cfg config.MediaConfig, opts ...Option) *Service {
	s := &Service{
		presigner:  p,
		bucket:     cfg.Bucket,
		region:     cfg.Region,
		publicBase: strings.TrimRight(cfg.PublicBaseURL, "/"),
		expiry:     cfg.UploadExpiry,
		maxPhotos:  cfg.MaxPhotos,
		newID:      func() string { return uuid.NewString() },
		now:        time.Now,
		logger:     slog.Default(),
	}
	if s.expiry <= 0 {
		s.expiry = 5 * time.Minute
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// New builds an S3 presign client from cfg and wraps it in a Service.
// Static credentials are used when both keys are set, otherwise the
// default AWS credential chain. A custom Endpoint switches to path-style
// addressing for S3-compatible stores.
func New(ctx context.Context, cfg config.MediaConfig, opts ...Option) (*Service, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewService(s3.NewPresignClient(client), cfg, opts...), nil
}

// MaxPhotos is the number of photos a session may carry.
func (s *Service) MaxPhotos() int {
	return s.maxPhotos
}

// Key returns the object key for a new upload:
// <kind>/<ownerID>/<id>-<file>.
func (s *Service) Key(kind Kind, ownerID, fileName string) string {
	return fmt.Sprintf("%s/%s/%s-%s", kind, ownerID, s.newID(), cleanFileName(fileName))
}

// PublicURL returns the URL an object is served from once uploaded.
func (s *Service) PublicURL(key string) string {
	if s.publicBase != "" {
		return s.publicBase + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// PresignUpload validates req and returns a presigned PUT for it.
func (s *Service) PresignUpload(ctx context.Context, req UploadRequest) (Upload, error) {
	limit := MaxSize(req.Kind)
	if limit == 0 {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
	}
	if req.OwnerID == "" {
		return Upload{}, errors.New("presign upload: missing owner")
	}
	if req.Size <= 0 {
		return Upload{}, ErrEmptyFile
	}
	if req.Size > limit {
		return Upload{}, fmt.Errorf("%w: %s is %d bytes, max %d", ErrTooLarge, req.FileName, req.Size, limit)
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		return Upload{}, fmt.Errorf("%w: %q", ErrUnsupportedType, req.ContentType)
	}

	key := s.Key(req.Kind, req.OwnerID, req.FileName)
	signed, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		ContentType:   aws.String(req.ContentType),
		ContentLength: aws.Int64(req.Size),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return Upload{}, fmt.Errorf("presign %s: %w", key, err)
	}

	s.logger.Debug("presigned upload", "kind", req.Kind, "owner", req.OwnerID, "key", key)
	return Upload{
		Method:    signed.Method,
		URL:       signed.URL,
		Headers:   signed.SignedHeader,
		Key:       key,
		PublicURL: s.PublicURL(key),
		ExpiresAt: s.now().Add(s.expiry),
	}, nil
}

// CheckPhotoQuota returns how many more photos fit on a session that
// already has existing ones, or ErrPhotoLimit when none do.
func (s *Service) CheckPhotoQuota(existing int) (int, error) {
	remaining := s.maxPhotos - existing
	if remaining <= 0 {
		return 0, fmt.Errorf("%w: max %d photos per session", ErrPhotoLimit, s.maxPhotos)
	}
	return remaining, nil
}

func cleanFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
