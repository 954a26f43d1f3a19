// Package media hands out signed upload URLs for listing photos.
package media

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/abundantshare/share-backend/internal/domain"
	pkgerrors "github.com/abundantshare/share-backend/pkg/errors"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/google/uuid"
)

const (
	defaultMaxBytes = 10 * 1024 * 1024
	keyPrefix       = "listings"
)

var allowedImageTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif"}

// Signer is the object-store surface the service needs.
type Signer interface {
	SignedURL(bucket, object, contentType string, expires time.Duration) (string, error)
	SignedReadURL(bucket, object string, expires time.Duration) (string, error)
	DeleteObject(ctx context.Context, bucket, object string) error
}

type Service interface {
	PresignListingImage(ctx context.Context, actor domain.Actor, input PresignInput) (*PresignOutput, error)
	DiscardImage(ctx context.Context, actor domain.Actor, objectKey string) error
}

type ServiceParams struct {
	Signer        Signer
	Bucket        string
	UploadTTL     time.Duration
	MaxBytes      int64
	PublicBaseURL string
	Logger        *logger.Logger
	Clock         func() time.Time
}

type service struct {
	signer     Signer
	bucket     string
	uploadTTL  time.Duration
	maxBytes   int64
	publicBase string
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Signer == nil {
		return nil, fmt.Errorf("object signer required")
	}
	if strings.TrimSpace(p.Bucket) == "" {
		return nil, fmt.Errorf("bucket required")
	}
	if p.UploadTTL <= 0 {
		return nil, fmt.Errorf("upload ttl must be positive")
	}
	if p.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	maxBytes := p.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	clock := p.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		signer:     p.Signer,
		bucket:     p.Bucket,
		uploadTTL:  p.UploadTTL,
		maxBytes:   maxBytes,
		publicBase: strings.TrimRight(p.PublicBaseURL, "/"),
		logg:       p.Logger,
		now:        clock,
	}, nil
}

type PresignInput struct {
	FileName  string
	MimeType  string
	SizeBytes int64
}

// PresignOutput is returned to the client. PublicURL is what goes into a
// listing's images once the PUT succeeds; PreviewURL reads the object back
// before it is public.
type PresignOutput struct {
	ObjectKey    string    `json:"object_key"`
	SignedPUTURL string    `json:"signed_put_url"`
	PreviewURL   string    `json:"preview_url"`
	PublicURL    string    `json:"public_url"`
	ContentType  string    `json:"content_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

func (s *service) PresignListingImage(ctx context.Context, actor domain.Actor, input PresignInput) (*PresignOutput, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	fileName := strings.TrimSpace(input.FileName)
	if fileName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file_name is required")
	}
	if input.SizeBytes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "size_bytes must be positive")
	}
	if input.SizeBytes > s.maxBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("size_bytes must be at most %d", s.maxBytes))
	}
	mimeType := strings.ToLower(strings.TrimSpace(input.MimeType))
	if !isAllowedImage(mimeType) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mime_type must be one of "+strings.Join(allowedImageTypes, ", ")).
			WithDetails(map[string]any{"allowed": allowedImageTypes})
	}

	key := buildObjectKey(actor.UserID, uuid.NewString(), fileName)
	signed, err := s.signer.SignedURL(s.bucket, key, mimeType, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}
	preview, err := s.signer.SignedReadURL(s.bucket, key, s.uploadTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign preview url")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"object_key": key, "user_id": actor.UserID})
	s.logg.Info(ctx, "media.upload_presigned")

	return &PresignOutput{
		ObjectKey:    key,
		SignedPUTURL: signed,
		PreviewURL:   preview,
		PublicURL:    s.publicURL(key),
		ContentType:  mimeType,
		ExpiresAt:    s.now().Add(s.uploadTTL).UTC(),
	}, nil
}

// DiscardImage deletes an uploaded object. Only the uploader or an admin may
// delete it.
func (s *service) DiscardImage(ctx context.Context, actor domain.Actor, objectKey string) error {
	key := strings.TrimSpace(objectKey)
	if key == "" || strings.Contains(key, "..") || !strings.HasPrefix(key, keyPrefix+"/") {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid object key")
	}
	if !actor.IsAdmin() && !strings.HasPrefix(key, keyPrefix+"/"+actor.UserID+"/") {
		return pkgerrors.New(pkgerrors.CodeForbidden, "object belongs to another user")
	}
	if err := s.signer.DeleteObject(ctx, s.bucket, key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete object")
	}
	s.logg.Info(s.logg.WithField(ctx, "object_key", key), "media.image_discarded")
	return nil
}

func (s *service) publicURL(key string) string {
	return s.publicBase + "/" + s.bucket + "/" + key
}

func isAllowedImage(mimeType string) bool {
	for _, candidate := range allowedImageTypes {
		if candidate == mimeType {
			return true
		}
	}
	return false
}

func buildObjectKey(userID, id, fileName string) string {
	cleanName := sanitizeFileName(fileName)
	if cleanName == "" {
		cleanName = id
	}
	return fmt.Sprintf("%s/%s/%s/%s", keyPrefix, sanitizeFileName(userID), id, cleanName)
}

// sanitizeFileName keeps the base name, drops separators and control runes,
// and maps whitespace to dashes.
func sanitizeFileName(name string) string {
	clean := path.Base(strings.TrimSpace(name))
	if clean == "." || clean == "/" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(clean))
	for _, r := range clean {
		switch {
		case r == '/' || r == '\\' || r == '?' || r == '#' || unicode.IsControl(r):
			continue
		case unicode.IsSpace(r):
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-_.")
}
