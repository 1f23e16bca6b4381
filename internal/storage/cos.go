package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tencentyun/cos-go-sdk-v5"

	apperrors "github.com/SagenKoder/hprof-parser/pkg/errors"
)

// COSConfig holds COS-specific configuration.
type COSConfig struct {
	Bucket    string
	Region    string
	SecretID  string
	SecretKey string
	Domain    string // e.g., "myqcloud.com"
	Scheme    string // e.g., "https" or "http"
}

// COSSource streams heap dumps from a Tencent Cloud COS bucket.
type COSSource struct {
	client    *cos.Client
	bucketURL *url.URL
}

// NewCOSSource creates a new COSSource instance.
func NewCOSSource(cfg *COSConfig) (*COSSource, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("bucket and region are required for COS storage")
	}
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("credentials are required for COS storage")
	}

	domain := cfg.Domain
	if domain == "" {
		domain = "myqcloud.com"
	}
	scheme := cfg.Scheme
	if scheme == "" {
		scheme = "https"
	}

	bucketURL, err := url.Parse(fmt.Sprintf("%s://%s.cos.%s.%s", scheme, cfg.Bucket, cfg.Region, domain))
	if err != nil {
		return nil, fmt.Errorf("failed to parse bucket URL: %w", err)
	}

	return newCOSSource(bucketURL, cfg.SecretID, cfg.SecretKey), nil
}

func newCOSSource(bucketURL *url.URL, secretID, secretKey string) *COSSource {
	client := cos.NewClient(&cos.BaseURL{BucketURL: bucketURL}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  secretID,
			SecretKey: secretKey,
		},
	})
	return &COSSource{client: client, bucketURL: bucketURL}
}

// Open streams the object stored at key. The body is read as it arrives;
// nothing is buffered to disk.
func (s *COSSource) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrNotFound, s.URL(key))
		}
		return nil, apperrors.Wrap(apperrors.CodeDownloadError, "failed to download from COS", err)
	}
	return resp.Body, nil
}

// Exists checks if an object exists at key.
func (s *COSSource) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.Object.IsExist(ctx, key)
	if err != nil {
		return false, apperrors.Wrap(apperrors.CodeDownloadError, "failed to check existence in COS", err)
	}
	return ok, nil
}

// URL returns the object URL of key.
func (s *COSSource) URL(key string) string {
	return s.bucketURL.String() + "/" + key
}
