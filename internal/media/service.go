// Package media stores editor uploads (photos for image and gallery blocks)
// in an S3-compatible bucket and hands back public URLs.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var allowedContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrUnsupportedType is returned for uploads that are not images.
var ErrUnsupportedType = fmt.Errorf("unsupported content type")

// Uploader writes objects to a single bucket, keyed by tenant.
type Uploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base URL objects are served from, e.g. a CDN or the
	// minio endpoint itself.
	PublicURL string
}

func New(opts Options) (*Uploader, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create media client: %w", err)
	}
	return &Uploader{
		client:    client,
		bucket:    opts.Bucket,
		publicURL: strings.TrimRight(opts.PublicURL, "/"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (u *Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

// Upload stores one image and returns its public URL. Object names are
// namespaced by tenant and randomized so uploads never collide.
func (u *Uploader) Upload(ctx context.Context, tenantID, filename string, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	if base == "" || base == "." {
		base = "upload"
	}
	objectName := path.Join(tenantID, fmt.Sprintf("%s-%s%s", uuid.NewString(), sanitizeName(base), ext))

	_, err := u.client.PutObject(ctx, u.bucket, objectName, r, size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put object %q: %w", objectName, err)
	}

	return fmt.Sprintf("%s/%s/%s", u.publicURL, u.bucket, objectName), nil
}

// Remove deletes an object by the URL previously returned from Upload.
// URLs that do not belong to the bucket are ignored.
func (u *Uploader) Remove(ctx context.Context, publicURL string) error {
	prefix := fmt.Sprintf("%s/%s/", u.publicURL, u.bucket)
	if !strings.HasPrefix(publicURL, prefix) {
		return nil
	}
	objectName := strings.TrimPrefix(publicURL, prefix)
	if err := u.client.RemoveObject(ctx, u.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q: %w", objectName, err)
	}
	return nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
