package memory

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/s3io"

	"github.com/oklog/ulid/v2"
)

// Documents issues upload targets under BaseURL and lists whatever was
// registered with Put. It uses the same key layout as the S3 store.
type Documents struct {
	BaseURL string

	mu      sync.Mutex
	pending map[string]string // key -> declared content type
	objects map[string]models.DocumentInfo
}

// NewDocuments returns an empty document store.
func NewDocuments(baseURL string) *Documents {
	return &Documents{
		BaseURL: strings.TrimRight(baseURL, "/"),
		pending: map[string]string{},
		objects: map[string]models.DocumentInfo{},
	}
}

// PresignUpload allocates a key and remembers its declared content type.
func (d *Documents) PresignUpload(ctx context.Context, claimID, filename, contentType string) (models.UploadTarget, error) {
	key := s3io.BuildKey(claimID, ulid.Make().String(), filename)
	d.mu.Lock()
	d.pending[key] = contentType
	d.mu.Unlock()
	target := models.UploadTarget{
		URL:         d.BaseURL + "/" + escapeKey(key) + "?sig=" + url.QueryEscape(contentType),
		Key:         key,
		ContentType: contentType,
	}
	if contentType != "" {
		target.Headers = map[string]string{"Content-Type": contentType}
	}
	return target, nil
}

// escapeKey escapes each segment of key so filenames holding '#', '%', '?'
// or spaces survive the trip through a URL.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// DeclaredContentType returns the content type a pending key was presigned with.
func (d *Documents) DeclaredContentType(key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ct, ok := d.pending[key]
	return ct, ok
}

// Put registers a stored object.
func (d *Documents) Put(key string, size int64, at time.Time) {
	_, name, _ := s3io.ParseKey(key)
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, key)
	d.objects[key] = models.DocumentInfo{Key: key, Filename: name, Size: size, LastModified: at}
}

// List returns the claim's objects in key order.
func (d *Documents) List(ctx context.Context, claimID string) ([]models.DocumentInfo, error) {
	prefix := s3io.Prefix(claimID)
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []models.DocumentInfo{}
	for k, v := range d.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b models.DocumentInfo) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// PresignDownload returns a download URL for key.
func (d *Documents) PresignDownload(ctx context.Context, key string) (string, error) {
	return d.BaseURL + "/" + key + "?sig=get", nil
}

// ClaimID extracts the owning claim from key.
func (d *Documents) ClaimID(key string) (string, bool) {
	claimID, _, ok := s3io.ParseKey(key)
	return claimID, ok
}
