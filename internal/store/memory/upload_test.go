package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadHandlerEnforcesContentType(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	docs := NewDocuments("http://storage.test/dev/storage")
	var stored []string
	h := docs.UploadHandler("/dev/storage", func() time.Time { return at }, func(key string, _ int64, _ time.Time) {
		stored = append(stored, key)
	})

	target, err := docs.PresignUpload(context.Background(), "C1", "photo.png", "image/png")
	require.NoError(t, err)
	u, err := url.Parse(target.URL)
	require.NoError(t, err)

	put := func(ct string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, u.RequestURI(), strings.NewReader("bytes"))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := put("image/jpeg")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "SignatureDoesNotMatch")
	assert.Empty(t, stored)

	rec = put("image/png")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{target.Key}, stored)

	items, err := docs.List(context.Background(), "C1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, int64(5), items[0].Size)
	assert.Equal(t, "photo.png", items[0].Filename)

	rec = put("image/png")
	assert.Equal(t, http.StatusForbidden, rec.Code, "a target is single use")
}

func TestUploadHandlerAcceptsFilenamesNeedingEscapes(t *testing.T) {
	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	docs := NewDocuments("http://storage.test/dev/storage")
	h := docs.UploadHandler("/dev/storage", func() time.Time { return at }, nil)

	for _, name := range []string{"photo #1.png", "50%off.pdf", "my file.png", "what?.txt"} {
		t.Run(name, func(t *testing.T) {
			target, err := docs.PresignUpload(context.Background(), "C2", name, "application/octet-stream")
			require.NoError(t, err)
			u, err := url.Parse(target.URL)
			require.NoError(t, err)
			assert.Equal(t, "/dev/storage/"+target.Key, u.Path)
			assert.Equal(t, "application/octet-stream", u.Query().Get("sig"))

			req := httptest.NewRequest(http.MethodPut, u.RequestURI(), strings.NewReader("bytes"))
			for k, v := range target.Headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		})
	}

	items, err := docs.List(context.Background(), "C2")
	require.NoError(t, err)
	names := []string{}
	for _, it := range items {
		names = append(names, it.Filename)
	}
	assert.ElementsMatch(t, []string{"photo #1.png", "50%off.pdf", "my file.png", "what?.txt"}, names)
}
