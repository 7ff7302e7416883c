package memory

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// StoredFunc is called after an object lands, the way S3 notifies the indexer.
type StoredFunc func(key string, size int64, at time.Time)

// UploadHandler accepts PUTs to presigned targets issued by PresignUpload.
// Like S3, it rejects a transfer whose Content-Type differs from the one the
// target was signed with. Mount it at the path of BaseURL.
func (d *Documents) UploadHandler(prefix string, now func() time.Time, onStored StoredFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		key := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
		declared, ok := d.DeclaredContentType(key)
		if !ok {
			storageError(w, http.StatusForbidden, "AccessDenied", "no pending upload for key")
			return
		}
		sent := r.Header.Get("Content-Type")
		if sent != declared || r.URL.Query().Get("sig") != declared {
			storageError(w, http.StatusForbidden, "SignatureDoesNotMatch",
				"The request signature we calculated does not match the signature you provided.")
			return
		}
		n, err := io.Copy(io.Discard, r.Body)
		if err != nil {
			storageError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}
		at := now()
		d.Put(key, n, at)
		if onStored != nil {
			onStored(key, n, at)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func storageError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, "<Error><Code>"+code+"</Code><Message>"+msg+"</Message></Error>")
}
