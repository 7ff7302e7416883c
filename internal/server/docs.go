package server

import (
	"net/http"

	"github.com/kylejryan/insurance-ops/internal/httpx"
	"github.com/kylejryan/insurance-ops/internal/models"
)

// PresignUploadRequest is the body of POST /docs/{claimId}/presign-upload.
type PresignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
}

// DownloadResponse is the body of GET /docs/presign-download.
type DownloadResponse struct {
	URL string `json:"url"`
}

func (h *handlers) presignUpload(w http.ResponseWriter, r *http.Request) {
	var req PresignUploadRequest
	if err := httpx.Decode(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	target, err := h.manager.AttachEvidence(r.Context(), session(r), pathID(r, "claimId"), req.Filename, req.ContentType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, target)
}

func (h *handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	items, err := h.manager.ListDocuments(r.Context(), session(r), pathID(r, "claimId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ListResponse[models.DocumentInfo]{Items: items})
}

func (h *handlers) presignDownload(w http.ResponseWriter, r *http.Request) {
	url, err := h.manager.DownloadLink(r.Context(), session(r), r.URL.Query().Get("key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, DownloadResponse{URL: url})
}
