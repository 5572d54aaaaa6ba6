package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/httputil"
)

const uploadField = "file"

type uploadResponse struct {
	DocumentRef string `json:"document_ref"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
}

// handleUploadDocument streams the multipart "file" part into the document
// store without buffering the whole form.
func (h *Handler) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mr, err := r.MultipartReader()
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "multipart form required"))
		return
	}

	part, err := nextFilePart(mr)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	defer part.Close()

	doc, err := h.docs.Upload(ctx, part.FileName(), part)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, uploadResponse{
		DocumentRef: doc.Ref,
		ContentType: doc.ContentType,
		Size:        doc.Size,
	})
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, dErrors.New(dErrors.CodeValidation, "file is required")
		}
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "malformed multipart body")
		}
		if part.FormName() == uploadField && part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *Handler) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, body, err := h.docs.Open(ctx, chi.URLParam(r, "ref"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=0")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(ctx, "document stream interrupted", "ref", doc.Ref, "error", err)
	}
}
