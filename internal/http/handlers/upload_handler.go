// Auxiliary upload handlers.
//
// This file exposes the two pass-through endpoints backing the client's file
// features:
//   - POST /extract-pdf  (multipart PDF -> plain text plus statistics)
//   - GET  /upload       (image CDN upload authentication parameters)
//
// Neither endpoint touches chat state; both are thin wrappers over the
// pdfextract and media packages.
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smartlearn/study-assistant-backend/internal/http/middleware"
	"github.com/smartlearn/study-assistant-backend/internal/media"
	"github.com/smartlearn/study-assistant-backend/internal/pdfextract"
)

// maxUploadBytes caps accepted PDF uploads.
const maxUploadBytes = 10 << 20 // 10 MiB

// UploadHandlers groups the auxiliary endpoints.
type UploadHandlers struct {
	signer *media.Signer
}

// NewUploadHandlers binds the auxiliary endpoints to the CDN signer.
func NewUploadHandlers(signer *media.Signer) *UploadHandlers {
	return &UploadHandlers{signer: signer}
}

// ExtractPDF godoc
// @ID          extractPDF
// @Summary     Extract text from a PDF
// @Description Accepts one multipart PDF (field "file", 10MB cap) and returns its plain text with page/word/character statistics.
// @Tags        Uploads
// @Accept      multipart/form-data
// @Produce     json
//
// @Param       file  formData  file  true  "PDF document"
//
// @Success     200  {object}  pdfextract.Result
// @Failure     400  {object}  handlers.ErrorResponse  "Missing, oversized, or non-PDF file"
// @Failure     500  {object}  handlers.ErrorResponse  "Extraction failed"
// @Router      /extract-pdf [post]
func (h *UploadHandlers) ExtractPDF(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "a PDF file is required")
		return
	}
	if fh.Size > maxUploadBytes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file exceeds the 10MB limit")
		return
	}

	f, err := fh.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to read upload")
		return
	}
	defer f.Close()

	// Size from the multipart header is client-supplied; re-enforce while
	// reading.
	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file exceeds the 10MB limit")
		return
	}

	res, err := pdfextract.Extract(data)
	if err != nil {
		switch {
		case errors.Is(err, pdfextract.ErrNotPDF):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "only PDF files are supported")
		case errors.Is(err, pdfextract.ErrNoText):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no extractable text found in the PDF")
		default:
			middleware.LoggerFrom(c).Warn().Err(err).Str("filename", fh.Filename).Msg("pdf extraction failed")
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "could not parse the PDF")
		}
		return
	}
	ok(c, http.StatusOK, res)
}

// UploadAuth godoc
// @ID          uploadAuth
// @Summary     Mint image upload credentials
// @Description Returns the token/expire/signature triple the image CDN's client SDK needs to authorize a direct browser upload.
// @Tags        Uploads
// @Produce     json
//
// @Success     200  {object}  media.AuthParams
// @Failure     503  {object}  handlers.ErrorResponse  "CDN not configured"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /upload [get]
func (h *UploadHandlers) UploadAuth(c *gin.Context) {
	params, err := h.signer.Mint()
	if err != nil {
		if errors.Is(err, media.ErrNotConfigured) {
			fail(c, http.StatusServiceUnavailable, ErrCodeUpstreamUnavailable, "image upload is not configured")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "failed to mint upload credentials")
		return
	}
	ok(c, http.StatusOK, params)
}
