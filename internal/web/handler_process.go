package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/catchsmart/catchsmart/internal/domain"
)

// multipartMemory is how much of the form is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// allowedImageTypes is the set of MIME types recognised by magic-byte
// sniffing. net/http.DetectContentType handles JPEG, PNG, and GIF. WebP is
// detected separately because the WHATWG sniffing rules (and therefore
// the stdlib) do not include a WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if the data is a
// recognised image format, or ("", false) otherwise.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// uploadContentType prefers the sniffed type, then the part's declared type.
func uploadContentType(data []byte, declared string) string {
	if mime, ok := allowedImageMIME(data); ok {
		return mime
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

type processResponse struct {
	Success  bool                 `json:"success"`
	ImageURL string               `json:"imageUrl"`
	Vision   *domain.VisionResult `json:"vision"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	// Authenticate before touching the body.
	user, err := s.auth.Authenticate(r)
	if err != nil {
		s.logger.Info("unauthenticated upload rejected", "stage", "authenticate", "error", err)
		s.writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	if r.ContentLength > s.opts.MaxUploadBytes {
		s.writeError(w, http.StatusBadRequest, msgFileTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusBadRequest, msgFileTooLarge)
			return
		}
		s.writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				s.logger.Error("failed to remove multipart temp files", "error", err)
			}
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("read upload failed", "user_id", user.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	if len(data) == 0 {
		s.writeError(w, http.StatusBadRequest, msgNoFile)
		return
	}

	img := &domain.UploadedImage{
		OwnerID:          user.ID,
		Data:             data,
		MimeType:         uploadContentType(data, header.Header.Get("Content-Type")),
		OriginalFilename: header.Filename,
	}

	res, err := s.service.Process(r.Context(), user, img)
	if err != nil {
		status, msg := s.errorStatus(err)
		s.logger.Error("vision processing failed", "user_id", user.ID, "filename", header.Filename, "status", status, "error", err)
		s.writeError(w, status, msg)
		return
	}

	s.writeJSON(w, http.StatusOK, processResponse{
		Success:  true,
		ImageURL: res.ImageURL,
		Vision:   res.Vision,
	})
}
