package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/blogkeeper/internal/common"
	"github.com/dmitrijs2005/blogkeeper/internal/server/storage"
)

const (
	mediaFormField = "file"
	// Room for multipart headers around the file itself.
	multipartOverhead  = 1 << 20
	multipartMaxMemory = 8 << 20
)

type generateRequest struct {
	Prompt string `json:"prompt" validate:"required"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type presignRequest struct {
	Filename string `json:"filename" validate:"required"`
}

type presignResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type mediaResponse struct {
	URL string `json:"url"`
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	text, err := s.deps.Assistant.Generate(r.Context(), claims.UserID, req.Prompt)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Text: text})
}

func (s *Server) uploadMedia(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxMediaSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMaxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.errs.write(w, r, fmt.Errorf("read upload: %w", common.ErrorTooLarge))
			return
		}
		s.errs.write(w, r, common.NewValidationError(mediaFormField, "multipart form expected"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(mediaFormField)
	if err != nil {
		s.errs.write(w, r, common.NewValidationError(mediaFormField, "file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, storage.MaxMediaSize+1))
	if err != nil {
		s.errs.write(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	url, err := s.deps.Assistant.UploadMedia(r.Context(), claims.UserID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mediaResponse{URL: url})
}

func (s *Server) presignMedia(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req presignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errs.write(w, r, err)
		return
	}
	key, url, err := s.deps.Assistant.PresignMedia(r.Context(), claims.UserID, req.Filename)
	if err != nil {
		s.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{Key: key, URL: url})
}
