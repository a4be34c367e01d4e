package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ARDEV04/Personal-file-manager/internal/blob"
	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/ARDEV04/Personal-file-manager/internal/tree"
	"github.com/ARDEV04/Personal-file-manager/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	maxFilesPerUpload = 10
	maxNameAttempts   = 1000
	multipartMemory   = 32 << 20
)

// Upload stores the "files" parts of a multipart form under the "parentId" folder.
// A taken name gets a " (n)" suffix before its extension.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	parentID, err := optionalID(r.FormValue("parentId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid parent ID")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}
	if len(files) > maxFilesPerUpload {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("At most %d files per upload", maxFilesPerUpload))
		return
	}

	uploaded := make([]models.FileNode, 0, len(files))
	for _, fh := range files {
		node, err := h.storeUpload(r.Context(), parentID, fh)
		if err != nil {
			// Files stored before the failure stay; report them with the error.
			h.publish(ws.EventFileCreated, uploaded)
			h.fail(w, err, "upload files")
			return
		}
		uploaded = append(uploaded, *node)
	}

	h.publish(ws.EventFileCreated, uploaded)
	writeJSON(w, http.StatusCreated, uploaded)
}

func (h *FileHandler) storeUpload(ctx context.Context, parentID *uuid.UUID, fh *multipart.FileHeader) (*models.FileNode, error) {
	name := filepath.Base(fh.Filename)
	if err := tree.ValidateName(name); err != nil {
		return nil, err
	}

	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload part: %w", err)
	}
	defer src.Close()

	ref, size, err := h.Blobs.Put(src, name)
	if err != nil {
		return nil, err
	}

	node, err := h.createUnique(ctx, models.UploadedFile{
		Name:     name,
		ParentID: parentID,
		Size:     size,
		MimeType: mimeTypeOf(fh),
		Blob:     ref,
	})
	if err != nil {
		if rmErr := h.Blobs.Remove(ref.Key); rmErr != nil {
			h.log.Warn().Err(rmErr).Str("blob", ref.Key).Msg("failed to remove orphaned blob")
		}
		return nil, err
	}
	return node, nil
}

// createUnique records in under the first free candidate name. A name taken between
// the name check and the insert moves on to the next candidate.
func (h *FileHandler) createUnique(ctx context.Context, in models.UploadedFile) (*models.FileNode, error) {
	original := in.Name
	for n := 0; n < maxNameAttempts; n++ {
		in.Name = candidateName(original, n)
		exists, err := h.Store.NameExists(ctx, in.Name, in.ParentID, nil)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		node, err := h.Store.CreateFromUpload(ctx, in)
		if errors.Is(err, tree.ErrConflict) {
			continue
		}
		return node, err
	}
	return nil, fmt.Errorf("%w: no free name for %q", tree.ErrConflict, original)
}

// candidateName returns name for n == 0 and "base (n).ext" otherwise.
func candidateName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		base, ext = name, ""
	}
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}

func mimeTypeOf(fh *multipart.FileHeader) string {
	if ct := fh.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	if ct := mime.TypeByExtension(filepath.Ext(fh.Filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Download streams the content of a file.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	node, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, "download file")
		return
	}
	if node.IsFolder() {
		writeError(w, http.StatusBadRequest, "Cannot download a folder")
		return
	}

	contentType := "application/octet-stream"
	if node.MimeType != nil && *node.MimeType != "" {
		contentType = *node.MimeType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": node.Name}))

	// Files created without an upload have no stored content.
	if node.Blob == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	content, err := h.Blobs.Open(node.Blob.Key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			w.Header().Del("Content-Disposition")
			writeError(w, http.StatusNotFound, "File content not found")
			return
		}
		h.log.Error().Err(err).Str("id", id.String()).Msg("failed to open blob")
		w.Header().Del("Content-Disposition")
		writeError(w, http.StatusInternalServerError, "Failed to download file")
		return
	}
	defer content.Close()
	http.ServeContent(w, r, node.Name, node.UpdatedAt, content)
}

// ServeBlob streams the blob named by {key}, the last element of a BlobRef URL.
// There is no listing of the store.
func (h *FileHandler) ServeBlob(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	content, err := h.Blobs.Open(key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			writeError(w, http.StatusNotFound, "File content not found")
			return
		}
		h.log.Error().Err(err).Str("blob", key).Msg("failed to open blob")
		writeError(w, http.StatusInternalServerError, "Failed to read file content")
		return
	}
	defer content.Close()
	http.ServeContent(w, r, key, time.Time{}, content)
}
