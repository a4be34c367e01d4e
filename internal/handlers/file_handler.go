package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ARDEV04/Personal-file-manager/internal/logger"
	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/ARDEV04/Personal-file-manager/internal/tree"
	"github.com/ARDEV04/Personal-file-manager/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TreeStore is the part of *tree.Store the HTTP layer needs.
type TreeStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.FileNode, error)
	ListChildren(ctx context.Context, parentID *uuid.UUID) ([]models.FileNode, error)
	ListFolders(ctx context.Context) ([]models.FileNode, error)
	ListFolderChildren(ctx context.Context, parentID *uuid.UUID) ([]models.FileNode, error)
	Search(ctx context.Context, query string) ([]models.FileNode, error)
	Breadcrumb(ctx context.Context, id *uuid.UUID) ([]models.BreadcrumbItem, error)
	NameExists(ctx context.Context, name string, parentID, excludeID *uuid.UUID) (bool, error)
	Create(ctx context.Context, in models.CreateFileNode) (*models.FileNode, error)
	CreateFromUpload(ctx context.Context, in models.UploadedFile) (*models.FileNode, error)
	UpdateTree(ctx context.Context, id uuid.UUID, patch models.UpdateFileNode) ([]models.FileNode, error)
	Remove(ctx context.Context, id uuid.UUID) ([]models.FileNode, error)
}

// BlobStore keeps uploaded content.
type BlobStore interface {
	Put(r io.Reader, name string) (*models.BlobRef, int64, error)
	Open(key string) (io.ReadSeekCloser, error)
	Remove(key string) error
}

// Publisher announces committed changes.
type Publisher interface {
	Publish(eventType string, payload any) error
}

// FileHandler serves the file tree API.
type FileHandler struct {
	Store          TreeStore
	Blobs          BlobStore
	Events         Publisher
	MaxUploadBytes int64
	log            zerolog.Logger
}

func NewFileHandler(store TreeStore, blobs BlobStore, events Publisher, maxUploadBytes int64) *FileHandler {
	return &FileHandler{
		Store:          store,
		Blobs:          blobs,
		Events:         events,
		MaxUploadBytes: maxUploadBytes,
		log:            logger.Component("files"),
	}
}

// Routes returns the file API router. mutate wraps every route that changes the tree.
func (h *FileHandler) Routes(mutate ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/folders", h.ListFolders)
	r.Get("/folders/{id}/children", h.ListFolderChildren)
	r.Get("/search", h.Search)
	r.Get("/breadcrumb/{id}", h.Breadcrumb)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/download", h.Download)

	r.Group(func(r chi.Router) {
		r.Use(mutate...)
		r.Post("/", h.Create)
		r.Post("/upload", h.Upload)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

// List returns the children of ?parentId, or the root level.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	parentID, err := optionalID(r.URL.Query().Get("parentId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid parent ID")
		return
	}
	nodes, err := h.Store.ListChildren(r.Context(), parentID)
	if err != nil {
		h.fail(w, err, "list files")
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// ListFolders returns every folder, for the sidebar tree.
func (h *FileHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.Store.ListFolders(r.Context())
	if err != nil {
		h.fail(w, err, "list folders")
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// ListFolderChildren returns the subfolders of {id}, which may be "root".
func (h *FileHandler) ListFolderChildren(w http.ResponseWriter, r *http.Request) {
	folderID, err := optionalID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid folder ID")
		return
	}
	nodes, err := h.Store.ListFolderChildren(r.Context(), folderID)
	if err != nil {
		h.fail(w, err, "list folder children")
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *FileHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeJSON(w, http.StatusOK, []models.FileNode{})
		return
	}
	nodes, err := h.Store.Search(r.Context(), query)
	if err != nil {
		h.fail(w, err, "search files")
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *FileHandler) Breadcrumb(w http.ResponseWriter, r *http.Request) {
	id, err := optionalID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file ID")
		return
	}
	crumbs, err := h.Store.Breadcrumb(r.Context(), id)
	if err != nil {
		h.fail(w, err, "build breadcrumb")
		return
	}
	writeJSON(w, http.StatusOK, crumbs)
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	node, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get file")
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// Create makes a new folder or empty file.
func (h *FileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFileNode
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Kind == "" {
		writeError(w, http.StatusBadRequest, "Name and type are required")
		return
	}
	if !req.Kind.Valid() {
		writeError(w, http.StatusBadRequest, `Type must be "file" or "folder"`)
		return
	}

	exists, err := h.Store.NameExists(r.Context(), req.Name, req.ParentID, nil)
	if err != nil {
		h.fail(w, err, "check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "A file or folder with this name already exists")
		return
	}

	node, err := h.Store.Create(r.Context(), req)
	if err != nil {
		h.fail(w, err, "create file")
		return
	}
	h.publish(ws.EventFileCreated, []models.FileNode{*node})
	writeJSON(w, http.StatusCreated, node)
}

// Update renames and/or moves {id}.
func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch models.UpdateFileNode
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	existing, err := h.Store.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err, "get file")
		return
	}
	targetName := existing.Name
	if patch.Name != nil {
		targetName = *patch.Name
	}
	targetParent := existing.ParentID
	if patch.Parent != nil {
		targetParent = patch.Parent.ID
	}
	exists, err := h.Store.NameExists(r.Context(), targetName, targetParent, &id)
	if err != nil {
		h.fail(w, err, "check name")
		return
	}
	if exists {
		writeError(w, http.StatusConflict, "A file or folder with this name already exists")
		return
	}

	// changed holds the node first, then every descendant whose path moved with it.
	changed, err := h.Store.UpdateTree(r.Context(), id, patch)
	if err != nil {
		h.fail(w, err, "update file")
		return
	}
	h.publish(ws.EventFileUpdated, changed)
	writeJSON(w, http.StatusOK, changed[0])
}

// Delete removes {id} and everything below it, then reclaims their content.
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	removed, err := h.Store.Remove(r.Context(), id)
	if err != nil {
		h.fail(w, err, "delete file")
		return
	}
	if len(removed) == 0 {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	for _, node := range removed {
		if node.Blob == nil {
			continue
		}
		if err := h.Blobs.Remove(node.Blob.Key); err != nil {
			h.log.Warn().Err(err).Str("id", node.ID.String()).Str("blob", node.Blob.Key).Msg("failed to remove blob")
		}
	}
	h.publish(ws.EventFileDeleted, removed)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FileHandler) publish(eventType string, nodes []models.FileNode) {
	if h.Events == nil || len(nodes) == 0 {
		return
	}
	if err := h.Events.Publish(eventType, nodes); err != nil {
		h.log.Warn().Err(err).Str("event", eventType).Msg("failed to publish change")
	}
}

// fail maps a tree error onto a response. Internal details are only logged.
func (h *FileHandler) fail(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, tree.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tree.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, tree.ErrInvalidOperation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Error().Err(err).Msg("failed to " + action)
		writeError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}

// optionalID parses a nullable id. Empty and "root" mean the root.
func optionalID(s string) (*uuid.UUID, error) {
	if s == "" || s == "root" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file ID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
