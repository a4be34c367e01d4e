package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tells a file apart from a folder. It never changes after creation.
type Kind string

const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// BlobRef points at externally stored content. The tree never interprets it.
type BlobRef struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// FileNode represents a file or a folder in the tree.
type FileNode struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Kind      Kind       `json:"type"`
	ParentID  *uuid.UUID `json:"parentId"` // nil for root-level nodes
	Path      string     `json:"path"`
	Size      *int64     `json:"size"`     // files only
	MimeType  *string    `json:"mimeType"` // files only
	Blob      *BlobRef   `json:"blob,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (n *FileNode) IsFolder() bool {
	return n.Kind == KindFolder
}

// BreadcrumbItem is one step of the root-to-node ancestry. The synthetic root has a nil ID.
type BreadcrumbItem struct {
	ID   *uuid.UUID `json:"id"`
	Name string     `json:"name"`
}

// CreateFileNode is the body of a create request.
type CreateFileNode struct {
	Name     string     `json:"name"`
	Kind     Kind       `json:"type"`
	ParentID *uuid.UUID `json:"parentId"`
}

// UploadedFile carries the metadata of a file whose content is already stored.
type UploadedFile struct {
	Name     string
	ParentID *uuid.UUID
	Size     int64
	MimeType string
	Blob     *BlobRef
}

// ParentChange is a move target. A nil ID moves the node to the root.
type ParentChange struct {
	ID *uuid.UUID
}

// UpdateFileNode is a rename and/or move. Nil fields are left unchanged.
type UpdateFileNode struct {
	Name   *string
	Parent *ParentChange
}

// UnmarshalJSON keeps "parentId": null (move to root) apart from a missing parentId.
func (u *UpdateFileNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = UpdateFileNode{}

	if v, ok := raw["name"]; ok && !isNull(v) {
		var name string
		if err := json.Unmarshal(v, &name); err != nil {
			return fmt.Errorf("name: %w", err)
		}
		u.Name = &name
	}

	if v, ok := raw["parentId"]; ok {
		change := &ParentChange{}
		if !isNull(v) {
			var id uuid.UUID
			if err := json.Unmarshal(v, &id); err != nil {
				return fmt.Errorf("parentId: %w", err)
			}
			change.ID = &id
		}
		u.Parent = change
	}
	return nil
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
