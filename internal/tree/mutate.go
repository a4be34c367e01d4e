package tree

import (
	"context"

	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Create adds an empty file or a folder under in.ParentID (nil for the root).
func (s *Store) Create(ctx context.Context, in models.CreateFileNode) (*models.FileNode, error) {
	if !in.Kind.Valid() {
		return nil, invalid("type must be %q or %q", models.KindFile, models.KindFolder)
	}
	node := models.FileNode{Name: in.Name, Kind: in.Kind, ParentID: in.ParentID}
	if in.Kind == models.KindFile {
		var empty int64
		node.Size = &empty
	}

	var created *models.FileNode
	err := s.inTx(ctx, "create", func(tx pgx.Tx) error {
		var err error
		created, err = insertNode(ctx, tx, node)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("id", created.ID.String()).Str("path", created.Path).Msg("node created")
	return created, nil
}

// CreateFromUpload records a file whose content is already stored at in.Blob. Name
// collisions are rejected with ErrConflict; picking a free name is up to the caller.
func (s *Store) CreateFromUpload(ctx context.Context, in models.UploadedFile) (*models.FileNode, error) {
	if in.Size < 0 {
		return nil, invalid("size must not be negative")
	}
	size := in.Size
	node := models.FileNode{
		Name:     in.Name,
		Kind:     models.KindFile,
		ParentID: in.ParentID,
		Size:     &size,
		Blob:     in.Blob,
	}
	if in.MimeType != "" {
		mime := in.MimeType
		node.MimeType = &mime
	}

	var created *models.FileNode
	err := s.inTx(ctx, "create_from_upload", func(tx pgx.Tx) error {
		var err error
		created, err = insertNode(ctx, tx, node)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("id", created.ID.String()).Str("path", created.Path).Int64("size", size).Msg("upload recorded")
	return created, nil
}

func insertNode(ctx context.Context, tx pgx.Tx, node models.FileNode) (*models.FileNode, error) {
	if err := ValidateName(node.Name); err != nil {
		return nil, err
	}
	if node.Kind == models.KindFolder && (node.Size != nil || node.MimeType != nil || node.Blob != nil) {
		return nil, invalid("folders carry no size, mime type or content")
	}

	base, err := parentPath(ctx, tx, node.ParentID)
	if err != nil {
		return nil, err
	}
	exists, err := nameExists(ctx, tx, node.Name, node.ParentID, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflict(node.Name)
	}

	var blobKey, blobURL *string
	if node.Blob != nil {
		blobKey, blobURL = &node.Blob.Key, &node.Blob.URL
	}

	query := `INSERT INTO files (id, name, kind, parent_id, path, size, mime_type, blob_key, blob_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + nodeColumns
	created, err := scanNode(tx.QueryRow(ctx, query,
		uuid.New(), node.Name, string(node.Kind), node.ParentID, JoinPath(base, node.Name),
		node.Size, node.MimeType, blobKey, blobURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, conflict(node.Name)
		}
		return nil, err
	}
	return &created, nil
}

// Update renames and/or moves a node. A folder's whole subtree gets its paths
// rewritten in the same transaction.
func (s *Store) Update(ctx context.Context, id uuid.UUID, patch models.UpdateFileNode) (*models.FileNode, error) {
	changed, err := s.UpdateTree(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return &changed[0], nil
}

// UpdateTree is Update returning every row it changed: the node itself first, then
// the descendants whose paths were rewritten, shallowest first.
func (s *Store) UpdateTree(ctx context.Context, id uuid.UUID, patch models.UpdateFileNode) ([]models.FileNode, error) {
	var changed []models.FileNode
	err := s.inTx(ctx, "update", func(tx pgx.Tx) error {
		changed = nil

		node, err := getNode(ctx, tx, id, "FOR UPDATE")
		if err != nil {
			return err
		}

		name := node.Name
		if patch.Name != nil {
			if err := ValidateName(*patch.Name); err != nil {
				return err
			}
			name = *patch.Name
		}
		parentID := node.ParentID
		if patch.Parent != nil {
			parentID = patch.Parent.ID
		}

		if parentID != nil {
			if *parentID == id {
				return invalid("cannot move %q into itself", node.Name)
			}
			if node.IsFolder() {
				chain, err := ancestry(ctx, tx, *parentID)
				if err != nil {
					return err
				}
				for _, l := range chain {
					if l.id == id {
						return invalid("cannot move %q into its own subfolder", node.Name)
					}
				}
			}
		}

		base, err := parentPath(ctx, tx, parentID)
		if err != nil {
			return err
		}
		exists, err := nameExists(ctx, tx, name, parentID, &id)
		if err != nil {
			return err
		}
		if exists {
			return conflict(name)
		}

		path := JoinPath(base, name)
		query := `UPDATE files SET name = $2, parent_id = $3, path = $4, updated_at = NOW() WHERE id = $1 RETURNING ` + nodeColumns
		n, err := scanNode(tx.QueryRow(ctx, query, id, name, parentID, path))
		if err != nil {
			if isUniqueViolation(err) {
				return conflict(name)
			}
			return err
		}
		changed = append(changed, n)

		if n.IsFolder() && path != node.Path {
			descendants, err := rewriteDescendantPaths(ctx, tx, id, path)
			if err != nil {
				return err
			}
			changed = append(changed, descendants...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug().Str("id", id.String()).Str("path", changed[0].Path).Int("descendants", len(changed)-1).Msg("node updated")
	return changed, nil
}

type pendingFolder struct {
	id   uuid.UUID
	path string
}

// rewriteDescendantPaths recomputes the path of every node below root from the live
// names, one folder at a time off a queue so deep trees do not grow the stack. It
// returns the rewritten rows.
func rewriteDescendantPaths(ctx context.Context, tx pgx.Tx, root uuid.UUID, rootPath string) ([]models.FileNode, error) {
	rewritten := []models.FileNode{}
	queue := []pendingFolder{{id: root, path: rootPath}}
	for len(queue) > 0 {
		folder := queue[0]
		queue = queue[1:]

		rows, err := tx.Query(ctx,
			`UPDATE files SET path = $1 || '/' || name, updated_at = NOW() WHERE parent_id = $2 RETURNING `+nodeColumns,
			folder.path, folder.id)
		if err != nil {
			return nil, err
		}
		children, err := collectNodes(rows)
		if err != nil {
			return nil, err
		}

		for _, c := range children {
			if c.IsFolder() {
				queue = append(queue, pendingFolder{id: c.ID, path: c.Path})
			}
		}
		rewritten = append(rewritten, children...)
	}
	return rewritten, nil
}

// Delete removes a node and, for a folder, everything below it. It reports false
// when id does not exist.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	removed, err := s.Remove(ctx, id)
	if err != nil {
		return false, err
	}
	return len(removed) > 0, nil
}

// Remove is Delete returning the rows it deleted, the node itself first. It returns
// an empty slice when id does not exist.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) ([]models.FileNode, error) {
	var removed []models.FileNode
	err := s.inTx(ctx, "delete", func(tx pgx.Tx) error {
		removed = nil

		node, err := getNode(ctx, tx, id, "FOR UPDATE")
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		removed = append(removed, *node)

		// Collect the subtree level by level, then delete the deepest level first so
		// no row ever outlives its parent.
		levels := [][]uuid.UUID{{id}}
		var frontier []uuid.UUID
		if node.IsFolder() {
			frontier = []uuid.UUID{id}
		}
		for len(frontier) > 0 {
			rows, err := tx.Query(ctx, `SELECT `+nodeColumns+` FROM files WHERE parent_id = ANY($1) FOR UPDATE`, frontier)
			if err != nil {
				return err
			}
			children, err := collectNodes(rows)
			if err != nil {
				return err
			}

			var level, next []uuid.UUID
			for _, c := range children {
				level = append(level, c.ID)
				if c.IsFolder() {
					next = append(next, c.ID)
				}
			}
			if len(level) > 0 {
				levels = append(levels, level)
			}
			removed = append(removed, children...)
			frontier = next
		}

		for i := len(levels) - 1; i >= 0; i-- {
			if _, err := tx.Exec(ctx, `DELETE FROM files WHERE id = ANY($1)`, levels[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if removed == nil {
		return []models.FileNode{}, nil
	}
	s.log.Debug().Str("id", id.String()).Int("count", len(removed)).Msg("subtree deleted")
	return removed, nil
}
