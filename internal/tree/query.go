package tree

import (
	"context"
	"errors"
	"strings"

	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Get returns the node with the given id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.FileNode, error) {
	node, err := getNode(ctx, s.pool, id, "")
	return node, classify(err)
}

// ListChildren returns the immediate children of parentID, or the root-level nodes
// when parentID is nil. Folders come first.
func (s *Store) ListChildren(ctx context.Context, parentID *uuid.UUID) ([]models.FileNode, error) {
	cond, args := whereParent(parentID, nil)
	rows, err := s.pool.Query(ctx, `SELECT `+nodeColumns+` FROM files WHERE `+cond+` `+childOrder, args...)
	if err != nil {
		return nil, classify(err)
	}
	nodes, err := collectNodes(rows)
	return nodes, classify(err)
}

// ListFolderChildren is ListChildren restricted to folders.
func (s *Store) ListFolderChildren(ctx context.Context, parentID *uuid.UUID) ([]models.FileNode, error) {
	cond, args := whereParent(parentID, nil)
	query := `SELECT ` + nodeColumns + ` FROM files WHERE kind = 'folder' AND ` + cond + ` ORDER BY name COLLATE "C" ASC`
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	nodes, err := collectNodes(rows)
	return nodes, classify(err)
}

// ListFolders returns every folder in the tree by name.
func (s *Store) ListFolders(ctx context.Context) ([]models.FileNode, error) {
	query := `SELECT ` + nodeColumns + ` FROM files WHERE kind = 'folder' ORDER BY name COLLATE "C" ASC, path COLLATE "C" ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, classify(err)
	}
	nodes, err := collectNodes(rows)
	return nodes, classify(err)
}

// Search does a case-insensitive substring match on names across the whole tree.
// At most SearchLimit nodes are returned. A blank or unstorable query matches nothing.
func (s *Store) Search(ctx context.Context, query string) ([]models.FileNode, error) {
	if strings.TrimSpace(query) == "" || !storable(query) {
		return []models.FileNode{}, nil
	}
	sql := `SELECT ` + nodeColumns + ` FROM files
		WHERE name ILIKE '%' || $1 || '%' ESCAPE '\'
		` + childOrder + `, path COLLATE "C" ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, sql, escapeLike(query), SearchLimit)
	if err != nil {
		return nil, classify(err)
	}
	nodes, err := collectNodes(rows)
	return nodes, classify(err)
}

// NameExists reports whether a sibling under parentID already uses name. excludeID,
// when set, ignores that node's own row.
func (s *Store) NameExists(ctx context.Context, name string, parentID, excludeID *uuid.UUID) (bool, error) {
	exists, err := nameExists(ctx, s.pool, name, parentID, excludeID)
	return exists, classify(err)
}

// Breadcrumb returns the ancestry of id from the root down, starting with the
// synthetic Home entry. A dangling parent reference ends the walk early; a cycle is
// reported as ErrInternal.
func (s *Store) Breadcrumb(ctx context.Context, id *uuid.UUID) ([]models.BreadcrumbItem, error) {
	crumbs := []models.BreadcrumbItem{{ID: nil, Name: RootName}}
	if id == nil {
		return crumbs, nil
	}

	var chain []link
	err := s.inReadTx(ctx, func(tx pgx.Tx) error {
		var err error
		chain, err = ancestry(ctx, tx, *id)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := len(chain) - 1; i >= 0; i-- {
		crumbs = append(crumbs, models.BreadcrumbItem{ID: &chain[i].id, Name: chain[i].name})
	}
	return crumbs, nil
}

type link struct {
	id       uuid.UUID
	name     string
	parentID *uuid.UUID
}

// ancestry walks from start up to the root and returns the chain leaf first.
func ancestry(ctx context.Context, q querier, start uuid.UUID) ([]link, error) {
	var chain []link
	seen := make(map[uuid.UUID]struct{})

	current := &start
	for current != nil {
		if _, ok := seen[*current]; ok {
			return nil, internal("parent chain of "+start.String()+" loops", nil)
		}
		seen[*current] = struct{}{}

		l := link{id: *current}
		err := q.QueryRow(ctx, `SELECT name, parent_id FROM files WHERE id = $1`, *current).Scan(&l.name, &l.parentID)
		if errors.Is(err, pgx.ErrNoRows) {
			break
		}
		if err != nil {
			return nil, err
		}
		chain = append(chain, l)
		current = l.parentID
	}
	return chain, nil
}
