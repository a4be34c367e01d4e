// Package tree is the hierarchical metadata engine: it owns the files table and keeps
// materialized paths, sibling name uniqueness and subtree cascades consistent while the
// tree is mutated concurrently.
//
// Every mutation runs in a single SERIALIZABLE transaction. Serialization failures
// abort the whole transaction and it is run again, up to maxTxAttempts times, so a
// caller either sees the full effect of an operation or none of it.
package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/ARDEV04/Personal-file-manager/internal/logger"
	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SearchLimit caps the number of search results.
const SearchLimit = 100

const maxTxAttempts = 3

const nodeColumns = `id, name, kind, parent_id, path, size, mime_type, blob_key, blob_url, created_at, updated_at`

// Folders first, then byte-wise by name.
const childOrder = `ORDER BY (kind = 'folder') DESC, name COLLATE "C" ASC`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the single reader and writer of node state. Build one per process and
// share it; it is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, log: logger.Component("tree")}
}

// inTx runs fn in a serializable transaction, retrying it on serialization
// failures and deadlocks.
func (s *Store) inTx(ctx context.Context, op string, fn func(pgx.Tx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if err == nil || !isRetryable(err) {
			break
		}
		s.log.Debug().Err(err).Str("op", op).Int("attempt", attempt).Msg("transaction conflict, retrying")
	}
	if err != nil && isRetryable(err) {
		return internal(fmt.Sprintf("%s: transaction aborted after %d attempts", op, maxTxAttempts), err)
	}
	return classify(err)
}

// inReadTx runs fn in a read-only snapshot.
func (s *Store) inReadTx(ctx context.Context, fn func(pgx.Tx) error) error {
	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	return classify(pgx.BeginTxFunc(ctx, s.pool, opts, fn))
}

func scanNode(row pgx.Row) (models.FileNode, error) {
	var (
		n       models.FileNode
		kind    string
		blobKey *string
		blobURL *string
	)
	err := row.Scan(&n.ID, &n.Name, &kind, &n.ParentID, &n.Path, &n.Size, &n.MimeType, &blobKey, &blobURL, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return n, err
	}
	n.Kind = models.Kind(kind)
	if blobKey != nil {
		n.Blob = &models.BlobRef{Key: *blobKey}
		if blobURL != nil {
			n.Blob.URL = *blobURL
		}
	}
	return n, nil
}

func collectNodes(rows pgx.Rows) ([]models.FileNode, error) {
	nodes := []models.FileNode{}
	return pgx.AppendRows(nodes, rows, func(row pgx.CollectableRow) (models.FileNode, error) {
		return scanNode(row)
	})
}

// whereParent renders the parent filter, appending its argument if it has one.
func whereParent(parentID *uuid.UUID, args []any) (string, []any) {
	if parentID == nil {
		return "parent_id IS NULL", args
	}
	args = append(args, *parentID)
	return fmt.Sprintf("parent_id = $%d", len(args)), args
}

func getNode(ctx context.Context, q querier, id uuid.UUID, lock string) (*models.FileNode, error) {
	node, err := scanNode(q.QueryRow(ctx, `SELECT `+nodeColumns+` FROM files WHERE id = $1 `+lock, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("file %s not found", id)
		}
		return nil, err
	}
	return &node, nil
}

// parentPath returns the path a child of parentID gets its own path from. The parent
// row is share-locked so it cannot be renamed or moved until the caller commits.
func parentPath(ctx context.Context, q querier, parentID *uuid.UUID) (string, error) {
	if parentID == nil {
		return "", nil
	}
	var kind, path string
	err := q.QueryRow(ctx, `SELECT kind, path FROM files WHERE id = $1 FOR SHARE`, *parentID).Scan(&kind, &path)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", notFound("parent folder %s not found", *parentID)
		}
		return "", err
	}
	if models.Kind(kind) != models.KindFolder {
		return "", invalid("parent %s is not a folder", *parentID)
	}
	return path, nil
}

// nameExists is false for names the table could never hold.
func nameExists(ctx context.Context, q querier, name string, parentID, excludeID *uuid.UUID) (bool, error) {
	if !storable(name) {
		return false, nil
	}
	args := []any{name}
	cond, args := whereParent(parentID, args)
	query := `SELECT EXISTS (SELECT 1 FROM files WHERE name = $1 AND ` + cond
	if excludeID != nil {
		args = append(args, *excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += `)`

	var exists bool
	if err := q.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
