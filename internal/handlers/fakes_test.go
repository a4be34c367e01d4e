package handlers

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ARDEV04/Personal-file-manager/internal/models"
	"github.com/ARDEV04/Personal-file-manager/internal/tree"
	"github.com/google/uuid"
)

// memStore is a small in-memory TreeStore for handler tests. It follows the same
// rules as tree.Store but makes no attempt at concurrency beyond a mutex.
type memStore struct {
	mu    sync.Mutex
	nodes map[uuid.UUID]*models.FileNode

	// uploadConflicts makes the next n CreateFromUpload calls fail with ErrConflict.
	uploadConflicts int
	// err, when set, is returned by every call.
	err error
}

func newMemStore() *memStore {
	return &memStore{nodes: make(map[uuid.UUID]*models.FileNode)}
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (s *memStore) children(parentID *uuid.UUID) []models.FileNode {
	out := []models.FileNode{}
	for _, n := range s.nodes {
		if sameParent(n.ParentID, parentID) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsFolder() != out[j].IsFolder() {
			return out[i].IsFolder()
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (s *memStore) exists(name string, parentID, excludeID *uuid.UUID) bool {
	for _, n := range s.nodes {
		if n.Name == name && sameParent(n.ParentID, parentID) && (excludeID == nil || n.ID != *excludeID) {
			return true
		}
	}
	return false
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, &tree.Error{Kind: tree.ErrNotFound, Msg: "file not found"}
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) ListChildren(_ context.Context, parentID *uuid.UUID) ([]models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.children(parentID), nil
}

func (s *memStore) ListFolders(_ context.Context) ([]models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.FileNode{}
	for _, n := range s.nodes {
		if n.IsFolder() {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, s.err
}

func (s *memStore) ListFolderChildren(_ context.Context, parentID *uuid.UUID) ([]models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.FileNode{}
	for _, n := range s.children(parentID) {
		if n.IsFolder() {
			out = append(out, n)
		}
	}
	return out, s.err
}

func (s *memStore) Search(_ context.Context, query string) ([]models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.FileNode{}
	for _, n := range s.nodes {
		if strings.Contains(strings.ToLower(n.Name), strings.ToLower(query)) {
			out = append(out, *n)
		}
	}
	return out, s.err
}

func (s *memStore) Breadcrumb(_ context.Context, id *uuid.UUID) ([]models.BreadcrumbItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	crumbs := []models.BreadcrumbItem{{Name: tree.RootName}}
	var chain []models.BreadcrumbItem
	for id != nil {
		n, ok := s.nodes[*id]
		if !ok {
			break
		}
		nid := n.ID
		chain = append([]models.BreadcrumbItem{{ID: &nid, Name: n.Name}}, chain...)
		id = n.ParentID
	}
	return append(crumbs, chain...), s.err
}

func (s *memStore) NameExists(_ context.Context, name string, parentID, excludeID *uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	return s.exists(name, parentID, excludeID), nil
}

func (s *memStore) insert(n models.FileNode) (*models.FileNode, error) {
	if err := tree.ValidateName(n.Name); err != nil {
		return nil, err
	}
	base := ""
	if n.ParentID != nil {
		p, ok := s.nodes[*n.ParentID]
		if !ok {
			return nil, &tree.Error{Kind: tree.ErrNotFound, Msg: "parent folder not found"}
		}
		if !p.IsFolder() {
			return nil, &tree.Error{Kind: tree.ErrInvalidOperation, Msg: "parent is not a folder"}
		}
		base = p.Path
	}
	if s.exists(n.Name, n.ParentID, nil) {
		return nil, &tree.Error{Kind: tree.ErrConflict, Msg: "name taken"}
	}
	n.ID = uuid.New()
	n.Path = tree.JoinPath(base, n.Name)
	n.CreatedAt = time.Now()
	n.UpdatedAt = n.CreatedAt
	s.nodes[n.ID] = &n
	cp := n
	return &cp, nil
}

func (s *memStore) Create(_ context.Context, in models.CreateFileNode) (*models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.insert(models.FileNode{Name: in.Name, Kind: in.Kind, ParentID: in.ParentID})
}

func (s *memStore) CreateFromUpload(_ context.Context, in models.UploadedFile) (*models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if s.uploadConflicts > 0 {
		s.uploadConflicts--
		return nil, &tree.Error{Kind: tree.ErrConflict, Msg: "lost a race"}
	}
	size, mime := in.Size, in.MimeType
	return s.insert(models.FileNode{
		Name: in.Name, Kind: models.KindFile, ParentID: in.ParentID,
		Size: &size, MimeType: &mime, Blob: in.Blob,
	})
}

func (s *memStore) UpdateTree(_ context.Context, id uuid.UUID, patch models.UpdateFileNode) ([]models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.nodes[id]
	if !ok {
		return nil, &tree.Error{Kind: tree.ErrNotFound, Msg: "file not found"}
	}
	if patch.Name != nil {
		if err := tree.ValidateName(*patch.Name); err != nil {
			return nil, err
		}
	}
	if patch.Parent != nil && patch.Parent.ID != nil {
		for cur := patch.Parent.ID; cur != nil; cur = s.nodes[*cur].ParentID {
			if *cur == id {
				return nil, &tree.Error{Kind: tree.ErrInvalidOperation, Msg: "cannot move a folder into itself"}
			}
			if _, ok := s.nodes[*cur]; !ok {
				break
			}
		}
	}
	if patch.Name != nil {
		n.Name = *patch.Name
	}
	if patch.Parent != nil {
		n.ParentID = patch.Parent.ID
	}
	base := ""
	if n.ParentID != nil {
		base = s.nodes[*n.ParentID].Path
	}
	n.Path = tree.JoinPath(base, n.Name)
	n.UpdatedAt = time.Now()

	changed := []models.FileNode{*n}
	queue := []*models.FileNode{n}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, c := range s.children(&parent.ID) {
			child := s.nodes[c.ID]
			child.Path = tree.JoinPath(parent.Path, child.Name)
			child.UpdatedAt = n.UpdatedAt
			changed = append(changed, *child)
			queue = append(queue, child)
		}
	}
	return changed, nil
}

func (s *memStore) Remove(_ context.Context, id uuid.UUID) ([]models.FileNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	n, ok := s.nodes[id]
	if !ok {
		return []models.FileNode{}, nil
	}
	removed := []models.FileNode{*n}
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range s.children(&cur) {
			removed = append(removed, c)
			queue = append(queue, c.ID)
		}
	}
	for _, r := range removed {
		delete(s.nodes, r.ID)
	}
	return removed, nil
}

type recordedEvent struct {
	Type    string
	Payload any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) Publish(eventType string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
