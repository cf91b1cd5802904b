package workspace

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process NodeStore used by tests and by development
// setups without postgres.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int
	nodes  map[int]*Node
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, nodes: make(map[int]*Node)}
}

func (s *MemoryStore) CreateNode(_ context.Context, n *Node) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *n
	clone.ID = s.nextID
	s.nextID++
	now := time.Now()
	clone.CreatedAt = now
	clone.UpdatedAt = now
	s.nodes[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (s *MemoryStore) GetNode(_ context.Context, id int) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	out := *n
	return &out, nil
}

func (s *MemoryStore) FindChild(_ context.Context, workspaceKey string, parentID *int, name string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.nodes {
		if n.WorkspaceKey == workspaceKey && sameParent(n.ParentID, parentID) && n.Name == name {
			out := *n
			return &out, nil
		}
	}
	return nil, ErrNodeNotFound
}

func (s *MemoryStore) CountChildren(_ context.Context, workspaceKey string, parentID *int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.nodes {
		if n.WorkspaceKey == workspaceKey && sameParent(n.ParentID, parentID) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) ListChildren(_ context.Context, parentID int) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var children []*Node
	for _, n := range s.nodes {
		if n.ParentID != nil && *n.ParentID == parentID {
			out := *n
			children = append(children, &out)
		}
	}
	sortNodes(children)
	return children, nil
}

func (s *MemoryStore) UpdateFile(_ context.Context, id int, content, language string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Content = content
	n.Language = language
	n.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateContent(_ context.Context, id int, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Content = content
	n.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateName(_ context.Context, id int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.Name = name
	n.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) UpdateParent(_ context.Context, id int, parentID *int, position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	n.ParentID = parentID
	n.Position = position
	n.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteNode(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nodes, id)
	return nil
}

func (s *MemoryStore) ListNodes(_ context.Context, workspaceKey string) ([]*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var nodes []*Node
	for _, n := range s.nodes {
		if n.WorkspaceKey == workspaceKey {
			out := *n
			nodes = append(nodes, &out)
		}
	}
	sortNodes(nodes)
	return nodes, nil
}

// Atomic is best-effort in memory: fn runs against the live store. Single
// instance writers are already serialized by the tree's workspace locks.
func (s *MemoryStore) Atomic(_ context.Context, fn func(NodeStore) error) error {
	return fn(s)
}

func sameParent(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortNodes(nodes []*Node) {
	sort.Slice(nodes, func(i, j int) bool {
		pi, pj := -1, -1
		if nodes[i].ParentID != nil {
			pi = *nodes[i].ParentID
		}
		if nodes[j].ParentID != nil {
			pj = *nodes[j].ParentID
		}
		if pi != pj {
			return pi < pj
		}
		if nodes[i].Position != nodes[j].Position {
			return nodes[i].Position < nodes[j].Position
		}
		return nodes[i].Name < nodes[j].Name
	})
}
