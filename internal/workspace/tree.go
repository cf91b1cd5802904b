package workspace

import (
	"context"
	"strings"
	"sync"
)

// Tree serializes mutations to one workspace's file hierarchy on top of a
// NodeStore. A per-workspace mutex makes every read-modify-write pair atomic:
// concurrent edits still resolve last-writer-wins, but never interleave
// mid-splice.
type Tree struct {
	store NodeStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex // workspaceKey -> writer lock
}

func NewTree(store NodeStore) *Tree {
	return &Tree{store: store, locks: make(map[string]*sync.Mutex)}
}

func (t *Tree) lockWorkspace(key string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[key] = lock
	}
	return lock
}

// EnsurePath walks path, creating intermediate folders as needed, and returns
// the leaf node. An existing file leaf is updated in place when content is
// non-nil (upsert); an existing leaf with nil content is returned untouched.
// The whole walk is one atomic unit.
func (t *Tree) EnsurePath(ctx context.Context, workspaceKey, path, nodeType string, language, content *string, userID int) (*Node, error) {
	normalized := NormalizePath(path)
	if normalized == "" {
		return nil, ErrEmptyPath
	}

	lock := t.lockWorkspace(workspaceKey)
	lock.Lock()
	defer lock.Unlock()

	var leaf *Node
	err := t.store.Atomic(ctx, func(store NodeStore) error {
		segments := strings.Split(normalized, "/")
		var parentID *int

		for _, segment := range segments[:len(segments)-1] {
			folder, err := t.ensureChild(ctx, store, workspaceKey, parentID, segment, NodeTypeFolder, "", "", userID)
			if err != nil {
				return err
			}
			parentID = &folder.ID
		}

		finalName := segments[len(segments)-1]
		existing, err := store.FindChild(ctx, workspaceKey, parentID, finalName)
		if err == nil {
			if existing.IsFile() && content != nil {
				lang := existing.Language
				if language != nil && *language != "" {
					lang = *language
				}
				if err := store.UpdateFile(ctx, existing.ID, *content, lang); err != nil {
					return err
				}
				existing.Content = *content
				existing.Language = lang
			}
			leaf = existing
			return nil
		}
		if err != ErrNodeNotFound {
			return err
		}

		lang, text := "", ""
		if nodeType == NodeTypeFile {
			if language != nil && *language != "" {
				lang = *language
			} else {
				lang = GuessLanguage(finalName)
			}
			if content != nil {
				text = *content
			} else {
				text = DefaultContent(lang, finalName)
			}
		}
		leaf, err = t.createChild(ctx, store, workspaceKey, parentID, finalName, nodeType, lang, text, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	leaf.FullPath = normalized
	return leaf, nil
}

func (t *Tree) ensureChild(ctx context.Context, store NodeStore, workspaceKey string, parentID *int, name, nodeType, language, content string, userID int) (*Node, error) {
	existing, err := store.FindChild(ctx, workspaceKey, parentID, name)
	if err == nil {
		return existing, nil
	}
	if err != ErrNodeNotFound {
		return nil, err
	}
	return t.createChild(ctx, store, workspaceKey, parentID, name, nodeType, language, content, userID)
}

func (t *Tree) createChild(ctx context.Context, store NodeStore, workspaceKey string, parentID *int, name, nodeType, language, content string, userID int) (*Node, error) {
	position, err := store.CountChildren(ctx, workspaceKey, parentID)
	if err != nil {
		return nil, err
	}
	return store.CreateNode(ctx, &Node{
		WorkspaceKey: workspaceKey,
		Name:         name,
		Type:         nodeType,
		ParentID:     parentID,
		Language:     language,
		Content:      content,
		Position:     position,
		CreatedBy:    userID,
	})
}

// Rename changes a node's name in place. An empty name is rejected.
func (t *Tree) Rename(ctx context.Context, nodeID int, newName string) (*Node, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, ErrEmptyName
	}
	node, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	if err := t.store.UpdateName(ctx, nodeID, newName); err != nil {
		return nil, err
	}
	node.Name = newName
	return node, nil
}

// Move reparents a node. Moving a node under its own descendant would detach
// a cycle from the tree, so it is rejected.
func (t *Tree) Move(ctx context.Context, nodeID int, newParentID *int, position int) (*Node, error) {
	node, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	// The ancestor walk and the reparent must not interleave with another
	// move, or two moves could each pass the check and still detach a cycle.
	lock := t.lockWorkspace(node.WorkspaceKey)
	lock.Lock()
	defer lock.Unlock()

	if newParentID != nil {
		ancestor := newParentID
		for ancestor != nil {
			if *ancestor == nodeID {
				return nil, ErrCyclicMove
			}
			parent, err := t.store.GetNode(ctx, *ancestor)
			if err != nil {
				return nil, err
			}
			ancestor = parent.ParentID
		}
	}

	if err := t.store.UpdateParent(ctx, nodeID, newParentID, position); err != nil {
		return nil, err
	}
	node.ParentID = newParentID
	node.Position = position
	return node, nil
}

// DeleteSubtree removes a node and all its descendants, children first.
// Returns the total count of nodes removed.
func (t *Tree) DeleteSubtree(ctx context.Context, nodeID int) (int, error) {
	node, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return 0, err
	}

	lock := t.lockWorkspace(node.WorkspaceKey)
	lock.Lock()
	defer lock.Unlock()

	var count int
	err = t.store.Atomic(ctx, func(store NodeStore) error {
		count, err = deleteRecursive(ctx, store, nodeID)
		return err
	})
	return count, err
}

func deleteRecursive(ctx context.Context, store NodeStore, nodeID int) (int, error) {
	children, err := store.ListChildren(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, child := range children {
		n, err := deleteRecursive(ctx, store, child.ID)
		if err != nil {
			return count, err
		}
		count += n
	}
	if err := store.DeleteNode(ctx, nodeID); err != nil {
		return count, err
	}
	return count + 1, nil
}

// UpdateContent replaces a file's content wholesale.
func (t *Tree) UpdateContent(ctx context.Context, nodeID int, content string) (*Node, error) {
	node, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	lock := t.lockWorkspace(node.WorkspaceKey)
	lock.Lock()
	defer lock.Unlock()

	if err := t.store.UpdateContent(ctx, nodeID, content); err != nil {
		return nil, err
	}
	node.Content = content
	return node, nil
}

// ApplyDelta splices a positional edit into the file's current stored
// content. The read-modify-write pair runs under the workspace lock, so two
// concurrent deltas apply in arrival order with no interleaved corruption.
// Offsets past either end clamp; overlapping concurrent edits resolve
// last-arrived-wins with no rebasing.
func (t *Tree) ApplyDelta(ctx context.Context, nodeID int, delta Delta) (*Node, error) {
	node, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	lock := t.lockWorkspace(node.WorkspaceKey)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: the first read only located the workspace.
	node, err = t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	node.Content = Splice(node.Content, delta)
	if err := t.store.UpdateContent(ctx, nodeID, node.Content); err != nil {
		return nil, err
	}
	return node, nil
}

// Splice applies a delta to content with substring-style clamping.
func Splice(content string, delta Delta) string {
	runes := []rune(content)
	pos := clamp(delta.Position, 0, len(runes))

	switch delta.Type {
	case "insert":
		return string(runes[:pos]) + delta.Text + string(runes[pos:])
	case "delete":
		end := clamp(pos+delta.Length, pos, len(runes))
		return string(runes[:pos]) + string(runes[end:])
	case "replace":
		end := clamp(pos+delta.Length, pos, len(runes))
		return string(runes[:pos]) + delta.Text + string(runes[end:])
	}
	return content
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ListNodes returns every node of a workspace ordered by (parent, position,
// name), with FullPath filled in for tree rendering.
func (t *Tree) ListNodes(ctx context.Context, workspaceKey string) ([]*Node, error) {
	nodes, err := t.store.ListNodes(ctx, workspaceKey)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		n.FullPath = fullPath(n, byID)
	}
	return nodes, nil
}

// GetNode returns one node with its FullPath resolved.
func (t *Tree) GetNode(ctx context.Context, nodeID int) (*Node, error) {
	node, err := t.store.GetNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	nodes, err := t.store.ListNodes(ctx, node.WorkspaceKey)
	if err != nil {
		return nil, err
	}
	byID := make(map[int]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	node.FullPath = fullPath(node, byID)
	return node, nil
}

func fullPath(n *Node, byID map[int]*Node) string {
	segments := []string{n.Name}
	for parent := n.ParentID; parent != nil; {
		p, ok := byID[*parent]
		if !ok {
			break
		}
		segments = append([]string{p.Name}, segments...)
		parent = p.ParentID
	}
	return strings.Join(segments, "/")
}
