package workspace

import (
	"context"
	"errors"
	"time"
)

const (
	NodeTypeFile   = "file"
	NodeTypeFolder = "folder"
)

var (
	ErrNodeNotFound = errors.New("workspace node not found")
	ErrEmptyName    = errors.New("node name cannot be empty")
	ErrEmptyPath    = errors.New("path cannot be empty")
	ErrCyclicMove   = errors.New("cannot move a node under its own descendant")
)

// Node is one entry of a workspace's file tree. ParentID nil means the node
// sits at the root. Folders never carry content or a language tag.
type Node struct {
	ID           int       `json:"id"`
	WorkspaceKey string    `json:"-"`
	Name         string    `json:"name"`
	Type         string    `json:"node_type"`
	ParentID     *int      `json:"parent_id"`
	Language     string    `json:"language,omitempty"`
	Content      string    `json:"content"`
	Position     int       `json:"position"`
	CreatedBy    int       `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`

	// FullPath is the "/"-joined chain of ancestor names down to this node.
	// Derived, filled by Tree when listing or returning nodes.
	FullPath string `json:"full_path,omitempty"`
}

func (n *Node) IsFile() bool { return n.Type == NodeTypeFile }

// Delta is a positional edit against a file's text content.
type Delta struct {
	Type     string `json:"type"` // insert, delete, replace
	Position int    `json:"position"`
	Length   int    `json:"length,omitempty"`
	Text     string `json:"text,omitempty"`
}

// NodeStore is the durable-store boundary for workspace nodes. The postgres
// implementation backs production; the memory implementation backs tests.
type NodeStore interface {
	CreateNode(ctx context.Context, n *Node) (*Node, error)
	GetNode(ctx context.Context, id int) (*Node, error)
	FindChild(ctx context.Context, workspaceKey string, parentID *int, name string) (*Node, error)
	CountChildren(ctx context.Context, workspaceKey string, parentID *int) (int, error)
	ListChildren(ctx context.Context, parentID int) ([]*Node, error)
	UpdateFile(ctx context.Context, id int, content, language string) error
	UpdateContent(ctx context.Context, id int, content string) error
	UpdateName(ctx context.Context, id int, name string) error
	UpdateParent(ctx context.Context, id int, parentID *int, position int) error
	DeleteNode(ctx context.Context, id int) error
	ListNodes(ctx context.Context, workspaceKey string) ([]*Node, error)

	// Atomic runs fn so its writes are all-or-nothing from an external
	// viewpoint. The store passed to fn must be used for every access inside.
	Atomic(ctx context.Context, fn func(NodeStore) error) error
}
