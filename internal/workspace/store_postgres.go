package workspace

import (
	"context"
	"database/sql"
	"errors"
)

// querier is the subset of *sql.DB and *sql.Tx the store needs, so the same
// queries serve both the pool and an open transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

const nodeColumns = "id, workspace_key, name, node_type, parent_id, COALESCE(language, ''), content, position, created_by, created_at, updated_at"

func scanNode(row interface{ Scan(...any) error }) (*Node, error) {
	n := &Node{}
	var parentID sql.NullInt64
	err := row.Scan(&n.ID, &n.WorkspaceKey, &n.Name, &n.Type, &parentID,
		&n.Language, &n.Content, &n.Position, &n.CreatedBy, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, err
	}
	if parentID.Valid {
		id := int(parentID.Int64)
		n.ParentID = &id
	}
	return n, nil
}

func (s *PostgresStore) CreateNode(ctx context.Context, n *Node) (*Node, error) {
	query := `
		INSERT INTO workspace_nodes (workspace_key, name, node_type, parent_id, language, content, position, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id, created_at, updated_at
	`
	var parent sql.NullInt64
	if n.ParentID != nil {
		parent = sql.NullInt64{Int64: int64(*n.ParentID), Valid: true}
	}
	err := s.q.QueryRowContext(ctx, query, n.WorkspaceKey, n.Name, n.Type, parent,
		n.Language, n.Content, n.Position, n.CreatedBy).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (s *PostgresStore) GetNode(ctx context.Context, id int) (*Node, error) {
	row := s.q.QueryRowContext(ctx, "SELECT "+nodeColumns+" FROM workspace_nodes WHERE id = $1", id)
	return scanNode(row)
}

func (s *PostgresStore) FindChild(ctx context.Context, workspaceKey string, parentID *int, name string) (*Node, error) {
	query := "SELECT " + nodeColumns + " FROM workspace_nodes WHERE workspace_key = $1 AND parent_id IS NOT DISTINCT FROM $2 AND name = $3"
	row := s.q.QueryRowContext(ctx, query, workspaceKey, nullableInt(parentID), name)
	return scanNode(row)
}

func (s *PostgresStore) CountChildren(ctx context.Context, workspaceKey string, parentID *int) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM workspace_nodes WHERE workspace_key = $1 AND parent_id IS NOT DISTINCT FROM $2"
	err := s.q.QueryRowContext(ctx, query, workspaceKey, nullableInt(parentID)).Scan(&count)
	return count, err
}

func (s *PostgresStore) ListChildren(ctx context.Context, parentID int) ([]*Node, error) {
	query := "SELECT " + nodeColumns + " FROM workspace_nodes WHERE parent_id = $1 ORDER BY position, name"
	rows, err := s.q.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

func (s *PostgresStore) UpdateFile(ctx context.Context, id int, content, language string) error {
	query := "UPDATE workspace_nodes SET content = $2, language = NULLIF($3, ''), updated_at = CURRENT_TIMESTAMP WHERE id = $1"
	_, err := s.q.ExecContext(ctx, query, id, content, language)
	return err
}

func (s *PostgresStore) UpdateContent(ctx context.Context, id int, content string) error {
	query := "UPDATE workspace_nodes SET content = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1"
	_, err := s.q.ExecContext(ctx, query, id, content)
	return err
}

func (s *PostgresStore) UpdateName(ctx context.Context, id int, name string) error {
	query := "UPDATE workspace_nodes SET name = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1"
	_, err := s.q.ExecContext(ctx, query, id, name)
	return err
}

func (s *PostgresStore) UpdateParent(ctx context.Context, id int, parentID *int, position int) error {
	query := "UPDATE workspace_nodes SET parent_id = $2, position = $3, updated_at = CURRENT_TIMESTAMP WHERE id = $1"
	_, err := s.q.ExecContext(ctx, query, id, nullableInt(parentID), position)
	return err
}

func (s *PostgresStore) DeleteNode(ctx context.Context, id int) error {
	_, err := s.q.ExecContext(ctx, "DELETE FROM workspace_nodes WHERE id = $1", id)
	return err
}

func (s *PostgresStore) ListNodes(ctx context.Context, workspaceKey string) ([]*Node, error) {
	query := "SELECT " + nodeColumns + " FROM workspace_nodes WHERE workspace_key = $1 ORDER BY parent_id NULLS FIRST, position, name"
	rows, err := s.q.QueryContext(ctx, query, workspaceKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectNodes(rows)
}

// Atomic runs fn inside a transaction using a tx-bound copy of the store.
func (s *PostgresStore) Atomic(ctx context.Context, fn func(NodeStore) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&PostgresStore{db: s.db, q: tx}); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func collectNodes(rows *sql.Rows) ([]*Node, error) {
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func nullableInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
