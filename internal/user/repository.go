package user

import (
	"context"
	"database/sql"
	"errors"
)

var ErrNotFound = errors.New("user not found")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateUser(ctx context.Context, user *User) (*User, error) {
	var id int
	query := "INSERT INTO users (username, password, display_name) VALUES ($1, $2, NULLIF($3, '')) RETURNING id"

	err := r.db.QueryRowContext(ctx, query, user.Username, user.Password, user.DisplayName).Scan(&id)
	if err != nil {
		return nil, err
	}

	user.ID = id
	return user, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	u := &User{}
	var displayName sql.NullString
	query := "SELECT id, username, password, display_name FROM users WHERE username = $1"

	err := r.db.QueryRowContext(ctx, query, username).Scan(&u.ID, &u.Username, &u.Password, &displayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.DisplayName = displayName.String

	return u, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id int) (*User, error) {
	u := &User{}
	var displayName sql.NullString
	query := "SELECT id, username, display_name FROM users WHERE id = $1"

	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Username, &displayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.DisplayName = displayName.String

	return u, nil
}

func (r *Repository) SearchUsers(ctx context.Context, query string) ([]User, error) {
	// We limit to 10 to keep it fast
	q := `SELECT id, username FROM users WHERE username ILIKE $1 LIMIT 10`
	rows, err := r.db.QueryContext(ctx, q, "%"+query+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// --- Contacts ---

func (r *Repository) AreContacts(ctx context.Context, userID, contactID int) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM contacts WHERE user_id = $1 AND contact_id = $2)"
	err := r.db.QueryRowContext(ctx, query, userID, contactID).Scan(&exists)
	return exists, err
}

func (r *Repository) ListContacts(ctx context.Context, userID int) ([]User, error) {
	query := `
		SELECT u.id, u.username, u.display_name
		FROM contacts c
		JOIN users u ON u.id = c.contact_id
		WHERE c.user_id = $1
		ORDER BY u.username
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var displayName sql.NullString
		if err := rows.Scan(&u.ID, &u.Username, &displayName); err != nil {
			return nil, err
		}
		u.DisplayName = displayName.String
		users = append(users, u)
	}
	return users, nil
}

func (r *Repository) CreateContactRequest(ctx context.Context, fromUser, toUser int) error {
	query := `
		INSERT INTO contact_requests (from_user, to_user)
		VALUES ($1, $2)
		ON CONFLICT (from_user, to_user) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, fromUser, toUser)
	return err
}

func (r *Repository) ListContactRequests(ctx context.Context, toUser int) ([]ContactRequest, error) {
	query := `
		SELECT cr.id, cr.from_user, u.username, cr.to_user, cr.created_at
		FROM contact_requests cr
		JOIN users u ON u.id = cr.from_user
		WHERE cr.to_user = $1
		ORDER BY cr.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, toUser)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []ContactRequest
	for rows.Next() {
		var cr ContactRequest
		if err := rows.Scan(&cr.ID, &cr.FromUser, &cr.FromUsername, &cr.ToUser, &cr.CreatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, cr)
	}
	return reqs, nil
}

// AcceptContactRequest deletes the request and adds the contact edge in both
// directions inside one transaction.
func (r *Repository) AcceptContactRequest(ctx context.Context, requestID, toUser int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var fromUser int
	query := "DELETE FROM contact_requests WHERE id = $1 AND to_user = $2 RETURNING from_user"
	if err := tx.QueryRowContext(ctx, query, requestID, toUser).Scan(&fromUser); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	insert := "INSERT INTO contacts (user_id, contact_id) VALUES ($1, $2), ($2, $1) ON CONFLICT DO NOTHING"
	if _, err := tx.ExecContext(ctx, insert, fromUser, toUser); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Repository) DeclineContactRequest(ctx context.Context, requestID, toUser int) error {
	query := "DELETE FROM contact_requests WHERE id = $1 AND to_user = $2"
	_, err := r.db.ExecContext(ctx, query, requestID, toUser)
	return err
}

// --- Groups ---

func (r *Repository) CreateGroup(ctx context.Context, name string, creatorID int, memberIDs []int) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	g := &Group{Name: name, CreatorID: creatorID}
	query := "INSERT INTO groups (name, creator_id) VALUES ($1, $2) RETURNING id, created_at"
	if err := tx.QueryRowContext(ctx, query, name, creatorID).Scan(&g.ID, &g.CreatedAt); err != nil {
		return nil, err
	}

	insert := "INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	if _, err := tx.ExecContext(ctx, insert, g.ID, creatorID); err != nil {
		return nil, err
	}
	for _, memberID := range memberIDs {
		if _, err := tx.ExecContext(ctx, insert, g.ID, memberID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Repository) GetGroup(ctx context.Context, id int) (*Group, error) {
	g := &Group{}
	var creator sql.NullInt64
	query := "SELECT id, name, creator_id, created_at FROM groups WHERE id = $1"
	err := r.db.QueryRowContext(ctx, query, id).Scan(&g.ID, &g.Name, &creator, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	g.CreatorID = int(creator.Int64)
	return g, nil
}

func (r *Repository) IsGroupMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	query := "SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)"
	err := r.db.QueryRowContext(ctx, query, groupID, userID).Scan(&exists)
	return exists, err
}

func (r *Repository) AddGroupMember(ctx context.Context, groupID, userID int) error {
	query := "INSERT INTO group_members (group_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING"
	_, err := r.db.ExecContext(ctx, query, groupID, userID)
	return err
}

func (r *Repository) ListGroups(ctx context.Context, userID int) ([]Group, error) {
	query := `
		SELECT g.id, g.name, COALESCE(g.creator_id, 0), g.created_at
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY g.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatorID, &g.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}
