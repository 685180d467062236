package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// GroupRepository defines device group persistence. Deletion is soft.
type GroupRepository interface {
	GetGroup(ctx context.Context, id string) (*Group, error)
	ListGroups(ctx context.Context, activeOnly bool) ([]Group, error)
	CreateGroup(ctx context.Context, g *Group) error
	UpdateGroup(ctx context.Context, g *Group) error
	DeactivateGroup(ctx context.Context, id string) error
}

const groupColumns = `id, name, device_ids, is_active, created_at, updated_at`

// GetGroup retrieves a group by ID.
func (r *SQLiteRepository) GetGroup(ctx context.Context, id string) (*Group, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM device_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGroupNotFound
		}
		return nil, fmt.Errorf("querying group: %w", err)
	}
	return g, nil
}

// ListGroups retrieves groups ordered by name.
func (r *SQLiteRepository) ListGroups(ctx context.Context, activeOnly bool) ([]Group, error) {
	query := `SELECT ` + groupColumns + ` FROM device_groups`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating groups: %w", err)
	}
	return groups, nil
}

// CreateGroup inserts a group. The caller assigns the ID.
func (r *SQLiteRepository) CreateGroup(ctx context.Context, g *Group) error {
	members, err := json.Marshal(nonNil(g.DeviceIDs))
	if err != nil {
		return fmt.Errorf("marshalling device_ids: %w", err)
	}

	now := r.now()
	g.CreatedAt = now
	g.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO device_groups (`+groupColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.Name, string(members), boolToInt(g.IsActive),
		now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

// UpdateGroup replaces name, members and active flag.
func (r *SQLiteRepository) UpdateGroup(ctx context.Context, g *Group) error {
	members, err := json.Marshal(nonNil(g.DeviceIDs))
	if err != nil {
		return fmt.Errorf("marshalling device_ids: %w", err)
	}
	g.UpdatedAt = r.now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE device_groups SET name = ?, device_ids = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		g.Name, string(members), boolToInt(g.IsActive), g.UpdatedAt.Format(time.RFC3339), g.ID,
	)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	return expectOneRow(result, ErrGroupNotFound)
}

// DeactivateGroup soft-deletes a group.
func (r *SQLiteRepository) DeactivateGroup(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE device_groups SET is_active = 0, updated_at = ? WHERE id = ?`,
		r.now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating group: %w", err)
	}
	return expectOneRow(result, ErrGroupNotFound)
}

func scanGroup(scanner rowScanner) (*Group, error) {
	var g Group
	var members string
	var active int
	var createdAt, updatedAt string

	if err := scanner.Scan(&g.ID, &g.Name, &members, &active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(members), &g.DeviceIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling device_ids: %w", err)
	}
	g.IsActive = active != 0
	g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &g, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
