package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines device persistence. Deletion is soft: a removed
// device stays in the table as inactive and unpaired.
type Repository interface {
	// GetByID returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// GetByAddress looks a device up by its normalised MAC address.
	GetByAddress(ctx context.Context, address string) (*Device, error)

	// List returns devices ordered by name, optionally only active ones.
	List(ctx context.Context, activeOnly bool) ([]Device, error)

	// Create inserts a new device. Returns ErrDeviceExists on an ID or
	// address collision.
	Create(ctx context.Context, d *Device) error

	// Upsert inserts the device or, when the address is already known,
	// refreshes name, kind and model and reactivates it. The stored row
	// (with its original ID) is written back into d.
	Upsert(ctx context.Context, d *Device) error

	// Update modifies name, kind, model and room.
	Update(ctx context.Context, d *Device) error

	// SetPaired records the pairing flag.
	SetPaired(ctx context.Context, id string, paired bool) error

	// Deactivate marks the device inactive and unpaired.
	Deactivate(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository and GroupRepository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const deviceColumns = `id, name, kind, address, model, room, is_active, is_paired, created_at, updated_at`

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// GetByAddress retrieves a device by MAC address.
func (r *SQLiteRepository) GetByAddress(ctx context.Context, address string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE address = ?`, address)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by address: %w", err)
	}
	return d, nil
}

// List retrieves devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context, activeOnly bool) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	now := r.now()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, string(d.Kind), d.Address,
		nullableString(d.Model), nullableString(d.Room),
		boolToInt(d.IsActive), boolToInt(d.IsPaired),
		d.CreatedAt.Format(time.RFC3339), d.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Upsert registers a device keyed on its address.
func (r *SQLiteRepository) Upsert(ctx context.Context, d *Device) error {
	now := r.now().Format(time.RFC3339)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			kind = excluded.kind,
			model = excluded.model,
			is_active = 1,
			updated_at = excluded.updated_at`,
		d.ID, d.Name, string(d.Kind), d.Address,
		nullableString(d.Model), nullableString(d.Room),
		boolToInt(d.IsPaired), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("upserting device: %w", err)
	}

	stored, err := r.GetByAddress(ctx, d.Address)
	if err != nil {
		return err
	}
	*d = *stored
	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	d.UpdatedAt = r.now()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET name = ?, kind = ?, model = ?, room = ?, updated_at = ?
		WHERE id = ?`,
		d.Name, string(d.Kind), nullableString(d.Model), nullableString(d.Room),
		d.UpdatedAt.Format(time.RFC3339), d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return expectOneRow(result, ErrDeviceNotFound)
}

// SetPaired records the pairing flag.
func (r *SQLiteRepository) SetPaired(ctx context.Context, id string, paired bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET is_paired = ?, updated_at = ? WHERE id = ?`,
		boolToInt(paired), r.now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating pairing: %w", err)
	}
	return expectOneRow(result, ErrDeviceNotFound)
}

// Deactivate soft-deletes a device.
func (r *SQLiteRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET is_active = 0, is_paired = 0, updated_at = ? WHERE id = ?`,
		r.now().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("deactivating device: %w", err)
	}
	return expectOneRow(result, ErrDeviceNotFound)
}

// rowScanner is implemented by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(scanner rowScanner) (*Device, error) {
	var d Device
	var kind string
	var model, room sql.NullString
	var active, paired int
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&d.ID, &d.Name, &kind, &d.Address, &model, &room,
		&active, &paired, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	d.IsActive = active != 0
	d.IsPaired = paired != 0
	if model.Valid {
		d.Model = &model.String
	}
	if room.Valid {
		d.Room = &room.String
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled
	return &d, nil
}

func expectOneRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed")
}
