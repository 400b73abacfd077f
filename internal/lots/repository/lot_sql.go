package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	lotserrors "parksphere/internal/lots/errors"
	sqldb "parksphere/pkg/db/sql"
	"parksphere/pkg/model"
)

const (
	TableName  = "parking_lots"
	lotColumns = "id, name, address, latitude, longitude, total_slots, available_slots, price_per_hour, created_at"
)

type sqlLotRepository struct {
	db *sqldb.DB
}

func NewSQLLotRepository(db *sqldb.DB) LotRepository {
	return &sqlLotRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLot(row rowScanner) (*model.Lot, error) {
	var lot model.Lot
	err := row.Scan(
		&lot.ID,
		&lot.Name,
		&lot.Address,
		&lot.Latitude,
		&lot.Longitude,
		&lot.TotalSlots,
		&lot.AvailableSlots,
		&lot.PricePerHour,
		&lot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *sqlLotRepository) Create(ctx context.Context, lot *model.Lot) error {
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}

	query := r.db.Dialect().Rebind(`INSERT INTO ` + TableName + ` (` + lotColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		lot.ID,
		lot.Name,
		lot.Address,
		lot.Latitude,
		lot.Longitude,
		lot.TotalSlots,
		lot.AvailableSlots,
		lot.PricePerHour,
		lot.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create parking lot: %w", err)
	}
	return nil
}

func (r *sqlLotRepository) FindByID(ctx context.Context, id string) (*model.Lot, error) {
	return r.findOne(ctx, id, "")
}

func (r *sqlLotRepository) FindByIDForUpdate(ctx context.Context, id string) (*model.Lot, error) {
	return r.findOne(ctx, id, r.db.Dialect().LockSuffix())
}

func (r *sqlLotRepository) findOne(ctx context.Context, id, suffix string) (*model.Lot, error) {
	query := r.db.Dialect().Rebind(`SELECT ` + lotColumns + ` FROM ` + TableName + ` WHERE id = ?` + suffix)

	lot, err := scanLot(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", lotserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find parking lot: %w", err)
	}
	return lot, nil
}

func (r *sqlLotRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lot, error) {
	result := make(map[string]*model.Lot, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := r.db.Dialect().Rebind(`SELECT ` + lotColumns + ` FROM ` + TableName + ` WHERE id IN (` + placeholders + `)`)
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query parking lots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode parking lot: %w", err)
		}
		result[lot.ID] = lot
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parking lots: %w", err)
	}
	return result, nil
}

func (r *sqlLotRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Lot, error) {
	query := r.db.Dialect().Rebind(`SELECT ` + lotColumns + ` FROM ` + TableName + ` ORDER BY name ASC, id ASC LIMIT ? OFFSET ?`)
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query parking lots: %w", err)
	}
	defer rows.Close()

	lots := []*model.Lot{}
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to decode parking lot: %w", err)
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate parking lots: %w", err)
	}
	return lots, nil
}

func (r *sqlLotRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.Executor(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count parking lots: %w", err)
	}
	return count, nil
}

func (r *sqlLotRepository) DecrementAvailable(ctx context.Context, id string) (*model.Lot, error) {
	return r.conditionalUpdate(ctx, id,
		`UPDATE `+TableName+` SET available_slots = available_slots - 1 WHERE id = ? AND available_slots > 0`,
		lotserrors.ErrNoAvailableSlot,
	)
}

func (r *sqlLotRepository) IncrementAvailable(ctx context.Context, id string) (*model.Lot, error) {
	return r.conditionalUpdate(ctx, id,
		`UPDATE `+TableName+` SET available_slots = available_slots + 1 WHERE id = ? AND available_slots < total_slots`,
		lotserrors.ErrSlotsAtCapacity,
	)
}

// conditionalUpdate runs a guarded single-row UPDATE and reports notApplied
// when the guard rejected it. The returned lot is read through the same
// executor, so inside a transaction it is the post-update row.
func (r *sqlLotRepository) conditionalUpdate(ctx context.Context, id, update string, notApplied error) (*model.Lot, error) {
	exec := r.db.Executor(ctx)

	res, err := exec.ExecContext(ctx, r.db.Dialect().Rebind(update), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update parking lot slots: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return nil, notApplied
	}

	return r.findOne(ctx, id, "")
}
