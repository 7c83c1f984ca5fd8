package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/hotel-booking/internal/domain/room"
)

const (
	listRoomTypesSQL = `SELECT id, name, description, nightly_rate, capacity, units, active
		FROM room_types WHERE active = TRUE ORDER BY nightly_rate, id`

	getRoomTypeByIDSQL = `SELECT id, name, description, nightly_rate, capacity, units, active
		FROM room_types WHERE id = $1`

	upsertRoomTypeSQL = `INSERT INTO room_types (id, name, description, nightly_rate, capacity, units, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			nightly_rate = EXCLUDED.nightly_rate, capacity = EXCLUDED.capacity, units = EXCLUDED.units,
			active = EXCLUDED.active`
)

var _ room.Repository = (*RoomRepository)(nil)

// RoomRepository implements room.Repository backed by PostgreSQL.
type RoomRepository struct {
	db DB
}

// NewRoomRepository returns a RoomRepository that uses the given pool.
func NewRoomRepository(db DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// List returns the active room types, cheapest first.
func (r *RoomRepository) List(ctx context.Context) ([]room.RoomType, error) {
	rows, err := r.db.Query(ctx, listRoomTypesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list room types")
	}
	return pgx.CollectRows(rows, scanRoomType)
}

// GetByID returns a room type, active or not.
func (r *RoomRepository) GetByID(ctx context.Context, id string) (*room.RoomType, error) {
	rows, err := r.db.Query(ctx, getRoomTypeByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get room type %q", id)
	}

	rt, err := pgx.CollectExactlyOneRow(rows, scanRoomType)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, room.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get room type %q", id)
	}
	return &rt, nil
}

// Upsert stores or replaces a room type by id.
func (r *RoomRepository) Upsert(ctx context.Context, rt room.RoomType) error {
	if _, err := r.db.Exec(ctx, upsertRoomTypeSQL,
		rt.ID, rt.Name, rt.Description, rt.NightlyRate, int32(rt.Capacity), int32(rt.Units), rt.Active,
	); err != nil {
		return errors.Wrapf(err, "upsert room type %q", rt.ID)
	}
	return nil
}

func scanRoomType(row pgx.CollectableRow) (room.RoomType, error) {
	var (
		rt       room.RoomType
		capacity int32
		units    int32
	)
	err := row.Scan(&rt.ID, &rt.Name, &rt.Description, &rt.NightlyRate, &capacity, &units, &rt.Active)
	rt.Capacity = int(capacity)
	rt.Units = int(units)
	return rt, err
}
