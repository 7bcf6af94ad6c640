package rooms

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisys/hms/internal/platform/httpx"
)

// Repository persists rooms.
type Repository interface {
	List(ctx context.Context, filters ListFilters) ([]Room, int, error)
	Get(ctx context.Context, id int64) (Room, error)
	Create(ctx context.Context, room Room) (Room, error)
	Update(ctx context.Context, id int64, room Room) (Room, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a PostgreSQL backed Repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const roomColumns = `id, code, name, floor, capacity, kind, created_at, updated_at`

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Room, int, error) {
	where := ` WHERE 1=1`
	var args []any
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		n := strconv.Itoa(len(args))
		where += ` AND (name ILIKE $` + n + ` OR code ILIKE $` + n + `)`
	}
	if filters.Kind != "" {
		args = append(args, filters.Kind)
		where += ` AND kind = $` + strconv.Itoa(len(args))
	}
	if filters.Floor != nil {
		args = append(args, *filters.Floor)
		where += ` AND floor = $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rooms`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("rooms: count: %w", err)
	}

	query := `SELECT ` + roomColumns + ` FROM rooms` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.SortDir)
	if filters.Window.PerPage > 0 {
		args = append(args, filters.Window.PerPage, filters.Window.Offset())
		query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("rooms: list: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanRoom)
	if err != nil {
		return nil, 0, fmt.Errorf("rooms: scan: %w", err)
	}
	return out, total, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Room, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id)
	if err != nil {
		return Room{}, fmt.Errorf("rooms: get: %w", err)
	}
	room, err := pgx.CollectExactlyOneRow(rows, scanRoom)
	if err != nil {
		return Room{}, mapError(err)
	}
	return room, nil
}

func (r *repository) Create(ctx context.Context, room Room) (Room, error) {
	rows, err := r.db.Query(ctx, `
		INSERT INTO rooms (code, name, floor, capacity, kind)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+roomColumns,
		room.Code, room.Name, room.Floor, room.Capacity, room.Kind)
	if err != nil {
		return Room{}, mapError(err)
	}
	created, err := pgx.CollectExactlyOneRow(rows, scanRoom)
	if err != nil {
		return Room{}, mapError(err)
	}
	return created, nil
}

func (r *repository) Update(ctx context.Context, id int64, room Room) (Room, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE rooms
		SET code = $1, name = $2, floor = $3, capacity = $4, kind = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING `+roomColumns,
		room.Code, room.Name, room.Floor, room.Capacity, room.Kind, id)
	if err != nil {
		return Room{}, mapError(err)
	}
	updated, err := pgx.CollectExactlyOneRow(rows, scanRoom)
	if err != nil {
		return Room{}, mapError(err)
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rooms: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func scanRoom(row pgx.CollectableRow) (Room, error) {
	var room Room
	err := row.Scan(&room.ID, &room.Code, &room.Name, &room.Floor, &room.Capacity, &room.Kind, &room.CreatedAt, &room.UpdatedAt)
	return room, err
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return httpx.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: room code already registered", httpx.ErrDuplicate)
	}
	return fmt.Errorf("rooms: %w", err)
}

func sortOrder(sortBy, sortDir string) string {
	dir := "ASC"
	if sortDir == "desc" {
		dir = "DESC"
	}
	switch sortBy {
	case "code":
		return "code " + dir
	case "floor":
		return "floor " + dir + ", code ASC"
	case "capacity":
		return "capacity " + dir + ", code ASC"
	default:
		return "name " + dir
	}
}
