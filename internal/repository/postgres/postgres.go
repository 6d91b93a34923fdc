// Package postgres implements the roster and template repositories on
// PostgreSQL using pgx directly (no ORM).
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

const uniqueViolation = "23505"

const rosterColumns = `event_id, guild_id, organizer, title, event_date, event_time, comp_name,
	lock_offset_minutes, slots, version, created_at, updated_at`

// RosterRepository persists rosters as one row per event with the slot list
// in a JSONB column.
type RosterRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *pgxpool.Pool) *RosterRepository {
	return &RosterRepository{db: db, now: time.Now}
}

var _ repository.RosterStore = (*RosterRepository)(nil)

// Close is a no-op; the pool is owned by the caller.
func (r *RosterRepository) Close() {}

// Create inserts a new roster. ErrAlreadyExists if the event id is taken.
func (r *RosterRepository) Create(ctx context.Context, ro *model.Roster) error {
	startsAt, err := ro.StartsAt()
	if err != nil {
		return err
	}
	slots, err := json.Marshal(ro.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO rosters (event_id, guild_id, organizer, title, event_date, event_time, comp_name,
		                      lock_offset_minutes, starts_at, slots, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ro.EventID, ro.GuildID, ro.Organizer, ro.Title, ro.Date, ro.Time, ro.Composition,
		ro.LockOffsetMinutes, startsAt, string(slots), ro.Version, ro.CreatedAt, ro.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert roster: %w", err)
	}
	return nil
}

// Load returns the roster for an event in a guild or ErrNotFound.
func (r *RosterRepository) Load(ctx context.Context, eventID, guildID string) (*model.Roster, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+rosterColumns+` FROM rosters WHERE event_id = $1 AND guild_id = $2`,
		eventID, guildID,
	)
	ro, err := scanRoster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get roster: %w", err)
	}
	return ro, nil
}

// Update performs a serialised read-modify-write of one roster.
//
// SELECT … FOR UPDATE takes a row-level exclusive lock on the roster the
// moment the SELECT executes inside the transaction. A concurrent Update on
// the same event blocks on its own SELECT until this transaction commits or
// rolls back, and then reads the committed document. Two claims racing for
// the same slot are therefore applied one after the other: the second sees
// the slot already taken.
func (r *RosterRepository) Update(ctx context.Context, eventID, guildID string, fn repository.MutateFunc) (*model.Roster, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	row := tx.QueryRow(ctx,
		`SELECT `+rosterColumns+` FROM rosters WHERE event_id = $1 AND guild_id = $2 FOR UPDATE`,
		eventID, guildID,
	)
	current, err := scanRoster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = repository.ErrNotFound
			return nil, err
		}
		return nil, fmt.Errorf("lock roster row: %w", err)
	}

	next, err := repository.Apply(current, fn, r.now())
	if err != nil {
		return nil, err
	}
	startsAt, err := next.StartsAt()
	if err != nil {
		return nil, err
	}
	slots, err := json.Marshal(next.Slots)
	if err != nil {
		return nil, fmt.Errorf("marshal slots: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE rosters
		 SET title = $3, event_date = $4, event_time = $5, lock_offset_minutes = $6,
		     starts_at = $7, slots = $8, version = $9, updated_at = $10
		 WHERE event_id = $1 AND guild_id = $2`,
		eventID, guildID, next.Title, next.Date, next.Time, next.LockOffsetMinutes,
		startsAt, string(slots), next.Version, next.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update roster: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return next, nil
}

// Delete removes a roster. Deleting an absent roster returns ErrNotFound.
func (r *RosterRepository) Delete(ctx context.Context, eventID, guildID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM rosters WHERE event_id = $1 AND guild_id = $2`, eventID, guildID)
	if err != nil {
		return fmt.Errorf("delete roster: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByOccupant returns the guild's rosters where participant holds a slot,
// ordered by start time.
func (r *RosterRepository) ListByOccupant(ctx context.Context, guildID, participant string) ([]*model.Roster, error) {
	filter, err := json.Marshal([]map[string]string{{"occupant": participant}})
	if err != nil {
		return nil, fmt.Errorf("marshal occupant filter: %w", err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+rosterColumns+`
		 FROM rosters
		 WHERE guild_id = $1 AND slots @> $2::jsonb
		 ORDER BY starts_at ASC`,
		guildID, string(filter),
	)
	if err != nil {
		return nil, fmt.Errorf("list rosters by occupant: %w", err)
	}
	defer rows.Close()

	var out []*model.Roster
	for rows.Next() {
		ro, err := scanRoster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		out = append(out, ro)
	}
	return out, rows.Err()
}

// DeleteStartedBefore removes every roster whose start precedes cutoff.
func (r *RosterRepository) DeleteStartedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.db.Query(ctx, `DELETE FROM rosters WHERE starts_at < $1 RETURNING event_id`, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("delete expired rosters: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect expired rosters: %w", err)
	}
	return ids, nil
}

func scanRoster(row pgx.Row) (*model.Roster, error) {
	var (
		ro    model.Roster
		lock  *int
		slots []byte
	)
	err := row.Scan(&ro.EventID, &ro.GuildID, &ro.Organizer, &ro.Title, &ro.Date, &ro.Time, &ro.Composition,
		&lock, &slots, &ro.Version, &ro.CreatedAt, &ro.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(slots, &ro.Slots); err != nil {
		return nil, fmt.Errorf("decode slots of roster %s: %w", ro.EventID, err)
	}
	ro.LockOffsetMinutes = lock
	ro.CreatedAt = ro.CreatedAt.UTC()
	ro.UpdatedAt = ro.UpdatedAt.UTC()
	return &ro, nil
}
