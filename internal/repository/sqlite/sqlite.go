// Package sqlite implements the roster and template repositories on an
// embedded SQLite database (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

const rosterColumns = `event_id, guild_id, organizer, title, event_date, event_time, comp_name,
	lock_offset_minutes, slots, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

// RosterRepo stores rosters in SQLite. Updates use a compare-and-swap on the
// version column so a writer that lost a race never overwrites a newer roster.
type RosterRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRosterRepo wraps an opened database (see database.OpenSQLite).
func NewRosterRepo(db *sql.DB) *RosterRepo {
	return &RosterRepo{db: db, now: time.Now}
}

var _ repository.RosterStore = (*RosterRepo)(nil)

func (s *RosterRepo) Close() { _ = s.db.Close() }

func (s *RosterRepo) Create(ctx context.Context, r *model.Roster) error {
	startsAt, err := r.StartsAt()
	if err != nil {
		return err
	}
	slots, err := json.Marshal(r.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO rosters (event_id, guild_id, organizer, title, event_date, event_time, comp_name,
	                     lock_offset_minutes, starts_at, slots, version, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EventID, r.GuildID, r.Organizer, r.Title, r.Date, r.Time, r.Composition,
		nullableInt(r.LockOffsetMinutes), startsAt.Unix(), string(slots), r.Version,
		r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert roster: %w", err)
	}
	return nil
}

func (s *RosterRepo) Load(ctx context.Context, eventID, guildID string) (*model.Roster, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rosterColumns+` FROM rosters WHERE event_id = ? AND guild_id = ?`, eventID, guildID)
	r, err := scanRoster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get roster: %w", err)
	}
	return r, nil
}

func (s *RosterRepo) Update(ctx context.Context, eventID, guildID string, fn repository.MutateFunc) (*model.Roster, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+rosterColumns+` FROM rosters WHERE event_id = ? AND guild_id = ?`, eventID, guildID)
	current, err := scanRoster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}

	next, err := repository.Apply(current, fn, s.now())
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

	res, err := tx.ExecContext(ctx, `
	UPDATE rosters
	SET title = ?, event_date = ?, event_time = ?, lock_offset_minutes = ?, starts_at = ?,
	    slots = ?, version = ?, updated_at = ?
	WHERE event_id = ? AND guild_id = ? AND version = ?`,
		next.Title, next.Date, next.Time, nullableInt(next.LockOffsetMinutes), startsAt.Unix(),
		string(slots), next.Version, next.UpdatedAt.UnixMilli(),
		eventID, guildID, current.Version)
	if err != nil {
		return nil, fmt.Errorf("update roster: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update roster: %w", err)
	}
	if n == 0 {
		return nil, repository.ErrVersionConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return next, nil
}

func (s *RosterRepo) Delete(ctx context.Context, eventID, guildID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rosters WHERE event_id = ? AND guild_id = ?`, eventID, guildID)
	if err != nil {
		return fmt.Errorf("delete roster: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *RosterRepo) ListByOccupant(ctx context.Context, guildID, participant string) ([]*model.Roster, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT `+rosterColumns+`
	FROM rosters
	WHERE guild_id = ?
	  AND EXISTS (SELECT 1 FROM json_each(rosters.slots) WHERE json_extract(json_each.value, '$.occupant') = ?)
	ORDER BY starts_at ASC`, guildID, participant)
	if err != nil {
		return nil, fmt.Errorf("list rosters by occupant: %w", err)
	}
	defer rows.Close()
	var out []*model.Roster
	for rows.Next() {
		r, err := scanRoster(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *RosterRepo) DeleteStartedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `DELETE FROM rosters WHERE starts_at < ? RETURNING event_id`, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("delete expired rosters: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRoster(row scanner) (*model.Roster, error) {
	var (
		r                model.Roster
		lock             sql.NullInt64
		slots            string
		created, updated int64
	)
	if err := row.Scan(&r.EventID, &r.GuildID, &r.Organizer, &r.Title, &r.Date, &r.Time, &r.Composition,
		&lock, &slots, &r.Version, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(slots), &r.Slots); err != nil {
		return nil, fmt.Errorf("decode slots of roster %s: %w", r.EventID, err)
	}
	if lock.Valid {
		v := int(lock.Int64)
		r.LockOffsetMinutes = &v
	}
	r.CreatedAt = time.UnixMilli(created).UTC()
	r.UpdatedAt = time.UnixMilli(updated).UTC()
	return &r, nil
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY")
}
