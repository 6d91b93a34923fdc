package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

// TemplateRepository reads and stores composition templates.
type TemplateRepository struct {
	db *pgxpool.Pool
}

// NewTemplateRepository constructs a TemplateRepository.
func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

var _ repository.TemplateProvider = (*TemplateRepository)(nil)

// GetTemplate returns a composition with its roles in role id order.
func (r *TemplateRepository) GetTemplate(ctx context.Context, name, guildID string) (*model.Template, error) {
	t := model.Template{GuildID: guildID, Name: name}
	err := r.db.QueryRow(ctx,
		`SELECT owner FROM compositions WHERE guild_id = $1 AND comp_name = $2`,
		guildID, name,
	).Scan(&t.Owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get composition: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT role_id, role_name, party
		 FROM composition_roles
		 WHERE guild_id = $1 AND comp_name = $2
		 ORDER BY role_id ASC`,
		guildID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("list composition roles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d model.RoleDefinition
		if err := rows.Scan(&d.RoleID, &d.RoleName, &d.Party); err != nil {
			return nil, fmt.Errorf("scan composition role: %w", err)
		}
		t.Roles = append(t.Roles, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// PutTemplate stores a composition and its roles in one transaction.
func (r *TemplateRepository) PutTemplate(ctx context.Context, t *model.Template) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx,
		`INSERT INTO compositions (guild_id, comp_name, owner) VALUES ($1, $2, $3)`,
		t.GuildID, t.Name, t.Owner,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = repository.ErrAlreadyExists
			return err
		}
		return fmt.Errorf("insert composition: %w", err)
	}

	batch := &pgx.Batch{}
	for _, role := range t.Roles {
		batch.Queue(
			`INSERT INTO composition_roles (guild_id, comp_name, role_id, role_name, party)
			 VALUES ($1, $2, $3, $4, $5)`,
			t.GuildID, t.Name, role.RoleID, role.RoleName, role.Party,
		)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert composition roles: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
