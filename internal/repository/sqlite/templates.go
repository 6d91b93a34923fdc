package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/guild-roster/internal/model"
	"github.com/Shivanand-hulikatti/guild-roster/internal/repository"
)

type TemplateRepo struct{ db *sql.DB }

func NewTemplateRepo(db *sql.DB) *TemplateRepo { return &TemplateRepo{db: db} }

var _ repository.TemplateProvider = (*TemplateRepo)(nil)

func (s *TemplateRepo) GetTemplate(ctx context.Context, name, guildID string) (*model.Template, error) {
	t := model.Template{GuildID: guildID, Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT owner FROM compositions WHERE guild_id = ? AND comp_name = ?`, guildID, name).Scan(&t.Owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get composition: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT role_id, role_name, party FROM composition_roles WHERE guild_id = ? AND comp_name = ? ORDER BY role_id ASC`, guildID, name)
	if err != nil {
		return nil, fmt.Errorf("list composition roles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d model.RoleDefinition
		if err := rows.Scan(&d.RoleID, &d.RoleName, &d.Party); err != nil {
			return nil, err
		}
		t.Roles = append(t.Roles, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *TemplateRepo) PutTemplate(ctx context.Context, t *model.Template) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO compositions (guild_id, comp_name, owner) VALUES (?, ?, ?)`, t.GuildID, t.Name, t.Owner); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrAlreadyExists
		}
		return fmt.Errorf("insert composition: %w", err)
	}
	for _, role := range t.Roles {
		if _, err := tx.ExecContext(ctx, `INSERT INTO composition_roles (guild_id, comp_name, role_id, role_name, party) VALUES (?, ?, ?, ?, ?)`,
			t.GuildID, t.Name, role.RoleID, role.RoleName, role.Party); err != nil {
			return fmt.Errorf("insert composition role %d: %w", role.RoleID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
