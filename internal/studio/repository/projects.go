package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"garment-studio/internal/studio/models"

	"github.com/google/uuid"
)

// ============================================================
// Cloud Project Store
// ============================================================

const projectColumns = `id, user_id, title, scene, garment_type, garment_color, garment_size, preview_url, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (*models.Project, error) {
	var (
		p     models.Project
		scene string
	)
	err := row.Scan(&p.ID, &p.UserID, &p.Title, &scene,
		&p.Garment.Type, &p.Garment.Color, &p.Garment.Size,
		&p.PreviewURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Scene = []byte(scene)
	return &p, nil
}

// CreateProject сохраняет новый проект и возвращает его id.
func (r *Repository) CreateProject(ctx context.Context, p *models.Project) (string, error) {
	now := r.timestamp()
	p.ID = uuid.NewString()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO projects (`+projectColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, p.ID, p.UserID, p.Title, string(p.Scene),
		p.Garment.Type, p.Garment.Color, p.Garment.Size,
		p.PreviewURL, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("insert project: %w", err)
	}
	return p.ID, nil
}

// UpdateProject применяет частичное обновление; updated_at меняется всегда.
func (r *Repository) UpdateProject(ctx context.Context, id string, patch models.ProjectPatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{r.timestamp()}

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if len(patch.Scene) > 0 {
		sets = append(sets, "scene = ?")
		args = append(args, string(patch.Scene))
	}
	if patch.Garment != nil {
		sets = append(sets, "garment_type = ?", "garment_color = ?", "garment_size = ?")
		args = append(args, patch.Garment.Type, patch.Garment.Color, patch.Garment.Size)
	}
	if patch.PreviewURL != nil {
		sets = append(sets, "preview_url = ?")
		args = append(args, *patch.PreviewURL)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, `UPDATE projects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListProjects — проекты пользователя, последние изменённые первыми.
func (r *Repository) ListProjects(ctx context.Context, userID string) ([]models.ProjectSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT id, title, garment_type, garment_color, garment_size, preview_url, updated_at
        FROM projects
        WHERE user_id = ?
        ORDER BY updated_at DESC, id
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []models.ProjectSummary{}
	for rows.Next() {
		var s models.ProjectSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Garment.Type, &s.Garment.Color, &s.Garment.Size, &s.PreviewURL, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetProject(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
