package repository

import (
	"context"
	"database/sql"
	"errors"

	"naskah/config/database"
	"naskah/internal/document/model"
	"naskah/pkg/logger"
)

var ErrNotFound = errors.New("document not found")

type DocumentRepository struct {
	DB database.Source
}

func NewDocumentRepository(db database.Source) *DocumentRepository {
	return &DocumentRepository{DB: db}
}

func (r *DocumentRepository) Create(ctx context.Context, d *model.Document) error {
	db, err := r.DB.Get(ctx)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, title, content, markdown, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.UserID, d.Title, d.Content, d.Markdown, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		logger.Sugar.Errorf("Failed to create document: %v", err)
	}
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	db, err := r.DB.Get(ctx)
	if err != nil {
		return nil, err
	}

	var d model.Document
	err = db.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, markdown, created_at, updated_at FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.UserID, &d.Title, &d.Content, &d.Markdown, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		logger.Sugar.Errorf("Failed to get doc %s: %v", id, err)
		return nil, err
	}
	return &d, nil
}

// ListPreviewsByUser returns the user's documents, most recently updated first.
func (r *DocumentRepository) ListPreviewsByUser(ctx context.Context, userID string) ([]model.DocumentPreview, error) {
	db, err := r.DB.Get(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, title, markdown, created_at FROM documents WHERE user_id = $1 ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to get documents for user %s: %v", userID, err)
		return nil, err
	}
	defer rows.Close()

	previews := []model.DocumentPreview{}
	for rows.Next() {
		var p model.DocumentPreview
		if err := rows.Scan(&p.ID, &p.Title, &p.Markdown, &p.CreatedAt); err != nil {
			return nil, err
		}
		previews = append(previews, p)
	}
	return previews, rows.Err()
}

// Update writes the mutable fields of d. It only touches a row owned by
// d.UserID and reports ErrNotFound when no such row exists.
func (r *DocumentRepository) Update(ctx context.Context, d *model.Document) error {
	db, err := r.DB.Get(ctx)
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx,
		`UPDATE documents SET title = $1, content = $2, markdown = $3, updated_at = $4 WHERE id = $5 AND user_id = $6`,
		d.Title, d.Content, d.Markdown, d.UpdatedAt, d.ID, d.UserID)
	if err != nil {
		logger.Sugar.Errorf("Failed to update doc %s: %v", d.ID, err)
		return err
	}
	return requireRow(result)
}

func (r *DocumentRepository) Delete(ctx context.Context, id, userID string) error {
	db, err := r.DB.Get(ctx)
	if err != nil {
		return err
	}
	result, err := db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		logger.Sugar.Errorf("Failed to delete doc %s: %v", id, err)
		return err
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
