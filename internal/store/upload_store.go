package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/catchsmart/catchsmart/internal/domain"
)

type UploadStore struct {
	db    *sql.DB
	items *ItemStore
}

func NewUploadStore(db *sql.DB) *UploadStore {
	return &UploadStore{db: db, items: NewItemStore(db)}
}

// Create records an upload and its items in one transaction.
func (s *UploadStore) Create(ctx context.Context, upload *domain.Upload) (*domain.Upload, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("failed to rollback transaction", "error", err)
		}
	}()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO uploads (user_id, storage_path, image_url, doc_type, raw_text) VALUES (?, ?, ?, ?, ?)
	`, upload.UserID, upload.StoragePath, upload.ImageURL, string(upload.Type), upload.RawText)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for _, item := range upload.Items {
		if err := insertItem(ctx, tx, id, upload.UserID, item); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit upload: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *UploadStore) GetByID(ctx context.Context, id int64) (*domain.Upload, error) {
	upload := &domain.Upload{}
	var docType string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, storage_path, image_url, doc_type, raw_text, created_at FROM uploads WHERE id = ?
	`, id).Scan(&upload.ID, &upload.UserID, &upload.StoragePath, &upload.ImageURL, &docType, &upload.RawText, &upload.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	upload.Type = domain.DocumentType(docType)

	if upload.Items, err = s.items.extractedByUploadID(ctx, upload.ID); err != nil {
		return nil, err
	}
	return upload, nil
}

// ListByUser returns the user's most recent uploads, newest first.
func (s *UploadStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, storage_path, image_url, doc_type, raw_text, created_at FROM uploads
		WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var uploads []*domain.Upload
	for rows.Next() {
		upload := &domain.Upload{}
		var docType string
		if err := rows.Scan(&upload.ID, &upload.UserID, &upload.StoragePath, &upload.ImageURL, &docType, &upload.RawText, &upload.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		upload.Type = domain.DocumentType(docType)
		uploads = append(uploads, upload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating uploads: %w", err)
	}

	// Items are loaded after the cursor is closed; test databases allow a
	// single connection.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}
	for _, upload := range uploads {
		if upload.Items, err = s.items.extractedByUploadID(ctx, upload.ID); err != nil {
			return nil, err
		}
	}

	return uploads, nil
}
