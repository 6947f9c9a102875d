package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/catchsmart/catchsmart/internal/domain"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertItem(ctx context.Context, db execer, uploadID int64, userID string, item domain.ExtractedItem) error {
	var price sql.NullFloat64
	if item.Price != nil {
		price = sql.NullFloat64{Float64: *item.Price, Valid: true}
	}
	var quantity sql.NullInt64
	if item.Quantity != nil {
		quantity = sql.NullInt64{Int64: int64(*item.Quantity), Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO upload_items (upload_id, user_id, name, brand, model, color, size, price, quantity, image_url, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, uploadID, userID, item.Name, item.Brand, item.Model, item.Color, item.Size, price, quantity, item.ImageURL, item.Confidence)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

const itemColumns = `id, upload_id, name, brand, model, color, size, price, quantity, image_url, confidence, created_at`

// ListByUploadID returns an upload's items in extraction order.
func (s *ItemStore) ListByUploadID(ctx context.Context, uploadID int64) ([]*domain.StoredItem, error) {
	return s.query(ctx, `SELECT `+itemColumns+` FROM upload_items WHERE upload_id = ? ORDER BY id ASC`, uploadID)
}

// likeEscaper makes the search query match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches item names case-insensitively within one user's history.
func (s *ItemStore) Search(ctx context.Context, userID, query string) ([]*domain.StoredItem, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
	items, err := s.query(ctx, `
		SELECT `+itemColumns+` FROM upload_items
		WHERE user_id = ? AND LOWER(name) LIKE ? ESCAPE '\'
		ORDER BY name ASC, id ASC
	`, userID, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	return items, nil
}

func (s *ItemStore) extractedByUploadID(ctx context.Context, uploadID int64) ([]domain.ExtractedItem, error) {
	stored, err := s.ListByUploadID(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	items := make([]domain.ExtractedItem, 0, len(stored))
	for _, item := range stored {
		items = append(items, item.ExtractedItem)
	}
	return items, nil
}

func (s *ItemStore) query(ctx context.Context, query string, args ...any) ([]*domain.StoredItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var items []*domain.StoredItem
	for rows.Next() {
		item := &domain.StoredItem{}
		var price sql.NullFloat64
		var quantity sql.NullInt64
		if err := rows.Scan(&item.ID, &item.UploadID, &item.Name, &item.Brand, &item.Model, &item.Color, &item.Size,
			&price, &quantity, &item.ImageURL, &item.Confidence, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if price.Valid {
			p := price.Float64
			item.Price = &p
		}
		if quantity.Valid {
			q := int(quantity.Int64)
			item.Quantity = &q
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}
