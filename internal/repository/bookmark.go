package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookmarkColumns = `id, url, title, description, tags, category_id, deleted, created_at, updated_at`

// BookmarkRepository reads and writes bookmarks and categories.
type BookmarkRepository struct {
	db dbtx
}

func NewBookmarkRepository(pool *pgxpool.Pool) *BookmarkRepository {
	return &BookmarkRepository{db: pool}
}

func NewBookmarkRepositoryWithTx(tx pgx.Tx) *BookmarkRepository {
	return &BookmarkRepository{db: tx}
}

// Upsert inserts the bookmark or replaces the stored row with the same id.
func (r *BookmarkRepository) Upsert(ctx context.Context, b *domain.Bookmark) error {
	if err := domain.ValidateBookmark(b); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid bookmark", err)
	}
	updatedAt := b.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = b.CreatedAt
	}
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO bookmarks (`+bookmarkColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		     url = EXCLUDED.url,
		     title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     tags = EXCLUDED.tags,
		     category_id = EXCLUDED.category_id,
		     deleted = EXCLUDED.deleted,
		     updated_at = EXCLUDED.updated_at`,
		b.ID, b.URL, b.Title, b.Description, tags, nullableString(b.CategoryID), b.Deleted, b.CreatedAt, updatedAt,
	)
	return err
}

// GetByID returns a bookmark, including soft-deleted ones.
func (r *BookmarkRepository) GetByID(ctx context.Context, id string) (*domain.Bookmark, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = $1`, id)
	b, err := scanBookmark(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrBookmarkNotFound
		}
		return nil, err
	}
	return b, nil
}

// SoftDelete marks a bookmark deleted.
func (r *BookmarkRepository) SoftDelete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE bookmarks SET deleted = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrBookmarkNotFound
	}
	return nil
}

// GetBookmarks returns bookmarks matching filter, newest first. Soft-deleted
// rows are excluded unless IncludeDeleted is set.
func (r *BookmarkRepository) GetBookmarks(ctx context.Context, filter service.BookmarkFilter) ([]*domain.Bookmark, error) {
	var where []string
	var args []any

	if !filter.IncludeDeleted {
		where = append(where, "NOT deleted")
	}
	if filter.CategoryID != "" {
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	query := `SELECT ` + bookmarkColumns + ` FROM bookmarks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookmarks := make([]*domain.Bookmark, 0)
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, b)
	}
	return bookmarks, rows.Err()
}

// GetAllTags returns the distinct tags of live bookmarks, sorted.
func (r *BookmarkRepository) GetAllTags(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT tag
		 FROM bookmarks, unnest(tags) AS tag
		 WHERE NOT deleted AND tag <> ''
		 ORDER BY tag`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make([]string, 0)
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// UpsertCategory inserts a category or renames/moves the existing one.
func (r *BookmarkRepository) UpsertCategory(ctx context.Context, c *domain.Category) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO categories (id, name, parent_id, sort_order) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, parent_id = EXCLUDED.parent_id, sort_order = EXCLUDED.sort_order`,
		c.ID, c.Name, nullableString(c.ParentID), c.Order,
	)
	return err
}

// GetCategories returns all categories ordered by parent and sibling order.
func (r *BookmarkRepository) GetCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, parent_id, sort_order
		 FROM categories
		 ORDER BY parent_id NULLS FIRST, sort_order, name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]*domain.Category, 0)
	for rows.Next() {
		var c domain.Category
		var parentID pgtype.Text
		if err := rows.Scan(&c.ID, &c.Name, &parentID, &c.Order); err != nil {
			return nil, err
		}
		if parentID.Valid {
			c.ParentID = parentID.String
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func scanBookmark(row pgx.Row) (*domain.Bookmark, error) {
	var b domain.Bookmark
	var categoryID pgtype.Text
	if err := row.Scan(&b.ID, &b.URL, &b.Title, &b.Description, &b.Tags, &categoryID, &b.Deleted, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		b.CategoryID = categoryID.String
	}
	return &b, nil
}
