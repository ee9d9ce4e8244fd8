package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cloo-solutions/bookmind/internal/domain"
	"github.com/cloo-solutions/bookmind/internal/repository"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type importCategory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
	Order    int    `json:"order"`
}

type importBookmark struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	CategoryID  string     `json:"category_id"`
	CreatedAt   *time.Time `json:"created_at"`
}

type importFile struct {
	Categories []importCategory `json:"categories"`
	Bookmarks  []importBookmark `json:"bookmarks"`
}

func ImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Import bookmarks and categories from a JSON export",
		Long: `Reads {"categories": [...], "bookmarks": [...]} and upserts every entry in one
transaction. Bookmarks without an id get a generated one; a missing created_at
defaults to now. Changed bookmarks are queued for re-embedding.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	categories, bookmarks, err := parseImport(f, time.Now().UTC())
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	repo := repository.NewBookmarkRepositoryWithTx(tx)
	for _, c := range categories {
		if err := repo.UpsertCategory(ctx, c); err != nil {
			return fmt.Errorf("failed to import category %s: %w", c.ID, err)
		}
	}
	for _, b := range bookmarks {
		if err := repo.Upsert(ctx, b); err != nil {
			return fmt.Errorf("failed to import bookmark %s: %w", b.URL, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d categories and %d bookmarks\n", len(categories), len(bookmarks))
	return nil
}

// parseImport decodes and validates an export, filling generated ids and
// default timestamps.
func parseImport(r io.Reader, now time.Time) ([]*domain.Category, []*domain.Bookmark, error) {
	var file importFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	categories := make([]*domain.Category, 0, len(file.Categories))
	for i, c := range file.Categories {
		if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
			return nil, nil, fmt.Errorf("category %d: id and name are required", i)
		}
		categories = append(categories, &domain.Category{ID: c.ID, Name: c.Name, ParentID: c.ParentID, Order: c.Order})
	}
	// parents must precede children for the foreign key
	categories = parentsFirst(categories)

	bookmarks := make([]*domain.Bookmark, 0, len(file.Bookmarks))
	for i, ib := range file.Bookmarks {
		id := ib.ID
		if id == "" {
			id = uuid.NewString()
		}
		created := now
		if ib.CreatedAt != nil {
			created = ib.CreatedAt.UTC()
		}

		b := domain.NewBookmark(id, strings.TrimSpace(ib.URL), strings.TrimSpace(ib.Title), ib.Description, ib.Tags, ib.CategoryID, created)
		b.UpdatedAt = now
		if err := domain.ValidateBookmark(b); err != nil {
			return nil, nil, fmt.Errorf("bookmark %d: %w", i, err)
		}
		bookmarks = append(bookmarks, b)
	}

	return categories, bookmarks, nil
}

func parentsFirst(in []*domain.Category) []*domain.Category {
	byID := make(map[string]*domain.Category, len(in))
	for _, c := range in {
		byID[c.ID] = c
	}
	out := make([]*domain.Category, 0, len(in))
	placed := make(map[string]bool, len(in))
	var place func(c *domain.Category, depth int)
	place = func(c *domain.Category, depth int) {
		if placed[c.ID] || depth > len(in) {
			return
		}
		if parent, ok := byID[c.ParentID]; ok {
			place(parent, depth+1)
		}
		placed[c.ID] = true
		out = append(out, c)
	}
	for _, c := range in {
		place(c, 0)
	}
	return out
}
