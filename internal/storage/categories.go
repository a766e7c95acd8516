package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"
)

const categoryColumns = `id, name, type, icon, created_at`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c         core.Category
		typ       string
		createdAt string
	)
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Icon, &createdAt); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TxType(typ)
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// ListCategories returns categories ordered by type then name. An empty type
// returns both directions.
func (r *SQLiteRepository) ListCategories(ctx context.Context, typ core.TxType) ([]core.Category, error) {
	q := &selectQuery{columns: categoryColumns, from: "categories", orderBy: "type, name"}
	if typ != "" {
		q.and("type = ?", string(typ))
	}
	query, args := q.build()

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func categoryIDKey(id int64) string     { return "id:" + strconv.FormatInt(id, 10) }
func categoryNameKey(name string) string { return "name:" + name }

func (r *SQLiteRepository) cacheCategory(c core.Category) {
	r.categories.Set(categoryIDKey(c.ID), c)
	r.categories.Set(categoryNameKey(c.Name), c)
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	if c, ok := r.categories.Get(categoryIDKey(id)); ok {
		return c, nil
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if err != nil {
		return core.Category{}, notFound(err, "category")
	}
	r.cacheCategory(c)
	return c, nil
}

// FindCategory resolves a category by name, or by id when ref is numeric and
// no category carries that name.
func (r *SQLiteRepository) FindCategory(ctx context.Context, ref string) (core.Category, error) {
	ref = strings.TrimSpace(ref)
	if c, ok := r.categories.Get(categoryNameKey(ref)); ok {
		return c, nil
	}
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ?`, ref))
	if err == nil {
		r.cacheCategory(c)
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		return r.GetCategory(ctx, id)
	}
	return core.Category{}, fmt.Errorf("category %q: %w", ref, core.ErrNotFound)
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	defer r.categories.Purge()
	c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, type, icon, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, string(c.Type), c.Icon, formatTime(c.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return core.Category{}, core.ErrDuplicateCategory
		}
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return core.Category{}, fmt.Errorf("category id: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	defer r.categories.Purge()
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, type = ?, icon = ? WHERE id = ?`,
		c.Name, string(c.Type), c.Icon, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateCategory
		}
		return fmt.Errorf("update category: %w", err)
	}
	return requireAffected(res, "category")
}

// DeleteCategory removes an unused category. The foreign key on transactions
// rejects deleting a category that is still referenced.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	defer r.categories.Purge()
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return core.ErrCategoryInUse
		}
		return fmt.Errorf("delete category: %w", err)
	}
	return requireAffected(res, "category")
}

func (r *SQLiteRepository) CountTransactionsByCategory(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category_id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count category usage: %w", err)
	}
	return n, nil
}
