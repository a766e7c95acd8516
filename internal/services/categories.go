package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// CategoryInput carries create and update parameters. Nil fields are kept on
// update.
type CategoryInput struct {
	Name *string
	Type *string
	Icon *string
}

type CategoryService struct {
	storage *storage.SQLiteRepository
}

func NewCategoryService(storage *storage.SQLiteRepository) *CategoryService {
	return &CategoryService{storage: storage}
}

// List is open to every authenticated user. typ may be empty or "all".
func (s *CategoryService) List(ctx context.Context, typ string) ([]core.Category, error) {
	var t core.TxType
	if typ = strings.TrimSpace(typ); typ != "" && !strings.EqualFold(typ, "all") {
		var err error
		if t, err = core.ParseTxType(typ); err != nil {
			return nil, err
		}
	}
	return s.storage.ListCategories(ctx, t)
}

func (s *CategoryService) Create(ctx context.Context, actor core.Actor, in CategoryInput) (core.Category, error) {
	if !actor.IsAdmin() {
		return core.Category{}, core.ErrAdminRequired
	}
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" || in.Type == nil {
		return core.Category{}, fmt.Errorf("%w: name and type are required", core.ErrMissingField)
	}
	typ, err := core.ParseTxType(*in.Type)
	if err != nil {
		return core.Category{}, err
	}
	c := core.Category{Name: strings.TrimSpace(*in.Name), Type: typ, Icon: core.DefaultCategoryIcon}
	if in.Icon != nil && strings.TrimSpace(*in.Icon) != "" {
		c.Icon = strings.TrimSpace(*in.Icon)
	}

	c, err = s.storage.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	slog.InfoContext(ctx, "Category created", "category_id", c.ID, "category", c.Name, "type", c.Type)
	return c, nil
}

// Update renames or re-icons a category. Changing the type of a category in
// use would break the type match of its transactions and is rejected.
func (s *CategoryService) Update(ctx context.Context, actor core.Actor, id int64, in CategoryInput) (core.Category, error) {
	if !actor.IsAdmin() {
		return core.Category{}, core.ErrAdminRequired
	}
	c, err := s.storage.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return core.Category{}, fmt.Errorf("%w: name", core.ErrMissingField)
		}
		c.Name = name
	}
	if in.Icon != nil {
		c.Icon = strings.TrimSpace(*in.Icon)
		if c.Icon == "" {
			c.Icon = core.DefaultCategoryIcon
		}
	}
	if in.Type != nil {
		typ, err := core.ParseTxType(*in.Type)
		if err != nil {
			return core.Category{}, err
		}
		if typ != c.Type {
			n, err := s.storage.CountTransactionsByCategory(ctx, id)
			if err != nil {
				return core.Category{}, err
			}
			if n > 0 {
				return core.Category{}, core.ErrCategoryInUse
			}
			c.Type = typ
		}
	}

	if err := s.storage.UpdateCategory(ctx, c); err != nil {
		return core.Category{}, err
	}
	return c, nil
}

// Delete refuses to remove a category that transactions still reference.
func (s *CategoryService) Delete(ctx context.Context, actor core.Actor, id int64) error {
	if !actor.IsAdmin() {
		return core.ErrAdminRequired
	}
	if _, err := s.storage.GetCategory(ctx, id); err != nil {
		return err
	}
	n, err := s.storage.CountTransactionsByCategory(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: %d transactions", core.ErrCategoryInUse, n)
	}
	if err := s.storage.DeleteCategory(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Category deleted", "category_id", id)
	return nil
}
