package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"booknest/internal/errors"
	"booknest/internal/model"
)

// BookRepository defines book persistence operations.
type BookRepository interface {
	Create(ctx context.Context, book *model.Book) error
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id uint) error
	FindByID(ctx context.Context, id uint) (*model.Book, error)
	FindByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error)
	List(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	// AdjustStock adds delta to the stock of a book in a single conditional
	// statement. It returns errors.ErrOutOfStock when the result would be
	// negative and gorm.ErrRecordNotFound when the book does not exist.
	AdjustStock(ctx context.Context, id uint, delta int) error
}

type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository.
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book.
func (r *bookRepository) Create(ctx context.Context, book *model.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// Update replaces every mutable field of an existing book, zero values included.
func (r *bookRepository) Update(ctx context.Context, book *model.Book) error {
	book.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ?", book.ID).
		Updates(map[string]interface{}{
			"title":           book.Title,
			"author":          book.Author,
			"description":     book.Description,
			"stock":           book.Stock,
			"cover_image_url": book.CoverImageURL,
			"updated_at":      book.UpdatedAt,
		}).Error
}

// Delete hard-deletes a book.
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&model.Book{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID finds a book by ID.
func (r *bookRepository) FindByID(ctx context.Context, id uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// FindByTitleAndAuthor finds a book by exact title and author.
func (r *bookRepository) FindByTitleAndAuthor(ctx context.Context, title, author string) (*model.Book, error) {
	var book model.Book
	if err := r.db.WithContext(ctx).
		Where("title = ? AND author = ?", title, author).
		First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// List returns books newest first, optionally narrowed by case-insensitive
// partial matches on title and author.
func (r *bookRepository) List(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	q := r.db.WithContext(ctx).Model(&model.Book{})
	if filter.Title != "" {
		q = q.Where("LOWER(title) LIKE ? ESCAPE '!'", containsPattern(filter.Title))
	}
	if filter.Author != "" {
		q = q.Where("LOWER(author) LIKE ? ESCAPE '!'", containsPattern(filter.Author))
	}

	books := []model.Book{}
	if err := q.Order("created_at DESC").Order("id DESC").Find(&books).Error; err != nil {
		return nil, err
	}
	return books, nil
}

// '!' is the escape character because a backslash literal is read
// differently by MySQL and PostgreSQL.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern matches s literally anywhere in a lowercased column.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

// AdjustStock changes stock by delta. The WHERE clause does the bounds
// check, so concurrent callers cannot drive stock below zero.
func (r *bookRepository) AdjustStock(ctx context.Context, id uint, delta int) error {
	res := r.db.WithContext(ctx).Model(&model.Book{}).
		Where("id = ? AND stock + ? >= 0", id, delta).
		UpdateColumns(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Book{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return errors.ErrOutOfStock
}
