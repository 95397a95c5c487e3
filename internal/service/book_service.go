package service

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"

	"booknest/internal/cache"
	"booknest/internal/errors"
	"booknest/internal/model"
	"booknest/internal/repository"
)

// BookService handles catalog operations.
type BookService interface {
	CreateBook(ctx context.Context, book *model.Book) (*model.Book, error)
	GetBook(ctx context.Context, id uint) (*model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	UpdateBook(ctx context.Context, book *model.Book) (*model.Book, error)
	DeleteBook(ctx context.Context, id uint) error
}

type bookService struct {
	store repository.Store
	cache *cache.Client
}

// NewBookService creates a new book service.
func NewBookService(store repository.Store, cache *cache.Client) BookService {
	return &bookService{
		store: store,
		cache: cache,
	}
}

// CreateBook adds a book to the catalog.
func (s *bookService) CreateBook(ctx context.Context, book *model.Book) (*model.Book, error) {
	if book.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", errors.ErrValidation)
	}
	book.ID = 0
	if err := s.store.Books().Create(ctx, book); err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}
	return book, nil
}

// GetBook retrieves a book by ID with caching. A miss that reads the row
// just before a concurrent write commits can put the older copy back after
// the writer's invalidation; such an entry lives at most cache.BookTTL.
// Stock decisions never read the cache, so this only affects display.
func (s *bookService) GetBook(ctx context.Context, id uint) (*model.Book, error) {
	var cached model.Book
	if s.cache.GetJSON(ctx, cache.BookKey(id), &cached) {
		return &cached, nil
	}

	book, err := s.store.Books().FindByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrBookNotFound
		}
		return nil, fmt.Errorf("get book %d: %w", id, err)
	}

	_ = s.cache.SetJSON(ctx, cache.BookKey(id), book, cache.BookTTL)
	return book, nil
}

// ListBooks returns the catalog newest first.
func (s *bookService) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	books, err := s.store.Books().List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// UpdateBook replaces title, author, description, stock and cover of an
// existing book and returns the stored result.
func (s *bookService) UpdateBook(ctx context.Context, book *model.Book) (*model.Book, error) {
	if book.Stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", errors.ErrValidation)
	}

	var updated *model.Book
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Books().FindByID(ctx, book.ID); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrBookNotFound
			}
			return err
		}
		if err := tx.Books().Update(ctx, book); err != nil {
			return err
		}
		var err error
		updated, err = tx.Books().FindByID(ctx, book.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update book %d: %w", book.ID, err)
	}

	_ = s.cache.Delete(ctx, cache.BookKey(book.ID))
	return updated, nil
}

// DeleteBook removes a book that no borrow record references.
func (s *bookService) DeleteBook(ctx context.Context, id uint) error {
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if _, err := tx.Books().FindByID(ctx, id); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrBookNotFound
			}
			return err
		}

		active, err := tx.Borrows().CountByBook(ctx, id, model.BorrowStatusRequested, model.BorrowStatusBorrowed)
		if err != nil {
			return err
		}
		if active > 0 {
			return errors.ErrBookInUse
		}

		total, err := tx.Borrows().CountByBook(ctx, id)
		if err != nil {
			return err
		}
		if total > 0 {
			return errors.ErrBookHasHistory
		}

		if err := tx.Books().Delete(ctx, id); err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrBookNotFound
			}
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete book %d: %w", id, err)
	}

	_ = s.cache.Delete(ctx, cache.BookKey(id))
	return nil
}
