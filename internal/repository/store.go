package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories and runs work across them in one
// database transaction.
type Store interface {
	Users() UserRepository
	Books() BookRepository
	Borrows() BorrowRepository
	// WithTransaction executes fn within a database transaction. Every
	// repository obtained from tx is bound to that transaction; returning an
	// error from fn rolls all of their writes back.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a store over a GORM connection.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Users() UserRepository     { return NewUserRepository(s.db) }
func (s *store) Books() BookRepository     { return NewBookRepository(s.db) }
func (s *store) Borrows() BorrowRepository { return NewBorrowRepository(s.db) }

// WithTransaction executes a function within a database transaction.
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &store{db: tx})
	})
}
