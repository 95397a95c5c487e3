package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"booknest/internal/cache"
	"booknest/internal/errors"
	"booknest/internal/model"
	"booknest/internal/repository"
)

// BorrowService drives the borrow record lifecycle and keeps book stock in
// step with it.
type BorrowService interface {
	RequestBorrow(ctx context.Context, userID, bookID uint, borrowDate *time.Time) (*model.BorrowRecordDetail, error)
	// Transition moves a record to target. The legality check, the stock
	// adjustment and the status write happen in one transaction against
	// the locked record, so concurrent calls cannot both move stock.
	Transition(ctx context.Context, id uint, target model.BorrowStatus, returnDate *time.Time) (*model.BorrowRecordDetail, error)
	GetBorrow(ctx context.Context, id uint) (*model.BorrowRecordDetail, error)
	ListUserBorrows(ctx context.Context, userID uint) ([]model.BorrowRecordDetail, error)
	ListBorrows(ctx context.Context, status *model.BorrowStatus) ([]model.BorrowRecordDetail, error)
}

type borrowService struct {
	store repository.Store
	cache *cache.Client
	now   func() time.Time
}

// NewBorrowService creates a new borrow service.
func NewBorrowService(store repository.Store, cache *cache.Client) BorrowService {
	return &borrowService{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// RequestBorrow files a request for a book that currently has stock. Stock
// itself is only taken when the request is lent out.
func (s *borrowService) RequestBorrow(ctx context.Context, userID, bookID uint, borrowDate *time.Time) (*model.BorrowRecordDetail, error) {
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}

	book, err := s.store.Books().FindByID(ctx, bookID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrBookNotFound
		}
		return nil, fmt.Errorf("find book %d: %w", bookID, err)
	}
	if book.Stock <= 0 {
		return nil, errors.ErrOutOfStock
	}

	date := s.now()
	if borrowDate != nil {
		date = *borrowDate
	}
	record := &model.BorrowRecord{
		UserID:     userID,
		BookID:     bookID,
		Status:     model.BorrowStatusRequested,
		BorrowDate: date,
	}
	if err := s.store.Borrows().Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create borrow record: %w", err)
	}

	return s.GetBorrow(ctx, record.ID)
}

// Transition applies one edge of the borrow state machine.
func (s *borrowService) Transition(ctx context.Context, id uint, target model.BorrowStatus, returnDate *time.Time) (*model.BorrowRecordDetail, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidStatus, string(target))
	}

	var bookID uint
	var stockChanged bool
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		record, err := tx.Borrows().FindByIDForUpdate(ctx, id)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrBorrowNotFound
			}
			return err
		}
		bookID = record.BookID

		plan, err := model.PlanTransition(record.Status, target)
		if err != nil {
			return err
		}
		if plan.NoOp() {
			return nil
		}

		if plan.StockDelta != 0 {
			if err := tx.Books().AdjustStock(ctx, record.BookID, plan.StockDelta); err != nil {
				if stderrors.Is(err, gorm.ErrRecordNotFound) {
					return errors.ErrBookNotFound
				}
				return err
			}
			stockChanged = true
		}

		var stamp *time.Time
		if plan.SetsReturnDate {
			t := s.now()
			if returnDate != nil {
				t = *returnDate
			}
			stamp = &t
		}
		return tx.Borrows().UpdateStatus(ctx, id, plan.From, plan.To, stamp)
	})
	if err != nil {
		return nil, fmt.Errorf("transition borrow %d to %s: %w", id, target, err)
	}

	if stockChanged {
		_ = s.cache.Delete(ctx, cache.BookKey(bookID))
	}
	return s.GetBorrow(ctx, id)
}

// GetBorrow returns one record joined with its book and user.
func (s *borrowService) GetBorrow(ctx context.Context, id uint) (*model.BorrowRecordDetail, error) {
	detail, err := s.store.Borrows().FindDetailByID(ctx, id)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrBorrowNotFound
		}
		return nil, fmt.Errorf("get borrow %d: %w", id, err)
	}
	return detail, nil
}

// ListUserBorrows returns a user's history. A user with no records gets an
// empty list; an unknown user is an error.
func (s *borrowService) ListUserBorrows(ctx context.Context, userID uint) ([]model.BorrowRecordDetail, error) {
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user %d: %w", userID, err)
	}

	records, err := s.store.Borrows().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list borrows of user %d: %w", userID, err)
	}
	return records, nil
}

// ListBorrows returns every record, optionally only those in one status.
func (s *borrowService) ListBorrows(ctx context.Context, status *model.BorrowStatus) ([]model.BorrowRecordDetail, error) {
	if status != nil && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidStatus, string(*status))
	}
	records, err := s.store.Borrows().List(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list borrows: %w", err)
	}
	return records, nil
}
