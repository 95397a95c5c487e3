package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"booknest/internal/errors"
	"booknest/internal/model"
)

// BorrowRepository defines borrow record persistence operations.
type BorrowRepository interface {
	Create(ctx context.Context, record *model.BorrowRecord) error
	FindByID(ctx context.Context, id uint) (*model.BorrowRecord, error)
	FindByIDForUpdate(ctx context.Context, id uint) (*model.BorrowRecord, error)
	FindDetailByID(ctx context.Context, id uint) (*model.BorrowRecordDetail, error)
	ListByUser(ctx context.Context, userID uint) ([]model.BorrowRecordDetail, error)
	List(ctx context.Context, status *model.BorrowStatus) ([]model.BorrowRecordDetail, error)
	// UpdateStatus moves a record from one status to another only if it is
	// still in the from status. A lost race reports errors.ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id uint, from, to model.BorrowStatus, returnDate *time.Time) error
	CountByBook(ctx context.Context, bookID uint, statuses ...model.BorrowStatus) (int64, error)
}

type borrowRepository struct {
	db *gorm.DB
}

// NewBorrowRepository creates a new borrow record repository.
func NewBorrowRepository(db *gorm.DB) BorrowRepository {
	return &borrowRepository{db: db}
}

// Create creates a new borrow record without touching its associations.
func (r *borrowRepository) Create(ctx context.Context, record *model.BorrowRecord) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(record).Error
}

// FindByID finds a borrow record by ID.
func (r *borrowRepository) FindByID(ctx context.Context, id uint) (*model.BorrowRecord, error) {
	var record model.BorrowRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByIDForUpdate finds a borrow record by ID with a row-level lock held
// until the surrounding transaction ends.
func (r *borrowRepository) FindByIDForUpdate(ctx context.Context, id uint) (*model.BorrowRecord, error) {
	var record model.BorrowRecord
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&record, id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *borrowRepository) details(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("borrow_records AS br").
		Select("br.id, br.user_id, br.book_id, br.status, br.borrow_date, br.return_date, " +
			"b.title, b.author, u.username, u.email").
		Joins("JOIN books b ON b.id = br.book_id").
		Joins("JOIN users u ON u.id = br.user_id")
}

// FindDetailByID finds one borrow record with its book and user fields.
func (r *borrowRepository) FindDetailByID(ctx context.Context, id uint) (*model.BorrowRecordDetail, error) {
	var detail model.BorrowRecordDetail
	res := r.details(ctx).Where("br.id = ?", id).Limit(1).Scan(&detail)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &detail, nil
}

// ListByUser returns a user's borrow history, most recent borrow first.
func (r *borrowRepository) ListByUser(ctx context.Context, userID uint) ([]model.BorrowRecordDetail, error) {
	records := []model.BorrowRecordDetail{}
	if err := r.details(ctx).
		Where("br.user_id = ?", userID).
		Order("br.borrow_date DESC").Order("br.id DESC").
		Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// List returns every borrow record, optionally only those in one status.
func (r *borrowRepository) List(ctx context.Context, status *model.BorrowStatus) ([]model.BorrowRecordDetail, error) {
	q := r.details(ctx)
	if status != nil {
		q = q.Where("br.status = ?", *status)
	}

	records := []model.BorrowRecordDetail{}
	if err := q.Order("br.borrow_date DESC").Order("br.id DESC").Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// UpdateStatus is a compare-and-swap on the status column.
func (r *borrowRepository) UpdateStatus(ctx context.Context, id uint, from, to model.BorrowStatus, returnDate *time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if returnDate != nil {
		updates["return_date"] = *returnDate
	}

	res := r.db.WithContext(ctx).Model(&model.BorrowRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: record %d is no longer %s", errors.ErrInvalidTransition, id, from)
	}
	return nil
}

// CountByBook counts records referencing a book, optionally only in the
// given statuses.
func (r *borrowRepository) CountByBook(ctx context.Context, bookID uint, statuses ...model.BorrowStatus) (int64, error) {
	q := r.db.WithContext(ctx).Model(&model.BorrowRecord{}).Where("book_id = ?", bookID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
