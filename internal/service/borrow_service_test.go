package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"booknest/internal/cache"
	"booknest/internal/errors"
	"booknest/internal/model"
	"booknest/internal/testutil"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newBorrowService(f *fixture) *borrowService {
	svc := NewBorrowService(f.store, f.cache).(*borrowService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestBorrowService_RequestBorrow(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 1)
	empty := testutil.CreateBook(t, f.db, "Gone", "Nobody", 0)

	borrowDate := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, &borrowDate)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStatusRequested, record.Status)
	assert.True(t, borrowDate.Equal(record.BorrowDate))
	assert.Nil(t, record.ReturnDate)
	assert.Equal(t, "Dune", record.Title)
	assert.Equal(t, "alice", record.Username)
	assert.Equal(t, 1, testutil.Stock(t, f.db, book.ID), "requesting does not take stock")

	defaulted, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	assert.True(t, fixedNow.Equal(defaulted.BorrowDate))

	_, err = svc.RequestBorrow(ctx, 9999, book.ID, nil)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)

	_, err = svc.RequestBorrow(ctx, user.ID, 9999, nil)
	assert.ErrorIs(t, err, errors.ErrBookNotFound)

	_, err = svc.RequestBorrow(ctx, user.ID, empty.ID, nil)
	assert.ErrorIs(t, err, errors.ErrOutOfStock)
}

func TestBorrowService_LendAndReturn(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 2)

	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)

	lent, err := svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStatusBorrowed, lent.Status)
	assert.Nil(t, lent.ReturnDate)
	assert.Equal(t, 1, testutil.Stock(t, f.db, book.ID))

	returned, err := svc.Transition(ctx, record.ID, model.BorrowStatusReturned, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, fixedNow.Equal(*returned.ReturnDate))
	assert.Equal(t, 2, testutil.Stock(t, f.db, book.ID), "round trip restores stock")
}

func TestBorrowService_ReturnWithSuppliedDate(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 1)

	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)

	supplied := time.Date(2024, 5, 3, 8, 15, 0, 0, time.UTC)
	ignored := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	returned, err := svc.Transition(ctx, record.ID, model.BorrowStatusReturned, &supplied)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, supplied.Equal(*returned.ReturnDate))

	// A repeated return is a no-op and keeps the first return date.
	again, err := svc.Transition(ctx, record.ID, model.BorrowStatusReturned, &ignored)
	require.NoError(t, err)
	require.NotNil(t, again.ReturnDate)
	assert.True(t, supplied.Equal(*again.ReturnDate))
	assert.Equal(t, 1, testutil.Stock(t, f.db, book.ID))
}

func TestBorrowService_IdempotentTransitions(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 3)

	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.Stock(t, f.db, book.ID), "second lend does not take stock again")

	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusReturned, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusReturned, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, testutil.Stock(t, f.db, book.ID), "second return does not add stock again")

	rejected, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, rejected.ID, model.BorrowStatusRejected, nil)
	require.NoError(t, err)
	got, err := svc.Transition(ctx, rejected.ID, model.BorrowStatusRejected, nil)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStatusRejected, got.Status)
	assert.Nil(t, got.ReturnDate)
	assert.Equal(t, 3, testutil.Stock(t, f.db, book.ID))
}

func TestBorrowService_InvalidTransitions(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 2)

	requested, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, requested.ID, model.BorrowStatusReturned, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition, "return without lending")
	assert.Equal(t, 2, testutil.Stock(t, f.db, book.ID))

	_, err = svc.Transition(ctx, requested.ID, model.BorrowStatusRejected, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, requested.ID, model.BorrowStatusBorrowed, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition, "rejected is terminal")
	assert.Equal(t, 2, testutil.Stock(t, f.db, book.ID))

	lent, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, lent.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, lent.ID, model.BorrowStatusRequested, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	_, err = svc.Transition(ctx, lent.ID, model.BorrowStatusRejected, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	assert.Equal(t, 1, testutil.Stock(t, f.db, book.ID))

	_, err = svc.Transition(ctx, lent.ID, model.BorrowStatus("lost"), nil)
	assert.ErrorIs(t, err, errors.ErrInvalidStatus)

	_, err = svc.Transition(ctx, 9999, model.BorrowStatusBorrowed, nil)
	assert.ErrorIs(t, err, errors.ErrBorrowNotFound)
}

func TestBorrowService_LendOutOfStock(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 1)

	first, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	second, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)

	_, err = svc.Transition(ctx, first.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, second.ID, model.BorrowStatusBorrowed, nil)
	assert.ErrorIs(t, err, errors.ErrOutOfStock)

	got, err := svc.GetBorrow(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStatusRequested, got.Status, "failed lend leaves the record untouched")
	assert.Equal(t, 0, testutil.Stock(t, f.db, book.ID))
}

func TestBorrowService_ConcurrentLendOfLastCopy(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 1)

	a, err := svc.RequestBorrow(ctx, alice.ID, book.ID, nil)
	require.NoError(t, err)
	b, err := svc.RequestBorrow(ctx, bob.ID, book.ID, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []uint{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = svc.Transition(ctx, id, model.BorrowStatusBorrowed, nil)
		}(i, id)
	}
	wg.Wait()

	succeeded, outOfStock := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case stderrors.Is(err, errors.ErrOutOfStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, testutil.Stock(t, f.db, book.ID))
}

func TestBorrowService_ConcurrentLendOfSameRecord(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 5)

	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, testutil.Stock(t, f.db, book.ID), "stock moves exactly once")
}

func TestBorrowService_FailedStatusWriteRollsBackStock(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 1)

	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)

	writeFailure := stderrors.New("disk full")
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_borrow_update", func(tx *gorm.DB) {
		if tx.Statement.Schema != nil && tx.Statement.Schema.Table == "borrow_records" {
			_ = tx.AddError(writeFailure)
		}
	}))

	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
	assert.ErrorIs(t, err, writeFailure)
	assert.Equal(t, 1, testutil.Stock(t, f.db, book.ID), "stock change rolled back with the status write")

	require.NoError(t, f.db.Callback().Update().Remove("test:fail_borrow_update"))
	got, err := svc.GetBorrow(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BorrowStatusRequested, got.Status)
}

func TestBorrowService_TransitionInvalidatesBookCache(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	books := NewBookService(f.store, f.cache)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 1)

	_, err := books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	require.True(t, f.redis.Exists(cache.BookKey(book.ID)))

	record, err := svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	require.NoError(t, err)
	assert.True(t, f.redis.Exists(cache.BookKey(book.ID)), "request leaves stock and cache alone")

	_, err = svc.Transition(ctx, record.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)
	assert.False(t, f.redis.Exists(cache.BookKey(book.ID)))

	got, err := books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock)
}

func TestBorrowService_Lists(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	ctx := context.Background()
	alice := testutil.CreateUser(t, f.db, "alice")
	bob := testutil.CreateUser(t, f.db, "bob")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 3)

	none, err := svc.ListUserBorrows(ctx, bob.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = svc.ListUserBorrows(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrUserNotFound)

	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.RequestBorrow(ctx, alice.ID, book.ID, &early)
	require.NoError(t, err)
	second, err := svc.RequestBorrow(ctx, alice.ID, book.ID, &late)
	require.NoError(t, err)
	_, err = svc.Transition(ctx, first.ID, model.BorrowStatusBorrowed, nil)
	require.NoError(t, err)

	history, err := svc.ListUserBorrows(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	all, err := svc.ListBorrows(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := model.BorrowStatusBorrowed
	lent, err := svc.ListBorrows(ctx, &status)
	require.NoError(t, err)
	require.Len(t, lent, 1)
	assert.Equal(t, first.ID, lent[0].ID)

	bad := model.BorrowStatus("lost")
	_, err = svc.ListBorrows(ctx, &bad)
	assert.ErrorIs(t, err, errors.ErrInvalidStatus)

	_, err = svc.GetBorrow(ctx, 9999)
	assert.ErrorIs(t, err, errors.ErrBorrowNotFound)
}

func TestBorrowService_StaleCachedBookDoesNotLendStock(t *testing.T) {
	f := newFixture(t)
	svc := newBorrowService(f)
	books := NewBookService(f.store, f.cache)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "alice")
	book := testutil.CreateBook(t, f.db, "Dune", "Frank Herbert", 0)

	// A copy cached before the last lend committed.
	stale := *book
	stale.Stock = 1
	require.NoError(t, f.cache.SetJSON(ctx, cache.BookKey(book.ID), &stale, cache.BookTTL))

	shown, err := books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, shown.Stock, "display may lag until the entry expires")

	_, err = svc.RequestBorrow(ctx, user.ID, book.ID, nil)
	assert.ErrorIs(t, err, errors.ErrOutOfStock)

	f.redis.FastForward(cache.BookTTL)
	shown, err = books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, shown.Stock)
}
