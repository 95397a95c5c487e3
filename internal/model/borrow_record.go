package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"booknest/internal/errors"
)

// BorrowStatus represents the lifecycle state of a borrow record.
type BorrowStatus string

const (
	BorrowStatusRequested BorrowStatus = "requested"
	BorrowStatusBorrowed  BorrowStatus = "borrowed"
	BorrowStatusReturned  BorrowStatus = "returned"
	BorrowStatusRejected  BorrowStatus = "rejected"
)

// ParseBorrowStatus rejects anything outside the four known states.
func ParseBorrowStatus(s string) (BorrowStatus, error) {
	status := BorrowStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", errors.ErrInvalidStatus, s)
	}
	return status, nil
}

// Valid reports whether s is one of the known states.
func (s BorrowStatus) Valid() bool {
	switch s {
	case BorrowStatusRequested, BorrowStatusBorrowed, BorrowStatusReturned, BorrowStatusRejected:
		return true
	}
	return false
}

// Value implements driver.Valuer so unknown states never reach the table.
func (s BorrowStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidStatus, string(s))
	}
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *BorrowStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("scan borrow status: unsupported type %T", src)
	}
	status, err := ParseBorrowStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// BorrowRecord represents one request/lend/return cycle of a book by a user.
type BorrowRecord struct {
	ID         uint         `json:"id" gorm:"primaryKey"`
	UserID     uint         `json:"user_id" gorm:"not null;index"`
	BookID     uint         `json:"book_id" gorm:"not null;index"`
	Status     BorrowStatus `json:"status" gorm:"type:varchar(20);not null;default:'requested';index"`
	BorrowDate time.Time    `json:"borrow_date" gorm:"not null;index"`
	ReturnDate *time.Time   `json:"return_date"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`

	// Relations
	User User `json:"-" gorm:"foreignKey:UserID"`
	Book Book `json:"-" gorm:"foreignKey:BookID"`
}

// BorrowRecordDetail is a borrow record joined with the display fields of
// its book and user.
type BorrowRecordDetail struct {
	ID         uint         `json:"id"`
	UserID     uint         `json:"user_id"`
	BookID     uint         `json:"book_id"`
	Status     BorrowStatus `json:"status"`
	BorrowDate time.Time    `json:"borrow_date"`
	ReturnDate *time.Time   `json:"return_date"`
	Title      string       `json:"title"`
	Author     string       `json:"author"`
	Username   string       `json:"username"`
	Email      string       `json:"email"`
}

// Transition describes the effect of moving a record between two states.
type Transition struct {
	From           BorrowStatus
	To             BorrowStatus
	StockDelta     int
	SetsReturnDate bool
}

// NoOp reports whether the transition is an idempotent self-loop.
func (t Transition) NoOp() bool {
	return t.From == t.To
}

// Inventory moves only on the edges into and out of borrowed; self-loops
// on states that allow them succeed without touching anything.
var transitions = map[[2]BorrowStatus]Transition{
	{BorrowStatusRequested, BorrowStatusBorrowed}: {StockDelta: -1},
	{BorrowStatusRequested, BorrowStatusRejected}: {},
	{BorrowStatusBorrowed, BorrowStatusReturned}:  {StockDelta: 1, SetsReturnDate: true},
	{BorrowStatusBorrowed, BorrowStatusBorrowed}:  {},
	{BorrowStatusReturned, BorrowStatusReturned}:  {},
	{BorrowStatusRejected, BorrowStatusRejected}:  {},
}

// PlanTransition looks up the move from the stored status to target.
func PlanTransition(from, to BorrowStatus) (Transition, error) {
	t, ok := transitions[[2]BorrowStatus{from, to}]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, from, to)
	}
	t.From, t.To = from, to
	return t, nil
}
