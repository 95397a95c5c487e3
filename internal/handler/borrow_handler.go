package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"booknest/internal/errors"
	"booknest/internal/model"
	"booknest/internal/service"
)

// BorrowHandler handles borrow record endpoints.
type BorrowHandler struct {
	borrowService service.BorrowService
}

// NewBorrowHandler creates a new borrow handler.
func NewBorrowHandler(borrowService service.BorrowService) *BorrowHandler {
	return &BorrowHandler{borrowService: borrowService}
}

// CreateBorrowRequest represents a borrow request.
type CreateBorrowRequest struct {
	UserID     *uint  `json:"user_id" validate:"required"`
	BookID     *uint  `json:"book_id" validate:"required"`
	BorrowDate string `json:"borrow_date"`
}

// UpdateStatusRequest represents a status transition.
type UpdateStatusRequest struct {
	Status     string `json:"status" validate:"required"`
	ReturnDate string `json:"return_date"`
}

// ensureSelf lets plain users act only on their own records. Admins and
// unauthenticated deployments pass.
func ensureSelf(c echo.Context, userID uint) error {
	claims, ok := CurrentClaims(c)
	if !ok || claims.Role == model.RoleAdmin || claims.UserID == userID {
		return nil
	}
	return errors.ErrForbidden
}

// CreateBorrow godoc
// @Summary Request to borrow a book
// @Description Files a request; stock is taken only when an admin lends the book.
// @Tags borrows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateBorrowRequest true "Borrow request"
// @Success 201 {object} Response{data=model.BorrowRecordDetail}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /borrows [post]
func (h *BorrowHandler) CreateBorrow(c echo.Context) error {
	var req CreateBorrowRequest
	if err := c.Bind(&req); err != nil {
		return errors.Validation("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	borrowDate, err := parseDate(req.BorrowDate, "borrow_date")
	if err != nil {
		return err
	}
	if err := ensureSelf(c, *req.UserID); err != nil {
		return err
	}

	record, err := h.borrowService.RequestBorrow(c.Request().Context(), *req.UserID, *req.BookID, borrowDate)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Borrow request submitted successfully", record)
}

// ListUserBorrows godoc
// @Summary Borrowing history of a user
// @Tags borrows
// @Produce json
// @Security BearerAuth
// @Param user_id path int true "User ID"
// @Success 200 {object} Response{data=[]model.BorrowRecordDetail}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /borrows/user/{user_id} [get]
func (h *BorrowHandler) ListUserBorrows(c echo.Context) error {
	userID, err := parseID(c, "user_id", "user ID")
	if err != nil {
		return err
	}
	if err := ensureSelf(c, userID); err != nil {
		return err
	}

	records, err := h.borrowService.ListUserBorrows(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Successfully retrieved borrowing history", records)
}

// ListBorrows godoc
// @Summary List all borrow records
// @Tags borrows
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter" Enums(requested, borrowed, returned, rejected)
// @Success 200 {object} Response{data=[]model.BorrowRecordDetail}
// @Failure 400 {object} Response
// @Router /borrows [get]
func (h *BorrowHandler) ListBorrows(c echo.Context) error {
	var status *model.BorrowStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, err := model.ParseBorrowStatus(raw)
		if err != nil {
			return err
		}
		status = &parsed
	}

	records, err := h.borrowService.ListBorrows(c.Request().Context(), status)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Successfully retrieved borrow records", records)
}

// GetBorrow godoc
// @Summary Get a borrow record
// @Tags borrows
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrow record ID"
// @Success 200 {object} Response{data=model.BorrowRecordDetail}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /borrows/{id} [get]
func (h *BorrowHandler) GetBorrow(c echo.Context) error {
	id, err := parseID(c, "id", "borrow record ID")
	if err != nil {
		return err
	}
	record, err := h.borrowService.GetBorrow(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if err := ensureSelf(c, record.UserID); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Successfully retrieved borrow record", record)
}

// UpdateStatus godoc
// @Summary Change the status of a borrow record
// @Description requested->borrowed takes a copy, borrowed->returned gives it back.
// @Description Repeating the current status of borrowed, returned or rejected is a no-op.
// @Tags borrows
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Borrow record ID"
// @Param request body UpdateStatusRequest true "Target status"
// @Success 200 {object} Response{data=model.BorrowRecordDetail}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /borrows/{id}/status [put]
func (h *BorrowHandler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c, "id", "borrow record ID")
	if err != nil {
		return err
	}
	var req UpdateStatusRequest
	if err := c.Bind(&req); err != nil {
		return errors.Validation("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	target, err := model.ParseBorrowStatus(req.Status)
	if err != nil {
		return err
	}
	returnDate, err := parseDate(req.ReturnDate, "return_date")
	if err != nil {
		return err
	}

	record, err := h.borrowService.Transition(c.Request().Context(), id, target, returnDate)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Borrow status updated successfully", record)
}
