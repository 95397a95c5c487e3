package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"booknest/internal/errors"
	"booknest/internal/model"
	"booknest/internal/service"
)

// BookHandler handles catalog endpoints.
type BookHandler struct {
	bookService service.BookService
}

// NewBookHandler creates a new book handler.
func NewBookHandler(bookService service.BookService) *BookHandler {
	return &BookHandler{bookService: bookService}
}

// BookRequest is the body of create and update. Description and stock are
// pointers so that an empty description or zero stock still counts as present.
type BookRequest struct {
	Title         string  `json:"title" validate:"required,max=255"`
	Author        string  `json:"author" validate:"required,max=255"`
	Description   *string `json:"description" validate:"required"`
	Stock         *int    `json:"stock" validate:"required,gte=0"`
	CoverImageURL *string `json:"cover_image_url" validate:"omitempty,max=512"`
}

func (r *BookRequest) toModel(id uint) *model.Book {
	return &model.Book{
		ID:            id,
		Title:         r.Title,
		Author:        r.Author,
		Description:   *r.Description,
		Stock:         *r.Stock,
		CoverImageURL: r.CoverImageURL,
	}
}

// ListBooks godoc
// @Summary List books
// @Description Newest first. Title and author filter by case-insensitive substring.
// @Tags books
// @Produce json
// @Param title query string false "Title contains"
// @Param author query string false "Author contains"
// @Success 200 {object} Response{data=[]model.Book}
// @Failure 500 {object} Response
// @Router /books [get]
func (h *BookHandler) ListBooks(c echo.Context) error {
	filter := model.BookFilter{
		Title:  c.QueryParam("title"),
		Author: c.QueryParam("author"),
	}
	books, err := h.bookService.ListBooks(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Successfully retrieved book list", books)
}

// GetBook godoc
// @Summary Get a book
// @Tags books
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} Response{data=model.Book}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /books/{id} [get]
func (h *BookHandler) GetBook(c echo.Context) error {
	id, err := parseID(c, "id", "book ID")
	if err != nil {
		return err
	}
	book, err := h.bookService.GetBook(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Successfully retrieved book details", book)
}

// CreateBook godoc
// @Summary Create a book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BookRequest true "Book"
// @Success 201 {object} Response{data=model.Book}
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 403 {object} Response
// @Router /books [post]
func (h *BookHandler) CreateBook(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return errors.Validation("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	book, err := h.bookService.CreateBook(c.Request().Context(), req.toModel(0))
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "Book created successfully", book)
}

// UpdateBook godoc
// @Summary Replace a book
// @Tags books
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Param request body BookRequest true "Book"
// @Success 200 {object} Response{data=model.Book}
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /books/{id} [put]
func (h *BookHandler) UpdateBook(c echo.Context) error {
	id, err := parseID(c, "id", "book ID")
	if err != nil {
		return err
	}
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return errors.Validation("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	book, err := h.bookService.UpdateBook(c.Request().Context(), req.toModel(id))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Book updated successfully", book)
}

// DeleteBook godoc
// @Summary Delete a book
// @Description Refused while any borrow record references the book.
// @Tags books
// @Produce json
// @Security BearerAuth
// @Param id path int true "Book ID"
// @Success 200 {object} Response
// @Failure 404 {object} Response
// @Failure 409 {object} Response
// @Router /books/{id} [delete]
func (h *BookHandler) DeleteBook(c echo.Context) error {
	id, err := parseID(c, "id", "book ID")
	if err != nil {
		return err
	}
	if err := h.bookService.DeleteBook(c.Request().Context(), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Book deleted successfully", nil)
}
