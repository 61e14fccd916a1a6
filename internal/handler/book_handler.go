package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/service"
	"github.com/noah-isme/biblioteca-api/pkg/response"
)

type bookService interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, req service.BookRequest) (*models.Book, error)
	Update(ctx context.Context, id string, req service.BookRequest) (*models.Book, error)
	Delete(ctx context.Context, id string) error
	Careers(ctx context.Context) ([]service.CareerCatalog, error)
}

// BookHandler exposes catalog endpoints.
type BookHandler struct {
	books bookService
}

// NewBookHandler constructs BookHandler.
func NewBookHandler(books bookService) *BookHandler {
	return &BookHandler{books: books}
}

// List godoc
// @Summary List books
// @Tags Books
// @Produce json
// @Param search query string false "Search by title, author or ISBN"
// @Param career query string false "Filter by career"
// @Param available query bool false "Only books with available copies"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "Sort field (title, author, publish_year, available_copies, created_at)"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /books [get]
func (h *BookHandler) List(c *gin.Context) {
	params := listParamsFromQuery(c)
	filter := models.BookFilter{
		Search:        strings.TrimSpace(c.Query("search")),
		Career:        models.Career(c.Query("career")),
		AvailableOnly: c.Query("available") == "true",
		Page:          params.Page,
		PageSize:      params.PageSize,
		SortBy:        params.SortBy,
		SortOrder:     params.SortOrder,
	}
	books, pagination, err := h.books.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, books, pagination)
}

// Get godoc
// @Summary Get book detail
// @Tags Books
// @Produce json
// @Param id path string true "Book ID"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [get]
func (h *BookHandler) Get(c *gin.Context) {
	book, err := h.books.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Create godoc
// @Summary Add a book to the catalog
// @Tags Books
// @Accept json
// @Produce json
// @Param payload body service.BookRequest true "Book payload"
// @Success 201 {object} response.Envelope
// @Router /books [post]
func (h *BookHandler) Create(c *gin.Context) {
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	book, err := h.books.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, book)
}

// Update godoc
// @Summary Update a book
// @Tags Books
// @Accept json
// @Produce json
// @Param id path string true "Book ID"
// @Param payload body service.BookRequest true "Book payload"
// @Success 200 {object} response.Envelope
// @Router /books/{id} [put]
func (h *BookHandler) Update(c *gin.Context) {
	var req service.BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	book, err := h.books.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// Delete godoc
// @Summary Remove a book
// @Tags Books
// @Param id path string true "Book ID"
// @Success 204
// @Router /books/{id} [delete]
func (h *BookHandler) Delete(c *gin.Context) {
	if err := h.books.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Careers godoc
// @Summary List careers with book counts
// @Tags Books
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /careers [get]
func (h *BookHandler) Careers(c *gin.Context) {
	careers, err := h.books.Careers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, careers, nil)
}
