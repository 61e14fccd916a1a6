package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/service"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
	"github.com/noah-isme/biblioteca-api/pkg/response"
)

type loanService interface {
	Register(ctx context.Context, req service.RegisterLoanRequest) (*models.LoanDetail, error)
	Return(ctx context.Context, id string) (*models.LoanDetail, error)
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (*service.DeleteAllResult, error)
	Get(ctx context.Context, id string) (*models.LoanDetail, error)
	List(ctx context.Context, filter models.LoanFilter) ([]models.LoanDetail, *models.Pagination, error)
	ByStatus(ctx context.Context, status models.LoanStatus) ([]models.LoanDetail, error)
}

// LoanHandler exposes the loan lifecycle over HTTP.
type LoanHandler struct {
	loans loanService
}

// NewLoanHandler constructs LoanHandler.
func NewLoanHandler(loans loanService) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// List godoc
// @Summary List loans
// @Description Status filters on the effective status, so overdue loans are listed apart from active ones.
// @Tags Loans
// @Produce json
// @Param status query string false "active, overdue or returned"
// @Param career query string false "Filter by book career"
// @Param studentId query string false "Filter by student"
// @Param bookId query string false "Filter by book"
// @Param from query string false "Loan date lower bound (YYYY-MM-DD)"
// @Param to query string false "Loan date upper bound (YYYY-MM-DD)"
// @Param search query string false "Search on book title or student name"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /loans [get]
func (h *LoanHandler) List(c *gin.Context) {
	status := models.LoanStatus(strings.TrimSpace(c.Query("status")))
	if status != "" && !status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be active, overdue or returned"))
		return
	}
	from, err := queryDate(c, "from")
	if err != nil {
		response.Error(c, err)
		return
	}
	to, err := queryDate(c, "to")
	if err != nil {
		response.Error(c, err)
		return
	}
	params := listParamsFromQuery(c)
	filter := models.LoanFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Status:    status,
		Career:    models.Career(c.Query("career")),
		StudentID: c.Query("studentId"),
		BookID:    c.Query("bookId"),
		From:      from,
		To:        to,
		Page:      params.Page,
		PageSize:  params.PageSize,
		SortBy:    params.SortBy,
		SortOrder: params.SortOrder,
	}
	loans, pagination, err := h.loans.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, pagination)
}

// Get godoc
// @Summary Get loan detail
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Router /loans/{id} [get]
func (h *LoanHandler) Get(c *gin.Context) {
	loan, err := h.loans.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Register godoc
// @Summary Register a loan
// @Description Takes one available copy of the book. Fails with NO_AVAILABLE_COPIES when none is left.
// @Tags Loans
// @Accept json
// @Produce json
// @Param payload body service.RegisterLoanRequest true "Loan payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans [post]
func (h *LoanHandler) Register(c *gin.Context) {
	var req service.RegisterLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	loan, err := h.loans.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, loan)
}

// Return godoc
// @Summary Return a loan
// @Tags Loans
// @Produce json
// @Param id path string true "Loan ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /loans/{id}/return [post]
func (h *LoanHandler) Return(c *gin.Context) {
	loan, err := h.loans.Return(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loan, nil)
}

// Delete godoc
// @Summary Delete a loan
// @Description Outstanding loans give their copy back to the book.
// @Tags Loans
// @Param id path string true "Loan ID"
// @Success 204
// @Router /loans/{id} [delete]
func (h *LoanHandler) Delete(c *gin.Context) {
	if err := h.loans.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteAll godoc
// @Summary Delete every loan
// @Tags Loans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /loans [delete]
func (h *LoanHandler) DeleteAll(c *gin.Context) {
	result, err := h.loans.DeleteAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Active godoc
// @Summary Loans that are out and not yet due
// @Tags Loans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /loans/active [get]
func (h *LoanHandler) Active(c *gin.Context) {
	h.byStatus(c, models.LoanStatusActive)
}

// Overdue godoc
// @Summary Loans past their due date
// @Tags Loans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /loans/overdue [get]
func (h *LoanHandler) Overdue(c *gin.Context) {
	h.byStatus(c, models.LoanStatusOverdue)
}

// Returned godoc
// @Summary Returned loans
// @Tags Loans
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /loans/returned [get]
func (h *LoanHandler) Returned(c *gin.Context) {
	h.byStatus(c, models.LoanStatusReturned)
}

func (h *LoanHandler) byStatus(c *gin.Context, status models.LoanStatus) {
	loans, err := h.loans.ByStatus(c.Request.Context(), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, loans, nil)
}
