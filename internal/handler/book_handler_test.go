package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/service"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

type fakeBookSrv struct {
	filter    models.BookFilter
	updatedID string
	updateReq service.BookRequest
}

func (f *fakeBookSrv) List(_ context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	f.filter = filter
	books := []models.Book{{ID: "b1", Title: "Contabilidad General"}}
	return books, models.NewPagination(filter.Page, filter.PageSize, 1), nil
}

func (f *fakeBookSrv) Get(context.Context, string) (*models.Book, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
}

func (f *fakeBookSrv) Create(context.Context, service.BookRequest) (*models.Book, error) {
	return &models.Book{ID: "b2"}, nil
}

func (f *fakeBookSrv) Update(_ context.Context, id string, req service.BookRequest) (*models.Book, error) {
	f.updatedID, f.updateReq = id, req
	return nil, appErrors.Clone(appErrors.ErrConflict, "copies below loaned amount")
}

func (f *fakeBookSrv) Delete(context.Context, string) error { return nil }

func (f *fakeBookSrv) Careers(context.Context) ([]service.CareerCatalog, error) {
	return []service.CareerCatalog{{Career: models.CareerNursing, Name: "Enfermería", Books: 2}}, nil
}

func newBookRouter(srv *fakeBookSrv) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	RegisterRoutes(router.Group("/api/v1"), Handlers{Books: NewBookHandler(srv)})
	return router
}

func TestBookHandlerListParsesQuery(t *testing.T) {
	srv := &fakeBookSrv{}
	router := newBookRouter(srv)

	rec := serve(router, http.MethodGet, "/api/v1/books?search=%20contab%20&career=accounting&available=true&page=3&limit=10&sort=title&order=asc", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "contab", srv.filter.Search)
	assert.Equal(t, models.CareerAccounting, srv.filter.Career)
	assert.True(t, srv.filter.AvailableOnly)
	assert.Equal(t, 3, srv.filter.Page)
	assert.Equal(t, 10, srv.filter.PageSize)
	assert.Contains(t, rec.Body.String(), `"pagination":{"page":3,"page_size":10,"total_count":1}`)
}

func TestBookHandlerErrors(t *testing.T) {
	srv := &fakeBookSrv{}
	router := newBookRouter(srv)

	rec := serve(router, http.MethodGet, "/api/v1/books/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(router, http.MethodPut, "/api/v1/books/b1", `{"title":"T","copies":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "b1", srv.updatedID)
	assert.Equal(t, 1, srv.updateReq.Copies)

	rec = serve(router, http.MethodPost, "/api/v1/books", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookHandlerCareersAndDelete(t *testing.T) {
	router := newBookRouter(&fakeBookSrv{})

	rec := serve(router, http.MethodGet, "/api/v1/careers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Enfermería"`)

	rec = serve(router, http.MethodDelete, "/api/v1/books/b1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
