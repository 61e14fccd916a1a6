package handler

import "github.com/gin-gonic/gin"

// Handlers groups the HTTP handlers mounted under the API prefix.
type Handlers struct {
	Books     *BookHandler
	Students  *StudentHandler
	Loans     *LoanHandler
	Dashboard *DashboardHandler
	Reports   *ReportHandler
	Desk      *DeskHandler

	ExportsEnabled bool
}

// RegisterRoutes mounts every API route on group. Export routes are skipped
// unless ExportsEnabled is set.
func RegisterRoutes(group *gin.RouterGroup, h Handlers) {
	if h.Books != nil {
		group.GET("/books", h.Books.List)
		group.POST("/books", h.Books.Create)
		group.GET("/books/:id", h.Books.Get)
		group.PUT("/books/:id", h.Books.Update)
		group.DELETE("/books/:id", h.Books.Delete)
		group.GET("/careers", h.Books.Careers)
	}

	if h.Students != nil {
		group.GET("/students", h.Students.List)
		group.POST("/students", h.Students.Create)
		group.GET("/students/:id", h.Students.Get)
		group.PUT("/students/:id", h.Students.Update)
		group.DELETE("/students/:id", h.Students.Delete)
	}

	if h.Loans != nil {
		group.GET("/loans", h.Loans.List)
		group.POST("/loans", h.Loans.Register)
		group.DELETE("/loans", h.Loans.DeleteAll)
		group.GET("/loans/active", h.Loans.Active)
		group.GET("/loans/overdue", h.Loans.Overdue)
		group.GET("/loans/returned", h.Loans.Returned)
		group.GET("/loans/:id", h.Loans.Get)
		group.DELETE("/loans/:id", h.Loans.Delete)
		group.POST("/loans/:id/return", h.Loans.Return)
		group.PATCH("/loans/:id/return", h.Loans.Return)
	}

	if h.Dashboard != nil {
		group.GET("/dashboard", h.Dashboard.Summary)
	}

	if h.Reports != nil {
		group.GET("/reports/daily", h.Reports.Daily)
	}
	if h.Reports != nil && h.ExportsEnabled {
		group.POST("/reports/export", h.Reports.CreateExport)
		group.GET("/reports/status/:id", h.Reports.Status)
		group.GET("/export/:token", h.Reports.Download)
	}

	if h.Desk != nil {
		group.GET("/preferences", h.Desk.Preferences)
		group.PUT("/preferences", h.Desk.UpdatePreferences)
		group.GET("/session", h.Desk.Session)
		group.PUT("/session", h.Desk.OpenSession)
		group.DELETE("/session", h.Desk.CloseSession)
	}
}
