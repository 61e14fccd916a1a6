package service

import (
	"strings"

	"github.com/noah-isme/biblioteca-api/internal/models"
)

// paginate slices items for the requested page.
func paginate[T any](items []T, page, size int) ([]T, *models.Pagination) {
	pagination := models.NewPagination(page, size, len(items))
	start, end := pagination.Bounds()
	return items[start:end], pagination
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), needle)
}

func normalizeSearch(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func descending(order string) bool {
	return strings.EqualFold(order, "desc")
}
