package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type listParams struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

func listParamsFromQuery(c *gin.Context) listParams {
	var params listParams
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		params.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		params.PageSize = size
	}
	params.SortBy = c.Query("sort")
	params.SortOrder = c.Query("order")
	return params
}

// queryDate parses an optional YYYY-MM-DD query parameter.
func queryDate(c *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, key+" must use YYYY-MM-DD")
	}
	return &parsed, nil
}

func invalidPayload(err error) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload")
}
