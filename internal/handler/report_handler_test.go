package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/biblioteca-api/internal/dto"
	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/service"
	appErrors "github.com/noah-isme/biblioteca-api/pkg/errors"
)

type reportServiceMock struct {
	daily       *models.LoanReport
	dailyFrom   time.Time
	dailyTo     time.Time
	createReq   dto.ExportRequest
	createResp  *dto.ReportJobResponse
	createErr   error
	statusResp  *dto.ReportStatusResponse
	statusErr   error
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) Daily(_ context.Context, from, to time.Time) (*models.LoanReport, error) {
	m.dailyFrom, m.dailyTo = from, to
	return m.daily, nil
}

func (m *reportServiceMock) CreateExport(_ context.Context, req dto.ExportRequest) (*dto.ReportJobResponse, error) {
	m.createReq = req
	return m.createResp, m.createErr
}

func (m *reportServiceMock) Status(context.Context, string) (*dto.ReportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *reportServiceMock) ResolveDownload(context.Context, string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerCreateExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &dto.ReportJobResponse{ID: "job-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.ExportRequest{From: "2024-03-01", To: "2024-03-31", Format: models.ReportFormatPDF})
	c, w := newGinContext(http.MethodPost, "/reports/export", payload)
	handler.CreateExport(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, models.ReportFormatPDF, mockSvc.createReq.Format)
	assert.Equal(t, "job-1", decodeEnvelope(t, w).Data["id"])
}

func TestReportHandlerCreateExportInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{}, nil)

	c, w := newGinContext(http.MethodPost, "/reports/export", []byte("{"))
	handler.CreateExport(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerDaily(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{daily: &models.LoanReport{From: "2024-03-01", To: "2024-03-02"}}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/reports/daily?from=2024-03-01&to=2024-03-02", nil)
	handler.Daily(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), mockSvc.dailyFrom)
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), mockSvc.dailyTo)

	c, w = newGinContext(http.MethodGet, "/reports/daily?from=2024-03-01", nil)
	handler.Daily(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/reports/daily?from=01-03-2024&to=2024-03-02", nil)
	handler.Daily(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/export/token"
	mockSvc := &reportServiceMock{
		statusResp: &dto.ReportStatusResponse{ID: "job-1", Status: models.ReportStatusFinished, Progress: 100, DownloadURL: &url},
	}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/reports/status/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	handler.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, url, decodeEnvelope(t, w).Data["download_url"])
}

func TestReportHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	body := &closeTracker{Reader: strings.NewReader("id,estudiante\n")}
	mockSvc := &reportServiceMock{
		download: &service.ReportDownload{
			Body:        body,
			Filename:    "registro-prestamos-2024-03-15.csv",
			ContentType: "text/csv; charset=utf-8",
			Format:      models.ReportFormatCSV,
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	handler := NewReportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "id,estudiante\n", w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "registro-prestamos-2024-03-15.csv")
	assert.True(t, body.closed)
}

func TestReportHandlerDownloadExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrExpired, "download link expired")}, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	assert.Equal(t, http.StatusGone, w.Code)
}
