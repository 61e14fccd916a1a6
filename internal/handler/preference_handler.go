package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/biblioteca-api/internal/models"
	"github.com/noah-isme/biblioteca-api/internal/service"
	"github.com/noah-isme/biblioteca-api/pkg/response"
)

type preferenceService interface {
	Get(ctx context.Context) (*models.Preferences, error)
	Update(ctx context.Context, req service.UpdatePreferencesRequest) (*models.Preferences, error)
}

type sessionService interface {
	Current(ctx context.Context) (*models.Session, error)
	Open(ctx context.Context, req service.OpenSessionRequest) (*models.Session, error)
	Close(ctx context.Context) error
}

// DeskHandler serves UI preferences and the operator session at the desk.
type DeskHandler struct {
	preferences preferenceService
	sessions    sessionService
}

// NewDeskHandler constructs DeskHandler.
func NewDeskHandler(preferences preferenceService, sessions sessionService) *DeskHandler {
	return &DeskHandler{preferences: preferences, sessions: sessions}
}

// Preferences godoc
// @Summary Read UI preferences
// @Tags Desk
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *DeskHandler) Preferences(c *gin.Context) {
	prefs, err := h.preferences.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// UpdatePreferences godoc
// @Summary Update UI preferences
// @Description Omitted fields keep their stored value.
// @Tags Desk
// @Accept json
// @Produce json
// @Param payload body service.UpdatePreferencesRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Router /preferences [put]
func (h *DeskHandler) UpdatePreferences(c *gin.Context) {
	var req service.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	prefs, err := h.preferences.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, prefs, nil)
}

// Session godoc
// @Summary Current desk operator
// @Tags Desk
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /session [get]
func (h *DeskHandler) Session(c *gin.Context) {
	session, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// OpenSession godoc
// @Summary Open the desk session
// @Tags Desk
// @Accept json
// @Produce json
// @Param payload body service.OpenSessionRequest true "Operator"
// @Success 200 {object} response.Envelope
// @Router /session [put]
func (h *DeskHandler) OpenSession(c *gin.Context) {
	var req service.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	session, err := h.sessions.Open(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// CloseSession godoc
// @Summary Close the desk session
// @Tags Desk
// @Success 204
// @Router /session [delete]
func (h *DeskHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
