package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/internal/services"
	"go.uber.org/zap"
)

type OrganizationHandler struct {
	organizationService *services.OrganizationService
	logger              *zap.Logger
}

func NewOrganizationHandler(organizationService *services.OrganizationService, logger *zap.Logger) *OrganizationHandler {
	return &OrganizationHandler{
		organizationService: organizationService,
		logger:              logger.With(zap.String("handler", "organization")),
	}
}

func (h *OrganizationHandler) ListOrganizations(c *gin.Context) {
	orgs, err := h.organizationService.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"organizations": orgs})
}

func (h *OrganizationHandler) CreateOrganization(c *gin.Context) {
	var in services.OrganizationInput
	if !bindJSON(c, &in) {
		return
	}
	org, err := h.organizationService.Create(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Organization created", zap.String("organization_id", org.ID), zap.String("code", org.Code))
	respond(c, http.StatusCreated, gin.H{"organization": org})
}

func (h *OrganizationHandler) GetOrganization(c *gin.Context) {
	org, err := h.organizationService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"organization": org})
}

func (h *OrganizationHandler) UpdateOrganization(c *gin.Context) {
	var in services.OrganizationInput
	if !bindJSON(c, &in) {
		return
	}
	org, err := h.organizationService.Update(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"organization": org})
}

func (h *OrganizationHandler) DeleteOrganization(c *gin.Context) {
	if err := h.organizationService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "organization deleted"})
}
