package connector

import (
	"net/http"

	"businesspilot/pkg/errutil"
	"businesspilot/pkg/middleware"
	"businesspilot/services/apikey"
	"businesspilot/services/vault"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc   *Service
	vault *vault.Service
}

func RegisterRoutes(engine *gin.Engine, svc *Service, vaultSvc *vault.Service, keys *apikey.Service) {
	h := &Handler{svc: svc, vault: vaultSvc}

	group := engine.Group("/v1/government", middleware.Error(), middleware.APIKeyAuth(keys))
	group.POST("/setup", h.Setup)
	group.GET("/credentials", h.List)
	group.DELETE("/credentials/:service", h.Delete)
	group.POST("/credentials/:service/verify", h.Verify)
}

func (h *Handler) Setup(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	businessID := c.GetInt64(middleware.BusinessIDKey)
	if err := h.svc.Setup(c.Request.Context(), businessID, req); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "pending_verification"})
}

func (h *Handler) List(c *gin.Context) {
	businessID := c.GetInt64(middleware.BusinessIDKey)

	listing, err := h.vault.List(c.Request.Context(), businessID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credentials": listing})
}

func (h *Handler) Delete(c *gin.Context) {
	businessID := c.GetInt64(middleware.BusinessIDKey)
	service := vault.ServiceName(c.Param("service"))

	deleted, err := h.vault.Delete(c.Request.Context(), businessID, service)
	if err != nil {
		c.Error(err)
		return
	}
	if !deleted {
		c.Error(errutil.NotFound("no active credential for service"))
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Verify(c *gin.Context) {
	businessID := c.GetInt64(middleware.BusinessIDKey)
	service := vault.ServiceName(c.Param("service"))

	listing, err := h.vault.List(c.Request.Context(), businessID)
	if err != nil {
		c.Error(err)
		return
	}
	if _, ok := listing[service]; !ok {
		c.Error(errutil.NotFound("no active credential for service"))
		return
	}

	h.svc.EnqueueVerification(c.Request.Context(), businessID, service)

	c.JSON(http.StatusAccepted, gin.H{"status": "verification_enqueued"})
}
