package campaign

import (
	"net/http"
	"strconv"

	"businesspilot/pkg/db/pagination"
	"businesspilot/pkg/errutil"
	"businesspilot/pkg/middleware"
	"businesspilot/services/apikey"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func RegisterRoutes(engine *gin.Engine, svc *Service, keys *apikey.Service) {
	h := &Handler{svc: svc}

	group := engine.Group("/v1/campaigns", middleware.Error(), middleware.APIKeyAuth(keys))
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/:id", h.Get)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body", errutil.WithErr(err)))
		return
	}

	record, err := h.svc.Create(c.Request.Context(), c.GetInt64(middleware.BusinessIDKey), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Error(errutil.BadRequest("invalid campaign id"))
		return
	}

	record, err := h.svc.Get(c.Request.Context(), c.GetInt64(middleware.BusinessIDKey), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *Handler) List(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		c.Error(errutil.BadRequest("invalid pagination", errutil.WithErr(err)))
		return
	}

	records, err := h.svc.List(c.Request.Context(), c.GetInt64(middleware.BusinessIDKey), page)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"campaigns": records})
}
