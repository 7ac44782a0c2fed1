package tenant

import (
	"net/http"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/pkg/validation"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/tenants")
	g.POST("", h.AddTenant)
	g.GET("/:tenant_id", h.GetTenant)
	g.GET("/:tenant_id/points", h.ListPoints)
	g.POST("/:tenant_id/points", h.CreatePoint)
	g.POST("/:tenant_id/points/batch", h.CreatePointList)
}

type createPointListRequest struct {
	Points []CreatePointInput `json:"points"`
}

func (h *Handler) AddTenant(c *gin.Context) {
	var req AddTenantInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return
	}
	if err := validation.Struct(req, "Invalid input."); err != nil {
		_ = c.Error(err)
		return
	}

	t, err := h.svc.AddTenant(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetTenant(c *gin.Context) {
	t, err := h.svc.GetTenant(c.Request.Context(), nil, c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *Handler) CreatePoint(c *gin.Context) {
	var req CreatePointInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return
	}

	p, err := h.svc.CreatePoint(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) CreatePointList(c *gin.Context) {
	var req createPointListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return
	}

	points, err := h.svc.CreatePointList(c.Request.Context(), c.Param("tenant_id"), req.Points)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"points": points})
}

func (h *Handler) ListPoints(c *gin.Context) {
	points, err := h.svc.ListPoints(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}
