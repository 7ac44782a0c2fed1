package admin

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
	g := rg.Group("/admin")
	g.GET("", h.GetSettings)
	g.PUT("", h.SetAdmin)
	g.GET("/max-apply-count", h.GetMaxApplyCount)
	g.PUT("/max-apply-count", h.SetMaxApplyCount)
	g.GET("/max-record-list-count", h.GetMaxRecordListCount)
	g.PUT("/max-record-list-count", h.SetMaxRecordListCount)
	g.GET("/reserved-domains", h.GetReservedDomains)
	g.PUT("/reserved-domains", h.SetReservedDomains)
}

type setAdminRequest struct {
	Admin string `json:"admin" validate:"required"`
}

type setMaxApplyCountRequest struct {
	MaxApplyCount int `json:"max_apply_count" validate:"gt=0"`
}

type setMaxRecordListCountRequest struct {
	MaxRecordListCount int `json:"max_record_list_count" validate:"gt=0"`
}

type reservedDomainsRequest struct {
	Domains []string `json:"domains" validate:"required,min=1,dive,required,max=253"`
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return false
	}
	if err := validation.Struct(req, "Invalid input."); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}

func (h *Handler) GetSettings(c *gin.Context) {
	settings, err := h.svc.GetSettings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *Handler) SetAdmin(c *gin.Context) {
	var req setAdminRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetAdmin(c.Request.Context(), req.Admin); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetMaxApplyCount(c *gin.Context) {
	settings, err := h.svc.GetSettings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"max_apply_count": settings.MaxApplyCount})
}

func (h *Handler) SetMaxApplyCount(c *gin.Context) {
	var req setMaxApplyCountRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetMaxApplyCount(c.Request.Context(), req.MaxApplyCount); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetMaxRecordListCount(c *gin.Context) {
	settings, err := h.svc.GetSettings(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"max_record_list_count": settings.MaxRecordListCount})
}

func (h *Handler) SetMaxRecordListCount(c *gin.Context) {
	var req setMaxRecordListCountRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetMaxRecordListCount(c.Request.Context(), req.MaxRecordListCount); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetReservedDomains(c *gin.Context) {
	domains, err := h.svc.GetReservedDomains(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"domains": domains})
}

func (h *Handler) SetReservedDomains(c *gin.Context) {
	var req reservedDomainsRequest
	if !bind(c, &req) {
		return
	}
	if err := h.svc.SetReservedDomains(c.Request.Context(), req.Domains); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
