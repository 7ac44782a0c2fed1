package settlement

import (
	"net/http"

	"smallbiznis-points/pkg/errutil"
	"smallbiznis-points/services/ledger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/tenants/:tenant_id")
	g.POST("/advocates", h.ApplyForAdvocate)
	g.POST("/registrations", h.Join)
	g.POST("/referrals", h.AcceptReferral)
	g.POST("/settlements", h.Settle)
	g.POST("/settlements/batch", h.BatchSettle)
	g.GET("/balances", h.GetBalance)
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return false
	}
	return true
}

func (h *Handler) ApplyForAdvocate(c *gin.Context) {
	var req ApplyInput
	if !bindJSON(c, &req) {
		return
	}

	edge, result, err := h.svc.ApplyForAdvocate(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"edge": edge, "details": result.Details})
}

func (h *Handler) Join(c *gin.Context) {
	var req JoinInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Join(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) AcceptReferral(c *gin.Context) {
	var req AcceptReferralInput
	if !bindJSON(c, &req) {
		return
	}

	edge, result, err := h.svc.AcceptReferral(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"edge": edge, "details": result.Details})
}

func (h *Handler) Settle(c *gin.Context) {
	var req SettleInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.Settle(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) BatchSettle(c *gin.Context) {
	var req BatchSettleInput
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.svc.BatchSettle(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetBalance(c *gin.Context) {
	var key ledger.BalanceKey
	if err := c.ShouldBindQuery(&key); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return
	}

	view, err := h.svc.GetBalance(c.Request.Context(), c.Param("tenant_id"), key)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}
