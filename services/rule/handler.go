package rule

import (
	"net/http"

	"smallbiznis-points/pkg/errutil"

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
	g.GET("/rules", h.GetActionRules)
	g.PUT("/rules", h.SetActionRules)
	g.GET("/self-increasing-rule", h.GetSelfIncreasingRule)
	g.PUT("/self-increasing-rule", h.SetSelfIncreasingRule)
}

type setActionRulesRequest struct {
	Rules []ActionRuleInput `json:"rules"`
}

func (h *Handler) SetActionRules(c *gin.Context) {
	var req setActionRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return
	}

	rules, err := h.svc.SetActionRules(c.Request.Context(), c.Param("tenant_id"), req.Rules)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *Handler) GetActionRules(c *gin.Context) {
	rules, err := h.svc.GetActionRules(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *Handler) SetSelfIncreasingRule(c *gin.Context) {
	var req SelfIncreasingRuleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid self-increasing points rules.", err))
		return
	}

	rule, err := h.svc.SetSelfIncreasingRule(c.Request.Context(), c.Param("tenant_id"), req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (h *Handler) GetSelfIncreasingRule(c *gin.Context) {
	rule, err := h.svc.GetSelfIncreasingRule(c.Request.Context(), c.Param("tenant_id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rule)
}
