package advocate

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/advocates/:domain", h.GetEdge)
	rg.GET("/tenants/:tenant_id/advocates/:address/counters", h.GetCounter)
}

func (h *Handler) GetEdge(c *gin.Context) {
	e, err := h.svc.GetEdge(c.Request.Context(), c.Param("domain"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// GetCounter returns the invitation counters of an address on ?domain=.
func (h *Handler) GetCounter(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := c.Param("tenant_id")
	address := c.Param("address")

	counter, err := h.svc.Counter(ctx, nil, tenantID, address, c.Query("domain"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	applied, err := h.svc.ApplyCount(ctx, nil, tenantID, address)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"invitation_count": counter.InvitationCount,
		"tier_two_count":   counter.TierTwoCount,
		"apply_count":      applied,
	})
}
