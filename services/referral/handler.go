package referral

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
	g := rg.Group("/tenants/:tenant_id/referrals/:address")
	g.GET("", h.GetEdge)
	g.GET("/followers", h.GetFollowerCounter)
}

func (h *Handler) GetEdge(c *gin.Context) {
	e, err := h.svc.GetEdge(c.Request.Context(), c.Param("tenant_id"), c.Param("address"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (h *Handler) GetFollowerCounter(c *gin.Context) {
	counter, err := h.svc.Counter(c.Request.Context(), nil, c.Param("tenant_id"), c.Param("address"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, counter)
}
