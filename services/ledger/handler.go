package ledger

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
	rg.GET("/balances/verify", h.VerifyChain)
}

type verifyChainResponse struct {
	Key     BalanceKey `json:"key"`
	Entries int        `json:"entries"`
	Valid   bool       `json:"valid"`
}

func (h *Handler) VerifyChain(c *gin.Context) {
	var key BalanceKey
	if err := c.ShouldBindQuery(&key); err != nil {
		_ = c.Error(errutil.BadRequest("Invalid input.", err))
		return
	}
	if err := validation.Struct(key, "Invalid input."); err != nil {
		_ = c.Error(err)
		return
	}

	n, err := h.svc.VerifyChain(c.Request.Context(), key)
	if err != nil {
		if errutil.Is(err, errutil.StatusConflict) {
			c.JSON(http.StatusOK, verifyChainResponse{Key: key, Entries: n, Valid: false})
			return
		}
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, verifyChainResponse{Key: key, Entries: n, Valid: true})
}
