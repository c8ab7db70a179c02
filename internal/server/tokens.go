package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holdpay/holdpay/internal/identity"
)

type mintRequest struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// MintTokens is an admin bootstrap surface for the ledger; production
// balances arrive through deposits, not minting.
func (s *Server) MintTokens(c *gin.Context) {
	if err := s.guard.RequireAdmin(c.Request.Context(), principal(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	err = s.tokenSvc.Mint(c.Request.Context(),
		identity.Identity(strings.TrimSpace(req.Token)),
		identity.Identity(strings.TrimSpace(req.To)),
		amount,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "minted"}})
}

type approveAllowanceRequest struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

// ApproveAllowance grants the engine spender (or an explicit spender) draw
// rights on the caller's balance. The owner is always the principal.
func (s *Server) ApproveAllowance(c *gin.Context) {
	var req approveAllowanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	spender := identity.Identity(strings.TrimSpace(req.Spender))
	if spender.IsZero() {
		spender = identity.Identity(s.cfg.SpenderID)
	}

	err = s.tokenSvc.Approve(c.Request.Context(),
		identity.Identity(strings.TrimSpace(req.Token)),
		principal(c),
		spender,
		amount,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": "approved"}})
}

func (s *Server) GetBalance(c *gin.Context) {
	token := identity.Identity(strings.TrimSpace(c.Param("token")))
	holder := identity.Identity(strings.TrimSpace(c.Param("holder")))

	balance, err := s.tokenSvc.BalanceOf(c.Request.Context(), token, holder)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":   token,
		"holder":  holder,
		"balance": balance.String(),
	}})
}

func (s *Server) GetAllowance(c *gin.Context) {
	token := identity.Identity(strings.TrimSpace(c.Param("token")))
	owner := identity.Identity(strings.TrimSpace(c.Param("owner")))

	spender := identity.Identity(strings.TrimSpace(c.Query("spender")))
	if spender.IsZero() {
		spender = identity.Identity(s.cfg.SpenderID)
	}

	allowance, err := s.tokenSvc.AllowanceOf(c.Request.Context(), token, owner, spender)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token":     token,
		"owner":     owner,
		"spender":   spender,
		"allowance": allowance.String(),
	}})
}
