package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holdpay/holdpay/internal/identity"
)

type initializeRequest struct {
	Admin string `json:"admin"`
}

// InitializeAdmin sets the engine admin exactly once. Until it is called,
// admin-gated transitions reject everyone.
func (s *Server) InitializeAdmin(c *gin.Context) {
	var req initializeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	admin := identity.Identity(strings.TrimSpace(req.Admin))
	if admin.IsZero() {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.guard.Initialize(c.Request.Context(), admin); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"admin": admin}})
}

func (s *Server) GetAdmin(c *gin.Context) {
	admin, ok, err := s.guard.Admin(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"initialized": false}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"initialized": true, "admin": admin}})
}
