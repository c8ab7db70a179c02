package server

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func parseIDParam(c *gin.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidRequest
	}
	return id, nil
}

// parseAmount reads a decimal-string amount. Empty means "not supplied";
// the services decide whether that is acceptable.
func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, ErrInvalidRequest
	}
	return amount, nil
}
