package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/escrow-backend/internal/http/response"
	"github.com/yungbote/escrow-backend/internal/platform/apierr"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pathID(c *gin.Context, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil || id == uuid.Nil {
		response.Error(c, apierr.BadRequest(code, errors.New("invalid "+name)))
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes an optional JSON body. An empty body leaves req untouched.
func bind(c *gin.Context, req any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apierr.BadRequest("invalid_body", err))
		return false
	}
	return true
}

func page(c *gin.Context) (limit, offset int) {
	limit = queryInt(c, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset = queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// currencyOr applies the platform default when the client omits a currency.
func currencyOr(currency, def string) string {
	if strings.TrimSpace(currency) == "" {
		return def
	}
	return currency
}
