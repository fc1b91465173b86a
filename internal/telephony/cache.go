package telephony

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pbx-control/internal/rbac"
	"pbx-control/pkg/logger"
)

type CacheInvalidator interface {
	InvalidateDomain(ctx context.Context, domain string) error
}

// CacheHandler drops cached tenant records after configuration writes.
// A nil Invalidator means caching is disabled and every call is a no-op.
type CacheHandler struct {
	Invalidator CacheInvalidator
	Audit       Auditor
}

type invalidateRequest struct {
	Domain string `json:"domain" binding:"required"`
}

func (h CacheHandler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Domain) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "domain is required"})
		return
	}
	domain := strings.TrimSpace(req.Domain)
	if !rbac.CanAccessDomain(c.Request.Context(), domain) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "domain outside token scope"})
		return
	}

	if h.Invalidator == nil {
		c.JSON(http.StatusOK, gin.H{"domain": domain, "invalidated": false})
		return
	}
	if err := h.Invalidator.InvalidateDomain(c.Request.Context(), domain); err != nil {
		logger.FromGin(c).Error("cache invalidation failed", "domain", domain, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "cache unavailable"})
		return
	}
	logger.FromGin(c).Info("tenant cache invalidated", "domain", domain)
	if h.Audit != nil {
		if err := h.Audit.LogCacheInvalidation(c.Request.Context(), actorFrom(c), domain); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"domain": domain, "invalidated": true})
}
