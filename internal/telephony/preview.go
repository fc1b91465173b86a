package telephony

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pbx-control/internal/audit"
	"pbx-control/internal/auth"
	"pbx-control/internal/pbx"
	"pbx-control/internal/rbac"
	"pbx-control/internal/routing"
	"pbx-control/pkg/logger"
)

// TenantResolver maps a domain to its operational tenant.
type TenantResolver interface {
	FindOperationalTenantByDomain(ctx context.Context, domain string) (*pbx.Tenant, error)
}

// Auditor records privileged operator actions. Failures are logged, never surfaced.
type Auditor interface {
	LogPreview(ctx context.Context, actor audit.Actor, tenantID, domain, section string) error
	LogCacheInvalidation(ctx context.Context, actor audit.Actor, domain string) error
}

// PreviewHandler lets operators see the documents the switch would receive.
// Callers only see tenants their token is scoped to, unless super_admin.
type PreviewHandler struct {
	Compiler DocumentCompiler
	Tenants  TenantResolver
	Audit    Auditor
}

func (h PreviewHandler) Directory(c *gin.Context) {
	tenant, ok := h.authorizeDomain(c)
	if !ok {
		return
	}
	domain := tenant.Domain
	doc, err := h.Compiler.CompileDirectory(c.Request.Context(), domain)
	if err != nil {
		logger.FromGin(c).Error("directory preview failed", "domain", domain, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "compile failed"})
		return
	}
	h.audit(c, tenant, "directory")
	writeDocument(c, doc)
}

func (h PreviewHandler) Dialplan(c *gin.Context) {
	tenant, ok := h.authorizeDomain(c)
	if !ok {
		return
	}
	domain := tenant.Domain
	destination := strings.TrimSpace(c.Query("destination"))
	if destination == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "destination is required"})
		return
	}

	doc, err := h.Compiler.CompileDialplan(c.Request.Context(), routing.DialplanRequest{
		Domain:      domain,
		Destination: destination,
		Caller:      strings.TrimSpace(c.Query("caller")),
		Context:     strings.TrimSpace(c.Query("context")),
	})
	if err != nil {
		logger.FromGin(c).Error("dialplan preview failed", "domain", domain, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "compile failed"})
		return
	}
	h.audit(c, tenant, "dialplan")
	writeDocument(c, doc)
}

func (h PreviewHandler) audit(c *gin.Context, tenant *pbx.Tenant, section string) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.LogPreview(c.Request.Context(), actorFrom(c), tenant.ID, tenant.Domain, section); err != nil {
		logger.FromGin(c).Warn("audit append failed", "err", err)
	}
}

func (h PreviewHandler) authorizeDomain(c *gin.Context) (*pbx.Tenant, bool) {
	domain := strings.TrimSpace(c.Query("domain"))
	if domain == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "domain is required"})
		return nil, false
	}

	tenant, err := h.Tenants.FindOperationalTenantByDomain(c.Request.Context(), domain)
	if err != nil {
		logger.FromGin(c).Error("tenant lookup failed", "domain", domain, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tenant lookup failed"})
		return nil, false
	}
	if tenant == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown domain"})
		return nil, false
	}

	id, _ := auth.IdentityFrom(c.Request.Context())
	if !rbac.CanAccessTenant(id.Role, id.TenantID, tenant.ID) || !id.CoversDomain(tenant.Domain) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return nil, false
	}
	return tenant, true
}

func actorFrom(c *gin.Context) audit.Actor {
	id, _ := auth.IdentityFrom(c.Request.Context())
	return audit.Actor{UserID: id.UserID, Role: id.Role, TenantID: id.TenantID, IP: c.ClientIP()}
}
