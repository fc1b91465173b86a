package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"pbx-control/internal/audit"
	"pbx-control/internal/auth"
	"pbx-control/internal/rbac"
)

func previewRouter(h PreviewHandler, tenantID, role string) *gin.Engine {
	return previewRouterAs(h, auth.Identity{UserID: "u1", TenantID: tenantID, Role: role})
}

func previewRouterAs(h PreviewHandler, id auth.Identity) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	withIdentity := func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
	r.GET("/v1/preview/directory", withIdentity, h.Directory)
	r.GET("/v1/preview/dialplan", withIdentity, h.Dialplan)
	return r
}

func getPreview(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestPreview_Validation(t *testing.T) {
	st := testStore()
	r := previewRouter(PreviewHandler{Compiler: testCompiler(st), Tenants: st}, "t1", rbac.RoleAdmin)

	if w := getPreview(r, "/v1/preview/directory"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without domain, got %d", w.Code)
	}
	if w := getPreview(r, "/v1/preview/dialplan?domain=acme.example.com"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without destination, got %d", w.Code)
	}
	if w := getPreview(r, "/v1/preview/directory?domain=nope.example.com"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown domain, got %d", w.Code)
	}
}

func TestPreview_TenantScoping(t *testing.T) {
	st := testStore()
	h := PreviewHandler{Compiler: testCompiler(st), Tenants: st}

	w := getPreview(previewRouter(h, "t1", rbac.RoleAdmin), "/v1/preview/directory?domain=globex.example.com")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another tenant, got %d", w.Code)
	}

	w = getPreview(previewRouter(h, "t1", rbac.RoleAdmin), "/v1/preview/directory?domain=acme.example.com")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `<user id="1001">`) {
		t.Fatalf("expected own directory, got %d:\n%s", w.Code, w.Body.String())
	}

	w = getPreview(previewRouter(h, "t2", rbac.RoleSuperAdmin), "/v1/preview/dialplan?domain=acme.example.com&destination=%2B15559999999")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "user/1001@acme.example.com") {
		t.Fatalf("expected super_admin dialplan preview, got %d:\n%s", w.Code, w.Body.String())
	}
}

func TestPreview_DomainScopedToken(t *testing.T) {
	st := testStore()
	h := PreviewHandler{Compiler: testCompiler(st), Tenants: st}

	scoped := auth.Identity{UserID: "u1", TenantID: "t2", Role: rbac.RoleSuperAdmin, Domains: []string{"globex.example.com"}}
	if w := getPreview(previewRouterAs(h, scoped), "/v1/preview/directory?domain=acme.example.com"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 outside token scope, got %d", w.Code)
	}

	scoped.Domains = []string{"ACME.example.com"}
	if w := getPreview(previewRouterAs(h, scoped), "/v1/preview/directory?domain=acme.example.com"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 inside token scope, got %d", w.Code)
	}
}

func TestPreview_CompileError(t *testing.T) {
	st := testStore()
	r := previewRouter(PreviewHandler{Compiler: erroringCompiler{}, Tenants: st}, "t1", rbac.RoleOwner)

	if w := getPreview(r, "/v1/preview/directory?domain=acme.example.com"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestPreview_AuditsSuccessfulReads(t *testing.T) {
	st := testStore()
	repo := audit.NewMemoryRepo()
	h := PreviewHandler{Compiler: testCompiler(st), Tenants: st, Audit: audit.NewService(repo)}

	getPreview(previewRouter(h, "t2", rbac.RoleSuperAdmin), "/v1/preview/directory?domain=acme.example.com")
	getPreview(previewRouter(h, "t2", rbac.RoleAdmin), "/v1/preview/directory?domain=acme.example.com")

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected only the permitted read to be audited, got %d", len(evs))
	}
	if evs[0].TenantID != "t1" || evs[0].ActorTenantID != "t2" || evs[0].ActorRole != rbac.RoleSuperAdmin {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
}
