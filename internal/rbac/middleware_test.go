package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"pbx-control/internal/auth"

	"github.com/gin-gonic/gin"
)

func TestRequireAnyRole_SuperAdminBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", TenantID: "w", Role: RoleSuperAdmin})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireTenant(), RequireAnyRole(RoleOwner), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireAnyRole_HiddenRoleDeniedUnlessAllowed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", TenantID: "w", Role: RoleNetworkOperator})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireTenant(), RequireAnyRole(RoleOwner), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestRequireAnyRole_TenantRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", TenantID: "", Role: RoleOwner})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireTenant(), RequireAnyRole(RoleOwner), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)
	if w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireAnyRole_HiddenRoleAllowedWhenListed(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), auth.Identity{UserID: "u", TenantID: "carrier", Role: RoleNetworkOperator})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireTenant(), RequireAnyRole(RoleAdmin, RoleNetworkOperator), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequireDomainScope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	scoped := auth.Identity{UserID: "u", TenantID: "t1", Role: RoleSuperAdmin, Domains: []string{"acme.example.com"}}
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), scoped))
		c.Next()
	}, RequireDomainScope(), func(c *gin.Context) {
		c.Status(200)
	})

	cases := []struct {
		target string
		want   int
	}{
		{"/x?domain=acme.example.com", 200},
		{"/x?domain=Acme.Example.com", 200},
		{"/x?domain=globex.example.com", 403},
		{"/x", 200},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.target, nil))
		if w.Code != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.target, tc.want, w.Code)
		}
	}
}

func TestCanAccessDomain_RequiresIdentity(t *testing.T) {
	if CanAccessDomain(context.Background(), "acme.example.com") {
		t.Fatalf("expected no access without identity")
	}
	ctx := auth.WithIdentity(context.Background(), auth.Identity{UserID: "u", TenantID: "t1", Role: RoleOwner})
	if !CanAccessDomain(ctx, "acme.example.com") {
		t.Fatalf("expected unscoped token to cover every domain")
	}
}

func TestCanAccessTenant(t *testing.T) {
	cases := []struct {
		role, own, target string
		want              bool
	}{
		{RoleOwner, "t1", "t1", true},
		{RoleAdmin, "t1", "t2", false},
		{RoleSuperAdmin, "t1", "t2", true},
		{RoleOwner, "", "", false},
	}
	for _, tc := range cases {
		if got := CanAccessTenant(tc.role, tc.own, tc.target); got != tc.want {
			t.Fatalf("CanAccessTenant(%q,%q,%q) = %v, want %v", tc.role, tc.own, tc.target, got, tc.want)
		}
	}
}

func TestIsKnownRole(t *testing.T) {
	for _, r := range []string{RoleOwner, RoleAdmin, RoleAgent, RoleSuperAdmin, RoleNetworkOperator} {
		if !IsKnownRole(r) {
			t.Fatalf("expected %q to be known", r)
		}
	}
	if IsKnownRole("analyst") || IsKnownRole("") {
		t.Fatalf("unexpected known role")
	}
}
