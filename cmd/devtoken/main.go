// Command devtoken mints an operator access token for local use of the
// preview and cache API. It reads the same environment (and .env) as the API process.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"pbx-control/internal/auth"
	"pbx-control/internal/config"
	"pbx-control/internal/rbac"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	userID := flag.String("user", "", "user id (random when empty)")
	tenantID := flag.String("tenant", "", "tenant id the token is scoped to")
	role := flag.String("role", rbac.RoleOwner, "role claim")
	domains := flag.String("domains", "", "comma-separated domains the token is limited to (all when empty)")
	flag.Parse()

	id := auth.Identity{UserID: *userID, TenantID: *tenantID, Role: *role, Domains: splitList(*domains)}
	if err := run(id); err != nil {
		fmt.Fprintln(os.Stderr, "devtoken:", err)
		os.Exit(1)
	}
}

func run(id auth.Identity) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if id.TenantID == "" {
		return errors.New("-tenant is required")
	}
	if !rbac.IsKnownRole(id.Role) {
		return fmt.Errorf("unknown role %q", id.Role)
	}
	if id.UserID == "" {
		id.UserID = uuid.NewString()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		return errors.New("refusing to mint tokens with production config")
	}

	m, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return err
	}
	tok, err := m.Issue(time.Now(), id)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
