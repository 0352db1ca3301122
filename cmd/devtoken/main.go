// Command devtoken prints a signed access token for local testing against a
// billing server that shares the same jwt.secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/erp/billing/internal/domain/shared"
	"github.com/erp/billing/internal/infrastructure/auth"
	"github.com/erp/billing/internal/infrastructure/config"
	"github.com/google/uuid"
)

func main() {
	var (
		tenant   string
		user     string
		username string
		ttl      time.Duration
	)
	flag.StringVar(&tenant, "tenant", "", "Tenant id (default: random)")
	flag.StringVar(&user, "user", "", "User id (default: random)")
	flag.StringVar(&username, "username", "dev", "Username claim")
	flag.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail("load configuration", err)
	}
	if cfg.App.Env == "production" {
		fail("issue token", fmt.Errorf("refusing to run with app.env=production"))
	}
	if cfg.JWT.Secret == "" {
		fail("issue token", fmt.Errorf("jwt.secret is not set"))
	}

	tenantID, err := parseOrNew(tenant)
	if err != nil {
		fail("parse -tenant", err)
	}
	userID, err := parseOrNew(user)
	if err != nil {
		fail("parse -user", err)
	}

	token, err := auth.NewTokenVerifier(cfg.JWT).Issue(shared.NewPrincipal(tenantID, userID), username, ttl)
	if err != nil {
		fail("sign token", err)
	}
	fmt.Fprintf(os.Stderr, "tenant=%s user=%s expires_in=%s\n", tenantID, userID, ttl)
	fmt.Println(token)
}

func parseOrNew(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(s)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "devtoken: %s: %v\n", step, err)
	os.Exit(1)
}
