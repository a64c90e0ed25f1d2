// Command provision-admin creates an operator account.
//
//	provision-admin -email ops@example.com -password '...' -name "Ops" -role admin
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/bus-seat-booking/internal/adapters/crdb"
	"github.com/robertarktes/bus-seat-booking/internal/auth"
	"github.com/robertarktes/bus-seat-booking/internal/config"
	"github.com/robertarktes/bus-seat-booking/internal/domain"
	"github.com/robertarktes/bus-seat-booking/internal/observability"
)

func main() {
	email := flag.String("email", "", "admin email")
	password := flag.String("password", "", "admin password, at least 8 characters")
	name := flag.String("name", "", "display name")
	role := flag.String("role", domain.RoleAdmin, "admin or super-admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.CRDBDSN == "" {
		log.Fatal("CRDB_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	if err := crdb.Migrate(ctx, pool); err != nil {
		log.Fatalf("failed to migrate crdb: %v", err)
	}

	svc := auth.NewService(crdb.NewRepository(pool), cfg.JWTSecret, cfg.JWTTTL, observability.NewLogger())
	a, err := svc.ProvisionAdmin(ctx, *email, *password, *name, *role)
	if err != nil {
		log.Fatalf("failed to provision admin: %v", err)
	}
	fmt.Printf("created %s %s (%s)\n", a.Role, a.Email, a.ID)
}
