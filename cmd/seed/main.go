package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"marketplace-core/internal/auth"
	"marketplace-core/internal/config"
	"marketplace-core/internal/db"
	"marketplace-core/internal/domain"
	"marketplace-core/internal/migrate"
	couponrepo "marketplace-core/internal/repository/coupon"
	productrepo "marketplace-core/internal/repository/product"
	storerepo "marketplace-core/internal/repository/store"
	"marketplace-core/internal/seed"
)

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed dev tokens")
	flag.Parse()

	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[seed] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool, logger); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	res, err := seed.Apply(ctx, seed.Repos{
		Stores:   storerepo.NewPostgres(pool, logger),
		Products: productrepo.NewPostgres(pool, logger),
		Coupons:  couponrepo.NewPostgres(pool, logger),
	}, logger)
	if err != nil {
		logger.Fatalf("seed apply: %v", err)
	}
	logger.Println("seed applied")

	tokens := auth.NewTokenParser(cfg.JWTSecret)
	actors := []domain.Actor{
		{ID: "admin-demo", Role: domain.RoleAdmin},
		{ID: res.OwnerID, Role: domain.RoleMerchant, StoreIDs: []string{res.StoreID}},
		{ID: "customer-demo", Role: domain.RoleCustomer},
		{ID: "driver-demo", Role: domain.RoleDriver},
	}
	fmt.Printf("store %s, coupon %s\n", res.StoreID, res.CouponCode)
	for _, a := range actors {
		token, err := tokens.Issue(a, *tokenTTL)
		if err != nil {
			logger.Fatalf("issue token for %s: %v", a.ID, err)
		}
		fmt.Printf("%-9s %s\n", a.Role, token)
	}
}
