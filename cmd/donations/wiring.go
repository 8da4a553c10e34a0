package main

import (
	"context"
	"fmt"
	"log"

	"donation-gate/internal/config"
	"donation-gate/internal/database"
	"donation-gate/internal/infrastructure/payment"
	"donation-gate/internal/repo"
)

func openStore(ctx context.Context, cfg *config.Config) (repo.IntentRepo, error) {
	switch cfg.StoreDriver {
	case "bolt":
		log.Printf("Opening bolt store at %s", cfg.BoltPath)
		return repo.NewBoltIntentRepo(cfg.BoltPath)
	case "postgres":
		db, err := database.NewPostgres(ctx, cfg.DB.DSN())
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		log.Printf("Connected to database: %s", cfg.DB.Database)
		return repo.NewIntentRepo(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func newGateway(cfg *config.Config) (payment.PaymentGateway, error) {
	switch cfg.Gateway {
	case "mercadopago":
		return payment.NewMercadoPago(cfg.MPAPIURL, cfg.MPAccessToken, cfg.GatewayTimeout), nil
	case "mock":
		log.Println("Using in-memory mock gateway; payments will never settle on their own")
		return payment.NewMockGateway(cfg.BaseURL, 0), nil
	default:
		return nil, fmt.Errorf("unknown gateway %q", cfg.Gateway)
	}
}
