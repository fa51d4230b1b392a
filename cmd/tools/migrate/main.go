package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/VNZray/capstone-project-sub008/internal/config"
	"github.com/VNZray/capstone-project-sub008/internal/modules/cart"
	"github.com/VNZray/capstone-project-sub008/internal/modules/ledger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cfg.DB.Driver {
	case "mysql":
		db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{})
		if err != nil {
			log.Fatalf("connect mysql: %v", err)
		}
		err = db.WithContext(ctx).AutoMigrate(
			&cart.Cart{},
			&cart.CartItem{},
			&ledger.Attempt{},
			&ledger.ProviderEvent{},
		)
		if err != nil {
			log.Fatalf("migrate: %v", err)
		}

	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatalf("connect postgres: %v", err)
		}
		defer pool.Close()
		if err := ledger.NewPgStore(pool).Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}

	default:
		log.Printf("driver %q keeps everything in memory; nothing to migrate", cfg.DB.Driver)
		return
	}

	log.Printf("migrated %s schema", cfg.DB.Driver)
}
