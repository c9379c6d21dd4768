// migrate applies the embedded schema migrations to the configured database.
//
//	go run ./cmd/migrate              # up
//	go run ./cmd/migrate -direction down
package main

import (
	"context"
	"flag"
	"os"

	"github.com/yanizio/adept-intake/internal/config"
	"github.com/yanizio/adept-intake/internal/database"
	"github.com/yanizio/adept-intake/internal/logger"
	"github.com/yanizio/adept-intake/internal/vault"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	flag.Parse()

	log := logger.Bootstrap()
	defer log.Sync()

	ctx := context.Background()

	var sec config.SecretResolver
	if vault.Configured() {
		vc, err := vault.New(ctx, log.Infof)
		if err != nil {
			log.Errorw("vault init failed", "err", err)
			os.Exit(1)
		}
		sec = vc
	}

	cfg, err := config.Load(ctx, sec)
	if err != nil {
		log.Errorw("config load failed", "err", err)
		os.Exit(1)
	}
	if cfg.Database.Driver == "memory" {
		log.Infow("database.driver is memory; nothing to migrate")
		return
	}

	if err := database.Migrate(cfg.Database.Driver, cfg.Database.DSN, *direction); err != nil {
		log.Errorw("migrate failed", "driver", cfg.Database.Driver, "direction", *direction, "err", err)
		os.Exit(1)
	}
	log.Infow("migrations applied", "driver", cfg.Database.Driver, "direction", *direction)
}
