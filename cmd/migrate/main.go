package main

import (
	"context"
	"fmt"
	"time"

	mongoMigration "parksphere/internal/migrations/mongo"
	sqlMigration "parksphere/internal/migrations/sql"
	"parksphere/pkg/config"
)

const JobName = "migration"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()
	cfg := config.Load(JobName)
	cfg.SetStore()
	cfg.Log.Info("Starting migration job", "store", cfg.StoreDriver)
	defer cfg.GracefulShutdown()

	if err := migrate(ctx, cfg); err != nil {
		cfg.Log.Fatal("Migration failed", "error", err)
	}
	fmt.Println("Migration completed successfully.")
}

func migrate(ctx context.Context, cfg *config.Config) error {
	if cfg.UsesMongo() {
		return mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	}
	return sqlMigration.Apply(ctx, cfg.Client.SQL, cfg.Log)
}
