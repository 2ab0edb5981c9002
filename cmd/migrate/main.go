package main

import (
	"context"
	"time"

	mongoMigration "minidoodle/internal/migrations/mongo"
	mysqlMigration "minidoodle/internal/migrations/mysql"
	"minidoodle/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStorage()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "storage_backend", cfg.StorageBackend)

	var err error
	switch cfg.StorageBackend {
	case config.BackendMongo:
		err = mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	case config.BackendMySQL:
		err = mysqlMigration.RunMigration(ctx, cfg.Client.MySQL, cfg.Log)
	default:
		cfg.Log.Info("Memory backend has no schema, nothing to migrate")
		return
	}

	if err != nil {
		cfg.Log.Error("Migration failed", "error", err)
		cancel()
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Migration job aborted")
	}
	cfg.Log.Info("Migration completed successfully")
}
