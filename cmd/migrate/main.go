package main

import (
	"errors"
	"flag"
	"log"

	"phonehub/internal/pkg/config"
	"phonehub/pkg/database"
	"phonehub/pkg/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

func main() {
	dir := flag.String("path", "migrations", "migrations directory")
	down := flag.Bool("down", false, "roll back one step")
	force := flag.Int("force", -1, "force version (repair a dirty database)")
	flag.Parse()

	config.LoadConfig()
	if err := logger.Init(config.GlobalConfig.App.Env); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	m, err := migrate.New("file://"+*dir, database.MigrateURL(config.GlobalConfig.Database))
	if err != nil {
		logger.Log.Fatal("open migrations failed", zap.Error(err))
	}
	defer m.Close()

	switch {
	case *force >= 0:
		err = m.Force(*force)
	case *down:
		err = m.Steps(-1)
	default:
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		var dirty migrate.ErrDirty
		if errors.As(err, &dirty) {
			logger.Log.Fatal("database is dirty, fix the schema and rerun with -force",
				zap.Int("version", dirty.Version))
		}
		logger.Log.Fatal("migration failed", zap.Error(err))
	}

	version, isDirty, _ := m.Version()
	logger.Log.Info("migration successful", zap.Uint("version", version), zap.Bool("dirty", isDirty))
}
