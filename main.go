package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/motorbill/crm/controller"
	"github.com/motorbill/crm/model"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pelletier/go-toml/v2"
)

func loadConfig(path string) (*model.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &model.Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigrations(cfg *model.Config) error {
	m, err := migrate.New("file://"+migrationsDir(), migrateDSN(cfg))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func dothings() error {
	configPath := flag.String("config", "config.toml", "path to the configuration file")
	doMigrate := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *doMigrate {
		return runMigrations(cfg)
	}
	crmdb, err := model.InitDatabase(cfg)
	if err != nil {
		return err
	}
	return controller.NewController(crmdb)
}

func main() {
	if err := dothings(); err != nil {
		log.Fatal(err)
	}
}
