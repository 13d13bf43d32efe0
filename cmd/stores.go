package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"followup-bot/config"
	"followup-bot/internal/models"
	"followup-bot/internal/repositories"
	"followup-bot/internal/utils"
)

type stores struct {
	contacts models.ContactStore
	settings models.SettingsStore
	close    func()
}

// openStores picks MySQL when DATABASE_URL is set and the JSON file store otherwise.
func openStores(cfg *config.Config) (*stores, error) {
	if !cfg.UseMySQL() {
		path := filepath.Join(cfg.DataDir, "database.json")
		utils.LogInfo("Usando armazenamento em arquivo: %s", path)
		fs := repositories.NewFileStore(path)
		return &stores{contacts: fs, settings: fs, close: func() {}}, nil
	}

	db, err := config.ConnectDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := repositories.CreateTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	utils.LogInfo("Usando MySQL para contatos e configurações")
	return &stores{
		contacts: repositories.NewMySQLContactRepository(db),
		settings: repositories.NewMySQLSettingsRepository(db),
		close:    func() { db.Close() },
	}, nil
}

func loadConfig() *config.Config {
	cfg := config.Load()
	utils.SetLogger(cfg.SetupLogger())
	return cfg
}
