package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"logisticsassist/api/config"
	"logisticsassist/api/database"
	"logisticsassist/api/store"
)

// stores bundles the two persistence surfaces for the configured driver.
type stores struct {
	Access       store.AccessEventStore
	Interactions store.InteractionStore
	close        []func()
}

func (s *stores) Close() {
	for i := len(s.close) - 1; i >= 0; i-- {
		s.close[i]()
	}
}

// openStores connects to the backing databases and creates their schema.
func openStores(ctx context.Context, cfg *config.Config, loc *time.Location) (*stores, error) {
	s := &stores{}

	switch cfg.StorageDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		writer := database.NewWorker(db)
		s.close = append(s.close, func() { db.Close() }, writer.Close)

		sq := store.NewSQLiteStore(db, writer, loc)
		s.Access, s.Interactions = sq, sq
		log.Printf("Using SQLite storage at %s", cfg.SQLitePath)

	case config.DriverPostgres:
		pg, err := database.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("initializing PostgreSQL: %w", err)
		}
		s.close = append(s.close, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}

		ch, err := database.NewClickHouseDB(database.ClickHouseConfig{
			Host:       cfg.ClickHouseHost,
			NativePort: cfg.ClickHouseNativePort,
			DBName:     cfg.ClickHouseDBName,
			Username:   cfg.ClickHouseUsername,
			Password:   cfg.ClickHousePassword,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("initializing ClickHouse: %w", err)
		}
		s.close = append(s.close, ch.Close)
		if err := ch.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}

		s.Access = store.NewAccessStore(ch, loc)
		s.Interactions = store.NewInteractionPGStore(pg.DB, loc)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return s, nil
}

// loadConfig reads and validates the configuration named by --config.
func loadConfig() (*config.Config, *time.Location, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loc, nil
}
