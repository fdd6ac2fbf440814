package database

import (
	"context"
	"fmt"
	"log/slog"
)

// ConfigRepository stores the singleton system configuration row.
type ConfigRepository struct {
	db *DB
}

// NewConfigRepository creates a new ConfigRepository.
func NewConfigRepository(db *DB) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// Get returns the system configuration. A missing or unreadable row yields
// a fresh default instead of an error: config reads never fail the caller.
func (r *ConfigRepository) Get(ctx context.Context) *SystemConfig {
	cfg := &SystemConfig{}
	err := r.db.Pool.QueryRow(ctx,
		"SELECT available_tags, system_settings FROM system_config WHERE id = 1",
	).Scan(&cfg.AvailableTags, &cfg.SystemSettings)
	if err != nil {
		slog.Error("failed to read system config, using defaults", "error", err)
		return DefaultSystemConfig()
	}
	if cfg.AvailableTags == nil {
		cfg.AvailableTags = []string{}
	}
	return cfg
}

// Replace overwrites the whole configuration document.
func (r *ConfigRepository) Replace(ctx context.Context, cfg *SystemConfig) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO system_config (id, available_tags, system_settings)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE
		SET available_tags = EXCLUDED.available_tags,
		    system_settings = EXCLUDED.system_settings
	`, cfg.AvailableTags, cfg.SystemSettings)
	if err != nil {
		return fmt.Errorf("failed to replace system config: %w", err)
	}
	return nil
}
