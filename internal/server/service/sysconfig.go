package service

import (
	"context"
	"log/slog"
	"strings"

	"scriptshare/internal/server/database"
)

// ConfigService manages the tag vocabulary and policy settings.
type ConfigService struct {
	configs ConfigStore
}

// NewConfigService creates a new system configuration service.
func NewConfigService(configs ConfigStore) *ConfigService {
	return &ConfigService{configs: configs}
}

// Get returns the current configuration, falling back to a fresh default
// when the stored document is unreadable.
func (s *ConfigService) Get(ctx context.Context) *database.SystemConfig {
	return s.configs.Get(ctx)
}

// Replace overwrites the whole configuration document.
func (s *ConfigService) Replace(ctx context.Context, cfg *database.SystemConfig) error {
	if cfg.AvailableTags == nil {
		cfg.AvailableTags = []string{}
	}
	if err := s.configs.Replace(ctx, cfg); err != nil {
		return err
	}
	slog.Info("system config replaced", "tags", len(cfg.AvailableTags))
	return nil
}

// AddTag appends a tag to the vocabulary. Deduplication is a case-sensitive
// exact-string match; order is preserved.
func (s *ConfigService) AddTag(ctx context.Context, tag string) (*database.SystemConfig, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, missingField("tag")
	}

	cfg := s.configs.Get(ctx)
	for _, t := range cfg.AvailableTags {
		if t == tag {
			return cfg, nil
		}
	}
	cfg.AvailableTags = append(cfg.AvailableTags, tag)

	if err := s.configs.Replace(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RemoveTag drops a tag from the vocabulary. Scripts already carrying the
// tag keep it.
func (s *ConfigService) RemoveTag(ctx context.Context, tag string) (*database.SystemConfig, error) {
	cfg := s.configs.Get(ctx)

	kept := cfg.AvailableTags[:0]
	for _, t := range cfg.AvailableTags {
		if t != tag {
			kept = append(kept, t)
		}
	}
	cfg.AvailableTags = kept

	if err := s.configs.Replace(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
