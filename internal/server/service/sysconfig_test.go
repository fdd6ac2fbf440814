package service

import (
	"context"
	"reflect"
	"testing"

	"scriptshare/internal/server/database"
)

func TestAddTag(t *testing.T) {
	ctx := context.Background()

	t.Run("appends preserving order", func(t *testing.T) {
		store := newFakeConfigStore(&database.SystemConfig{AvailableTags: []string{"mystery", "horror"}})
		svc := NewConfigService(store)

		cfg, err := svc.AddTag(ctx, "sci-fi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"mystery", "horror", "sci-fi"}
		if !reflect.DeepEqual(cfg.AvailableTags, want) {
			t.Errorf("tags = %v, want %v", cfg.AvailableTags, want)
		}
	})

	t.Run("exact duplicate is a no-op", func(t *testing.T) {
		store := newFakeConfigStore(&database.SystemConfig{AvailableTags: []string{"mystery"}})
		svc := NewConfigService(store)

		cfg, err := svc.AddTag(ctx, "mystery")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(cfg.AvailableTags) != 1 {
			t.Errorf("duplicate appended: %v", cfg.AvailableTags)
		}
		if store.replaced != 0 {
			t.Errorf("no-op add should not rewrite config")
		}
	})

	t.Run("dedup is case-sensitive", func(t *testing.T) {
		store := newFakeConfigStore(&database.SystemConfig{AvailableTags: []string{"mystery"}})
		svc := NewConfigService(store)

		cfg, err := svc.AddTag(ctx, "Mystery")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"mystery", "Mystery"}
		if !reflect.DeepEqual(cfg.AvailableTags, want) {
			t.Errorf("tags = %v, want %v", cfg.AvailableTags, want)
		}
	})

	t.Run("blank tag rejected", func(t *testing.T) {
		svc := NewConfigService(newFakeConfigStore(database.DefaultSystemConfig()))
		if _, err := svc.AddTag(ctx, "   "); err == nil {
			t.Fatalf("expected error for blank tag")
		}
	})
}

func TestRemoveTag(t *testing.T) {
	ctx := context.Background()

	t.Run("removes only the named tag", func(t *testing.T) {
		store := newFakeConfigStore(&database.SystemConfig{AvailableTags: []string{"a", "b", "c"}})
		svc := NewConfigService(store)

		cfg, err := svc.RemoveTag(ctx, "b")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"a", "c"}
		if !reflect.DeepEqual(cfg.AvailableTags, want) {
			t.Errorf("tags = %v, want %v", cfg.AvailableTags, want)
		}
	})

	t.Run("unknown tag is a no-op", func(t *testing.T) {
		store := newFakeConfigStore(&database.SystemConfig{AvailableTags: []string{"a"}})
		svc := NewConfigService(store)

		cfg, err := svc.RemoveTag(ctx, "zzz")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(cfg.AvailableTags, []string{"a"}) {
			t.Errorf("tags changed: %v", cfg.AvailableTags)
		}
	})

	t.Run("scripts keep removed tags", func(t *testing.T) {
		// Tag removal touches only the vocabulary; records carrying the tag
		// are left alone.
		env := newScriptTestEnv(t, &database.SystemConfig{AvailableTags: []string{"mystery"}})
		env.scripts.scripts["1"] = &database.Script{
			ID: "1", Tags: []string{"mystery"}, BaseScriptID: "1", Status: database.StatusApproved,
		}
		svc := NewConfigService(env.configs)

		if _, err := svc.RemoveTag(ctx, "mystery"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, _ := env.scripts.GetByID(ctx, "1")
		if !reflect.DeepEqual(got.Tags, []string{"mystery"}) {
			t.Errorf("script tags altered by vocabulary change: %v", got.Tags)
		}
	})
}

func TestReplaceConfig(t *testing.T) {
	ctx := context.Background()
	store := newFakeConfigStore(database.DefaultSystemConfig())
	svc := NewConfigService(store)

	cfg := &database.SystemConfig{
		SystemSettings: database.SystemSettings{RequireScriptApproval: true},
	}
	if err := svc.Replace(ctx, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AvailableTags == nil {
		t.Errorf("nil tags should be normalized to an empty list")
	}
	if !store.cfg.SystemSettings.RequireScriptApproval {
		t.Errorf("replacement not persisted")
	}
}
