package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"foundation_site/internal/domain"
	"foundation_site/internal/resource"
	"foundation_site/internal/storage"
)

const tableSettings = "settings"

type SettingService struct {
	base
	settings *resource.Resource[domain.Setting]
}

func NewSettingService(gateway Gateway, cache *resource.Cache, notifier Notifier, logger *slog.Logger, opts ...resource.Option) *SettingService {
	return &SettingService{
		base:     newBase(notifier, logger, tableSettings),
		settings: resource.New[domain.Setting](tableSettings, gateway, cache, logger, opts...),
	}
}

func (s *SettingService) List(ctx context.Context) ([]domain.Setting, error) {
	return s.settings.List(ctx, storage.Query{}.OrderBy("key", false))
}

func (s *SettingService) Get(ctx context.Context, key string) (domain.Setting, error) {
	if key == "" {
		return domain.Setting{}, domain.Invalid("key", "is required")
	}
	return s.settings.First(ctx, storage.Query{}.Where("key", key))
}

// Set writes value under key, creating the setting when it does not exist.
func (s *SettingService) Set(ctx context.Context, actor *domain.Actor, key string, value domain.JSONValue) error {
	op := operation{resource: tableSettings, action: "set", done: "Settings saved", cap: domain.CapSettingsWrite}
	return s.run(ctx, actor, op, func(ctx context.Context) error {
		if key == "" || len(key) > 100 {
			return domain.Invalid("key", "must be between 1 and 100 characters")
		}
		if len(value) == 0 || !json.Valid(value) {
			return domain.Invalid("value", "must be valid JSON")
		}

		current, err := s.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			_, err = s.settings.Create(ctx, storage.Values{"key": key, "value": value})
			return err
		case err != nil:
			return err
		}
		return s.settings.Update(ctx, current.ID, storage.Values{"value": value, "updated_at": s.now()})
	})
}
