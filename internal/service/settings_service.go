package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"whatsjuju-chat/backend/internal/repository"
	"whatsjuju-chat/backend/pkg/cache"
	"whatsjuju-chat/backend/pkg/logger"
	"whatsjuju-chat/backend/pkg/secrets"
)

// SettingsService resolves settings from the database first and the secret
// manager second. Resolved values are cached briefly.
type SettingsService struct {
	repo    repository.SettingRepository
	secrets secrets.Manager
	cache   *cache.Cache
	ttl     time.Duration
	log     *logger.Logger
}

// NewSettingsService creates the service. secretManager and c may be nil.
func NewSettingsService(repo repository.SettingRepository, secretManager secrets.Manager, c *cache.Cache, ttl time.Duration, log *logger.Logger) *SettingsService {
	return &SettingsService{repo: repo, secrets: secretManager, cache: c, ttl: ttl, log: log}
}

// GetSetting returns the value for key or "" when no source has one
func (s *SettingsService) GetSetting(ctx context.Context, key string) (string, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(string), nil
		}
	}

	value, found, err := s.repo.Get(ctx, key)
	if err != nil {
		return "", persistence(err)
	}
	value = strings.TrimSpace(value)

	if !found || value == "" {
		value = ""
		if s.secrets != nil {
			secret, err := s.secrets.GetSecret(ctx, key)
			switch {
			case err == nil:
				value = strings.TrimSpace(secret)
			case !errors.Is(err, secrets.ErrSecretNotFound):
				s.log.WithContext(ctx).Warn("secret lookup failed", "key", key, "error", err.Error())
			}
		}
	}

	if value != "" && s.cache != nil {
		s.cache.SetWithExpiration(key, value, s.ttl)
	}
	return value, nil
}

// SetSetting stores value under key
func (s *SettingsService) SetSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return invalidInput(MsgMissingData)
	}
	if err := s.repo.Set(ctx, key, value); err != nil {
		return persistence(err)
	}
	if s.cache != nil {
		s.cache.Delete(key)
	}
	return nil
}
